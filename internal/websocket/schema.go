package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/validator"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

// ActionPing keeps the connection alive. Every other action name is a
// model.ActionKind and carries its fields flat next to "action":
//
//	{"action":"search","query":"go channels","max_results":5}
//	{"action":"submit_quiz","answers":{"0":"B","1":"True"}}
const ActionPing = "ping"

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action string `json:"action"`
}

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid action payload")
)

// FieldError carries per-field validation messages for a decoded action.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// DecodeAction parses one client frame into a validated model.Action.
func DecodeAction(raw []byte) (model.Action, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch model.ActionKind(env.Action) {
	case model.ActionSearch:
		return decode[model.SearchAction](raw)
	case model.ActionSelectVideo:
		return decode[model.SelectVideoAction](raw)
	case model.ActionGenerateQuiz:
		return decode[model.GenerateQuizAction](raw)
	case model.ActionSubmitQuiz:
		return decode[model.SubmitQuizAction](raw)
	case model.ActionSubmitFeedback:
		return decode[model.SubmitFeedbackAction](raw)
	case model.ActionOpenFeedback:
		return model.OpenFeedbackAction{}, nil
	case model.ActionCloseFeedback:
		return model.CloseFeedbackAction{}, nil
	case model.ActionToggleDebug:
		return model.ToggleDebugAction{}, nil
	case model.ActionReset:
		return model.ResetAction{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

func decode[T model.Action](raw []byte) (model.Action, error) {
	var a T
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields := validator.Validate(&a); fields != nil {
		return nil, &FieldError{Fields: fields}
	}
	return a, nil
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventView  Event = "view"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// ViewResponse is sent after every successful action and once on connect.
type ViewResponse struct {
	Event Event       `json:"event"`
	View  *model.View `json:"view"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
