package model

import (
	"strings"
	"time"
)

// WorkflowStatus is the position of a session in the search-to-score flow.
type WorkflowStatus string

const (
	StatusIdle            WorkflowStatus = "IDLE"
	StatusSearching       WorkflowStatus = "SEARCHING"
	StatusVideoSelected   WorkflowStatus = "VIDEO_SELECTED"
	StatusTranscriptReady WorkflowStatus = "TRANSCRIPT_READY"
	StatusQuizGenerated   WorkflowStatus = "QUIZ_GENERATED"
	StatusQuizSubmitted   WorkflowStatus = "QUIZ_SUBMITTED"
)

// WorkflowState is the session-scoped record the orchestrator loads and saves around every action.
type WorkflowState struct {
	SessionID    string            `json:"session_id"`
	Status       WorkflowStatus    `json:"status"`
	Query        string            `json:"query,omitempty"`
	Results      []VideoRef        `json:"results,omitempty"`
	Video        *VideoRef         `json:"video,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript,omitempty"`
	Attempt      *QuizAttempt      `json:"attempt,omitempty"`
	FeedbackOpen bool              `json:"feedback_open"`
	DebugVisible bool              `json:"debug_visible"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewWorkflowState returns the initial Idle state for a session.
func NewWorkflowState(sessionID string) *WorkflowState {
	return &WorkflowState{SessionID: sessionID, Status: StatusIdle}
}

// Clone returns a copy that shares no mutable slices with s.
func (s *WorkflowState) Clone() *WorkflowState {
	c := *s
	c.Results = append([]VideoRef(nil), s.Results...)
	c.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	if s.Video != nil {
		v := *s.Video
		c.Video = &v
	}
	if s.Attempt != nil {
		a := *s.Attempt
		a.Questions = append([]Question(nil), s.Attempt.Questions...)
		if s.Attempt.UserAnswers != nil {
			a.UserAnswers = make(map[int]string, len(s.Attempt.UserAnswers))
			for k, v := range s.Attempt.UserAnswers {
				a.UserAnswers[k] = v
			}
		}
		c.Attempt = &a
	}
	return &c
}

// HasTranscript reports whether a selected video and its transcript are held.
func (s *WorkflowState) HasTranscript() bool {
	return s.Video != nil && len(s.Transcript) > 0
}

// InFlight reports whether the status only exists while an external call runs.
func (s WorkflowStatus) InFlight() bool {
	return s == StatusSearching || s == StatusTranscriptReady
}

// Settle replaces an in-flight status left behind by an interrupted action with
// the stable status implied by the artifacts still held.
func (s *WorkflowState) Settle() {
	if !s.Status.InFlight() {
		return
	}
	switch {
	case s.Attempt != nil && s.Attempt.Submitted():
		s.Status = StatusQuizSubmitted
	case s.Attempt != nil:
		s.Status = StatusQuizGenerated
	case s.HasTranscript():
		s.Status = StatusVideoSelected
	default:
		s.Status = StatusIdle
	}
}

// ─── Actions ────────────────────────────────────────────────────────

// ActionKind tags a user action.
type ActionKind string

const (
	ActionSearch         ActionKind = "search"
	ActionSelectVideo    ActionKind = "select_video"
	ActionGenerateQuiz   ActionKind = "generate_quiz"
	ActionSubmitQuiz     ActionKind = "submit_quiz"
	ActionOpenFeedback   ActionKind = "open_feedback"
	ActionCloseFeedback  ActionKind = "close_feedback"
	ActionSubmitFeedback ActionKind = "submit_feedback"
	ActionToggleDebug    ActionKind = "toggle_debug"
	ActionReset          ActionKind = "reset"
)

// Action is one discrete user action. The concrete types below are the only implementations.
type Action interface {
	Kind() ActionKind
}

type SearchAction struct {
	Query      string `json:"query" binding:"required,min=1,max=200"`
	MaxResults int    `json:"max_results" binding:"omitempty,min=1,max=50"`
}

type SelectVideoAction struct {
	VideoID string `json:"video_id" binding:"required,max=200"`
}

type GenerateQuizAction struct {
	QuestionType QuestionType `json:"question_type" binding:"required,question_type"`
	Count        int          `json:"count"`
}

type SubmitQuizAction struct {
	Answers map[int]string `json:"answers"`
}

type OpenFeedbackAction struct{}

type CloseFeedbackAction struct{}

type SubmitFeedbackAction struct {
	Type FeedbackType `json:"type" binding:"required,feedback_type"`
	Text string       `json:"text" binding:"required,max=5000"`
}

type ToggleDebugAction struct{}

type ResetAction struct{}

func (SearchAction) Kind() ActionKind         { return ActionSearch }
func (SelectVideoAction) Kind() ActionKind    { return ActionSelectVideo }
func (GenerateQuizAction) Kind() ActionKind   { return ActionGenerateQuiz }
func (SubmitQuizAction) Kind() ActionKind     { return ActionSubmitQuiz }
func (OpenFeedbackAction) Kind() ActionKind   { return ActionOpenFeedback }
func (CloseFeedbackAction) Kind() ActionKind  { return ActionCloseFeedback }
func (SubmitFeedbackAction) Kind() ActionKind { return ActionSubmitFeedback }
func (ToggleDebugAction) Kind() ActionKind    { return ActionToggleDebug }
func (ResetAction) Kind() ActionKind          { return ActionReset }

// ─── View ───────────────────────────────────────────────────────────

// View describes what the client should render after an action.
type View struct {
	State        WorkflowStatus  `json:"state"`
	Query        string          `json:"query,omitempty"`
	Results      []VideoRef      `json:"results"`
	Video        *VideoRef       `json:"video,omitempty"`
	Transcript   *TranscriptView `json:"transcript,omitempty"`
	Quiz         *QuizView       `json:"quiz,omitempty"`
	Result       *ResultView     `json:"result,omitempty"`
	FeedbackOpen bool            `json:"feedback_open"`
	DebugVisible bool            `json:"debug_visible"`
	DebugLog     []string        `json:"debug_log,omitempty"`
	Notice       string          `json:"notice,omitempty"`
}

type TranscriptView struct {
	Entries   []TranscriptEntry `json:"entries"`
	WordCount int               `json:"word_count"`
}

// QuizQuestionView is a question as shown before grading: no answer, no explanation.
type QuizQuestionView struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type QuizView struct {
	QuizID       string             `json:"quiz_id"`
	QuestionType QuestionType       `json:"question_type"`
	Questions    []QuizQuestionView `json:"questions"`
}

type ReviewItem struct {
	Index         int    `json:"index"`
	Prompt        string `json:"prompt"`
	YourAnswer    string `json:"your_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Correct       bool   `json:"correct"`
}

type ResultView struct {
	Score   int          `json:"score"`
	Total   int          `json:"total"`
	Percent float64      `json:"percent"`
	Passed  bool         `json:"passed"`
	Review  []ReviewItem `json:"review"`
}

// NoAnswer is shown in a review for unanswered questions.
const NoAnswer = "No answer"

// BuildView projects a state into its client view. Debug lines are filled by the caller.
func BuildView(s *WorkflowState) *View {
	v := &View{
		State:        s.Status,
		Query:        s.Query,
		Results:      s.Results,
		Video:        s.Video,
		FeedbackOpen: s.FeedbackOpen,
		DebugVisible: s.DebugVisible,
	}
	if v.Results == nil {
		v.Results = []VideoRef{}
	}

	if len(s.Transcript) > 0 {
		words := 0
		for _, e := range s.Transcript {
			words += len(strings.Fields(e.Text))
		}
		v.Transcript = &TranscriptView{Entries: s.Transcript, WordCount: words}
	}

	if a := s.Attempt; a != nil {
		qv := &QuizView{
			QuizID:       a.QuizID.String(),
			QuestionType: a.QuestionType,
			Questions:    make([]QuizQuestionView, 0, len(a.Questions)),
		}
		for i, q := range a.Questions {
			opts := q.Options
			if opts == nil {
				opts = []string{}
			}
			qv.Questions = append(qv.Questions, QuizQuestionView{Index: i, Prompt: q.Prompt, Options: opts})
		}
		v.Quiz = qv

		if a.Submitted() {
			v.Result = buildResult(a)
		}
	}

	return v
}

func buildResult(a *QuizAttempt) *ResultView {
	r := &ResultView{
		Score:  a.Score,
		Total:  a.Total,
		Passed: a.Passed(),
		Review: make([]ReviewItem, 0, len(a.Questions)),
	}
	if a.Total > 0 {
		r.Percent = float64(a.Score) * 100 / float64(a.Total)
	}
	for i, q := range a.Questions {
		ans, ok := a.UserAnswers[i]
		item := ReviewItem{
			Index:         i,
			Prompt:        q.Prompt,
			YourAnswer:    ans,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Correct:       ok && ans == q.CorrectAnswer,
		}
		if !ok {
			item.YourAnswer = NoAnswer
		}
		r.Review = append(r.Review, item)
	}
	return r
}
