package websocket

import (
	"errors"
	"testing"

	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/validator"
)

func init() {
	validator.Setup()
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		want       model.ActionKind
		wantErr    error
		wantFields []string
	}{
		{name: "search", raw: `{"action":"search","query":"go channels","max_results":5}`, want: model.ActionSearch},
		{name: "select", raw: `{"action":"select_video","video_id":"https://youtu.be/dQw4w9WgXcQ"}`, want: model.ActionSelectVideo},
		{name: "generate", raw: `{"action":"generate_quiz","question_type":"true_false","count":3}`, want: model.ActionGenerateQuiz},
		{name: "submit", raw: `{"action":"submit_quiz","answers":{"0":"B","2":"True"}}`, want: model.ActionSubmitQuiz},
		{name: "feedback", raw: `{"action":"submit_feedback","type":"bug","text":"broken"}`, want: model.ActionSubmitFeedback},
		{name: "toggle", raw: `{"action":"toggle_debug"}`, want: model.ActionToggleDebug},
		{name: "reset", raw: `{"action":"reset"}`, want: model.ActionReset},
		{name: "unknown", raw: `{"action":"dance"}`, wantErr: ErrUnknownAction},
		{name: "not json", raw: `search`, wantErr: ErrInvalidPayload},
		{name: "wrong field type", raw: `{"action":"generate_quiz","question_type":"true_false","count":"three"}`, wantErr: ErrInvalidPayload},
		{name: "empty query", raw: `{"action":"search","query":""}`, wantFields: []string{"query"}},
		{name: "bad question type", raw: `{"action":"generate_quiz","question_type":"essay"}`, wantFields: []string{"question_type"}},
		{name: "bad feedback type", raw: `{"action":"submit_feedback","type":"praise","text":"hi"}`, wantFields: []string{"type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tt.raw))

			if tt.wantFields != nil {
				var fe *FieldError
				if !errors.As(err, &fe) {
					t.Fatalf("err = %v, want FieldError", err)
				}
				for _, f := range tt.wantFields {
					if _, ok := fe.Fields[f]; !ok {
						t.Errorf("missing field %q in %v", f, fe.Fields)
					}
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got.Kind() != tt.want {
				t.Errorf("kind = %s, want %s", got.Kind(), tt.want)
			}
		})
	}
}

func TestDecodeActionFields(t *testing.T) {
	got, err := DecodeAction([]byte(`{"action":"submit_quiz","answers":{"0":"B","2":"True"}}`))
	if err != nil {
		t.Fatal(err)
	}
	submit, ok := got.(model.SubmitQuizAction)
	if !ok {
		t.Fatalf("type = %T", got)
	}
	if submit.Answers[0] != "B" || submit.Answers[2] != "True" || len(submit.Answers) != 2 {
		t.Errorf("answers = %v", submit.Answers)
	}
}
