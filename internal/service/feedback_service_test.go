package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
)

type memFeedback struct {
	err  error
	rows []*model.Feedback
}

func (m *memFeedback) Create(_ context.Context, f *model.Feedback) error {
	if m.err != nil {
		return m.err
	}
	f.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, f)
	return nil
}

func TestFeedbackSubmit(t *testing.T) {
	uid := int64(3)
	authed := &model.Session{ID: "s", UserID: &uid, Authenticated: true}

	tests := []struct {
		name        string
		store       *memFeedback
		sess        *model.Session
		typ         model.FeedbackType
		text        string
		wantErr     error
		wantWarning bool
		wantUser    *int64
	}{
		{name: "authenticated", store: &memFeedback{}, sess: authed, typ: model.FeedbackTypeBug, text: " crash on submit ", wantUser: &uid},
		{name: "anonymous", store: &memFeedback{}, sess: anonSession(), typ: model.FeedbackTypeGeneral, text: "nice"},
		{name: "empty text", store: &memFeedback{}, sess: authed, typ: model.FeedbackTypeBug, text: "   ", wantErr: ErrEmptyFeedback},
		{name: "bad type", store: &memFeedback{}, sess: authed, typ: "praise", text: "hi", wantErr: ErrInvalidFeedbackType},
		{name: "store down", store: &memFeedback{err: errors.New("db down")}, sess: authed, typ: model.FeedbackTypeFeature, text: "dark mode", wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFeedbackService(tt.store, zerolog.Nop())
			receipt, err := svc.Submit(context.Background(), tt.sess, tt.typ, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if Kind(err) != KindValidation {
					t.Errorf("kind = %v", Kind(err))
				}
				return
			}
			if (receipt.Warning != "") != tt.wantWarning {
				t.Errorf("warning = %q", receipt.Warning)
			}
			if tt.wantWarning {
				return
			}
			row := tt.store.rows[0]
			if row.Status != model.FeedbackStatusNew || row.Text != strings.TrimSpace(tt.text) {
				t.Errorf("row = %+v", row)
			}
			if (row.UserID == nil) != (tt.wantUser == nil) {
				t.Errorf("user id = %v, want %v", row.UserID, tt.wantUser)
			}
		})
	}
}
