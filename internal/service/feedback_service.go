package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
)

// FeedbackWarning is returned to the user when feedback was accepted but not stored.
const FeedbackWarning = "Thanks! Your feedback was received but could not be saved right now."

// FeedbackStore appends feedback records.
type FeedbackStore interface {
	Create(ctx context.Context, f *model.Feedback) error
}

// FeedbackReceipt acknowledges accepted feedback. Warning is set when the write failed.
type FeedbackReceipt struct {
	ID      int64  `json:"id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// FeedbackService validates and stores user feedback.
type FeedbackService struct {
	store FeedbackStore
	log   zerolog.Logger
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(store FeedbackStore, log zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		store: store,
		log:   log.With().Str("component", "feedback_service").Logger(),
	}
}

// Submit records feedback for the session's user, or anonymously.
// A failed write is logged and reported as accepted with a warning.
func (s *FeedbackService) Submit(ctx context.Context, sess *model.Session, t model.FeedbackType, text string) (*FeedbackReceipt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyFeedback
	}
	if !t.Valid() {
		return nil, ErrInvalidFeedbackType
	}

	f := &model.Feedback{Type: t, Text: text, Status: model.FeedbackStatusNew}
	if sess != nil && sess.Authenticated {
		f.UserID = sess.UserID
	}

	if err := s.store.Create(ctx, f); err != nil {
		s.log.Error().Err(err).Str("type", string(t)).Msg("Failed to store feedback")
		return &FeedbackReceipt{Warning: FeedbackWarning}, nil
	}

	s.log.Info().Int64("feedback_id", f.ID).Str("type", string(t)).Msg("Feedback stored")
	return &FeedbackReceipt{ID: f.ID}, nil
}
