package model

import "time"

type FeedbackType string

const (
	FeedbackTypeBug     FeedbackType = "bug"
	FeedbackTypeFeature FeedbackType = "feature"
	FeedbackTypeGeneral FeedbackType = "general"
)

// Valid reports whether t is one of the known feedback types.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackTypeBug, FeedbackTypeFeature, FeedbackTypeGeneral:
		return true
	}
	return false
}

// FeedbackStatusNew is the only status this service writes.
const FeedbackStatusNew = "new"

// Feedback is a free-form note left by a user. UserID is nil when anonymous.
type Feedback struct {
	ID        int64        `json:"id"`
	UserID    *int64       `json:"user_id,omitempty"`
	Type      FeedbackType `json:"type"`
	Text      string       `json:"text"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}
