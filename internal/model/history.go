package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizResultSummary is the list view of a stored result, without questions or answers.
type QuizResultSummary struct {
	ID           int64        `json:"id"`
	QuizID       uuid.UUID    `json:"quiz_id"`
	VideoID      string       `json:"video_id"`
	QuestionType QuestionType `json:"question_type"`
	Score        int          `json:"score"`
	Total        int          `json:"total"`
	Percentage   float64      `json:"percentage"`
	Passed       bool         `json:"passed"`
	CreatedAt    time.Time    `json:"created_at"`
}
