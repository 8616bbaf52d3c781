package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Valid reports whether t is a supported question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer:
		return true
	}
	return false
}

const (
	MinQuestionCount = 1
	MaxQuestionCount = 20
)

// PassRatio is the score fraction at which a result counts as passed.
const PassRatio = 0.7

var (
	ErrAttemptSubmitted = errors.New("quiz attempt already submitted")
	ErrAnswerOutOfRange = errors.New("answer index out of range")
)

// Question is one generated quiz question. Options is empty for short answers.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// QuizAttempt is one generated quiz plus the answers submitted against it.
type QuizAttempt struct {
	QuizID       uuid.UUID      `json:"quiz_id"`
	VideoID      string         `json:"video_id"`
	QuestionType QuestionType   `json:"question_type"`
	Questions    []Question     `json:"questions"`
	UserAnswers  map[int]string `json:"user_answers,omitempty"`
	Score        int            `json:"score"`
	Total        int            `json:"total"`
	CreatedAt    time.Time      `json:"created_at"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
}

// NewQuizAttempt creates an unanswered attempt shell.
func NewQuizAttempt(videoID string, qt QuestionType, questions []Question, now time.Time) *QuizAttempt {
	return &QuizAttempt{
		QuizID:       uuid.New(),
		VideoID:      videoID,
		QuestionType: qt,
		Questions:    questions,
		Total:        len(questions),
		CreatedAt:    now,
	}
}

// Submitted reports whether answers were already recorded.
func (a *QuizAttempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// Submit records answers and computes the score. An attempt accepts answers once.
func (a *QuizAttempt) Submit(answers map[int]string, now time.Time) error {
	if a.Submitted() {
		return ErrAttemptSubmitted
	}
	score, err := ScoreAnswers(a.Questions, answers)
	if err != nil {
		return err
	}

	recorded := make(map[int]string, len(answers))
	for i, ans := range answers {
		recorded[i] = ans
	}

	a.UserAnswers = recorded
	a.Score = score
	a.Total = len(a.Questions)
	a.SubmittedAt = &now
	return nil
}

// Passed reports whether the score reaches PassRatio.
func (a *QuizAttempt) Passed() bool {
	if a.Total == 0 {
		return false
	}
	return float64(a.Score)/float64(a.Total) >= PassRatio
}

// ScoreAnswers counts indices whose answer equals the question's correct answer exactly.
// Every key must address a question.
func ScoreAnswers(questions []Question, answers map[int]string) (int, error) {
	score := 0
	for i, ans := range answers {
		if i < 0 || i >= len(questions) {
			return 0, fmt.Errorf("%w: %d", ErrAnswerOutOfRange, i)
		}
		if ans == questions[i].CorrectAnswer {
			score++
		}
	}
	return score, nil
}

// QuizResult is a persisted, scored attempt.
type QuizResult struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"user_id"`
	QuizID       uuid.UUID      `json:"quiz_id"`
	VideoID      string         `json:"video_id"`
	QuestionType QuestionType   `json:"question_type"`
	Questions    []Question     `json:"questions"`
	UserAnswers  map[int]string `json:"user_answers"`
	Score        int            `json:"score"`
	Total        int            `json:"total"`
	CreatedAt    time.Time      `json:"created_at"`
}
