package service

import (
	"errors"

	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/repository"
)

// Validation errors.
var (
	ErrEmptyQuery           = errors.New("search query is empty")
	ErrInvalidQuestionCount = errors.New("question count must be between 1 and 20")
	ErrInvalidQuestionType  = errors.New("unsupported question type")
	ErrInvalidAnswers       = errors.New("answers reference unknown questions")
	ErrEmptyFeedback        = errors.New("feedback text is empty")
	ErrInvalidFeedbackType  = errors.New("unsupported feedback type")
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = repository.ErrDuplicateUsername
	ErrDuplicateEmail     = repository.ErrDuplicateEmail
	ErrSessionNotFound    = repository.ErrSessionNotFound
	ErrLoginRequired      = errors.New("login required")
)

// External service errors.
var (
	ErrSearchFailed          = errors.New("video search failed")
	ErrVideoNotFound         = errors.New("video not found")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrGenerationFailed      = errors.New("quiz generation failed")
	ErrGeneratorUnavailable  = errors.New("quiz generator is not configured")
)

// Workflow state errors.
var (
	ErrNoActiveAttempt = errors.New("no active quiz attempt")
	ErrNoTranscript    = errors.New("no transcript loaded")
	ErrActionInFlight  = errors.New("another action is in flight for this session")
)

// ErrPersistence wraps a failed write the user should retry.
var ErrPersistence = errors.New("could not persist result")

// ErrorKind groups errors by how callers should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindExternal
	KindState
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindExternal:
		return "external"
	case KindState:
		return "state"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{ErrEmptyQuery, ErrInvalidQuestionCount, ErrInvalidQuestionType, ErrInvalidAnswers,
		ErrEmptyFeedback, ErrInvalidFeedbackType, model.ErrAnswerOutOfRange}},
	{KindAuth, []error{ErrInvalidCredentials, ErrDuplicateUsername, ErrDuplicateEmail, ErrSessionNotFound, ErrLoginRequired}},
	{KindExternal, []error{ErrSearchFailed, ErrVideoNotFound, ErrTranscriptUnavailable, ErrGenerationFailed, ErrGeneratorUnavailable}},
	{KindState, []error{ErrNoActiveAttempt, ErrNoTranscript, ErrActionInFlight, model.ErrAttemptSubmitted}},
	{KindPersistence, []error{ErrPersistence}},
}

// Kind classifies err. Unknown errors are KindInternal.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindInternal
}
