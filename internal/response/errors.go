package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrUsernameTaken      ErrCode = "USERNAME_TAKEN"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrLoginRequired      ErrCode = "LOGIN_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Video & Quiz ──────────────────────────────────────────────────
	ErrSearchFailed          ErrCode = "SEARCH_FAILED"
	ErrVideoNotFound         ErrCode = "VIDEO_NOT_FOUND"
	ErrTranscriptUnavailable ErrCode = "TRANSCRIPT_UNAVAILABLE"
	ErrGenerationFailed      ErrCode = "GENERATION_FAILED"
	ErrGeneratorUnavailable  ErrCode = "GENERATOR_UNAVAILABLE"

	// ─── Workflow state ────────────────────────────────────────────────
	ErrNoActiveAttempt ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrNoTranscript    ErrCode = "NO_TRANSCRIPT"
	ErrActionInFlight  ErrCode = "ACTION_IN_FLIGHT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrPersistence ErrCode = "PERSISTENCE_ERROR"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrUsernameTaken:
		return "That username is already taken."
	case ErrEmailTaken:
		return "That email is already registered."
	case ErrSessionInvalidated:
		return "Your session has ended. Please start a new one."
	case ErrTokenRequired:
		return "A session token is required."
	case ErrTokenInvalid:
		return "The session token is invalid."
	case ErrLoginRequired:
		return "You need to be logged in to do that."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Video & Quiz ──────────────────────────────────────────────────
	case ErrSearchFailed:
		return "Video search failed. Please try again."
	case ErrVideoNotFound:
		return "Video not found."
	case ErrTranscriptUnavailable:
		return "No transcript is available for this video."
	case ErrGenerationFailed:
		return "Quiz generation failed. Please try again."
	case ErrGeneratorUnavailable:
		return "Quiz generation is not configured on this server."

	// ─── Workflow state ────────────────────────────────────────────────
	case ErrNoActiveAttempt:
		return "There is no open quiz to submit."
	case ErrNoTranscript:
		return "Select a video with a transcript first."
	case ErrActionInFlight:
		return "Another action is still running for this session."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrPersistence:
		return "Your result could not be saved. Please submit again."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
