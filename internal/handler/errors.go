package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
)

// errorMapping is one row of the service-error to HTTP translation table.
type errorMapping struct {
	target error
	status int
	code   response.ErrCode
}

// errorTable is checked in order with errors.Is.
var errorTable = []errorMapping{
	// Validation
	{service.ErrEmptyQuery, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidQuestionCount, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidQuestionType, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidAnswers, http.StatusBadRequest, response.ErrValidation},
	{model.ErrAnswerOutOfRange, http.StatusBadRequest, response.ErrValidation},
	{service.ErrEmptyFeedback, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidFeedbackType, http.StatusBadRequest, response.ErrValidation},

	// Auth
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrDuplicateUsername, http.StatusConflict, response.ErrUsernameTaken},
	{service.ErrDuplicateEmail, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrSessionNotFound, http.StatusUnauthorized, response.ErrSessionInvalidated},
	{service.ErrLoginRequired, http.StatusUnauthorized, response.ErrLoginRequired},

	// External services
	{service.ErrSearchFailed, http.StatusBadGateway, response.ErrSearchFailed},
	{service.ErrVideoNotFound, http.StatusNotFound, response.ErrVideoNotFound},
	{service.ErrTranscriptUnavailable, http.StatusUnprocessableEntity, response.ErrTranscriptUnavailable},
	{service.ErrGenerationFailed, http.StatusBadGateway, response.ErrGenerationFailed},
	{service.ErrGeneratorUnavailable, http.StatusServiceUnavailable, response.ErrGeneratorUnavailable},

	// Workflow state
	{service.ErrNoActiveAttempt, http.StatusConflict, response.ErrNoActiveAttempt},
	{model.ErrAttemptSubmitted, http.StatusConflict, response.ErrNoActiveAttempt},
	{service.ErrNoTranscript, http.StatusConflict, response.ErrNoTranscript},
	{service.ErrActionInFlight, http.StatusConflict, response.ErrActionInFlight},

	// Persistence
	{service.ErrPersistence, http.StatusInternalServerError, response.ErrPersistence},
}

// classify maps a service error to an HTTP status, an error code and the
// detail message shown to the client. Unknown errors become INTERNAL_ERROR
// with no detail.
func classify(err error) (int, response.ErrCode, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			detail := ""
			switch service.Kind(err) {
			case service.KindValidation, service.KindExternal:
				detail = err.Error()
			}
			return m.status, m.code, detail
		}
	}
	return http.StatusInternalServerError, response.ErrInternal, ""
}

// failWithError writes the error envelope for err and logs anything the
// client cannot fix itself.
func failWithError(c *gin.Context, err error) {
	status, code, detail := classify(err)

	log := zerolog.Ctx(c.Request.Context())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Str("code", string(code)).Msg("Request failed")
	case service.Kind(err) == service.KindExternal:
		log.Warn().Err(err).Str("code", string(code)).Msg("External service error")
	}

	response.FailWithDetail(c, status, code, detail)
}

// clientInfo captures the caller's real address (honoring trusted proxies) and user agent.
func clientInfo(c *gin.Context) model.ClientInfo {
	return model.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
