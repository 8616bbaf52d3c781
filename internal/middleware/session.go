package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
)

const (
	// ContextKeySession is the Gin context key for the resolved session.
	ContextKeySession = "session"
)

// SessionResolver turns a token into its stored session.
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*model.Session, error)
}

// RequireSession resolves the request token to a live session and stores it
// on the context. Missing, forged, expired and logged-out tokens are rejected.
func RequireSession(auth SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFromRequest(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		sess, err := auth.CurrentSession(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrSessionNotFound) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
				return
			}
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Session lookup failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// GetSession retrieves the session set by RequireSession.
func GetSession(c *gin.Context) *model.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, ok := val.(*model.Session)
	if !ok {
		return nil
	}
	return sess
}
