package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/middleware"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/validator"
)

// Authenticator is the session and credential surface the auth endpoints need.
type Authenticator interface {
	NewAnonymousSession(ctx context.Context) (*model.Session, string, error)
	Register(ctx context.Context, req *model.RegisterRequest, client model.ClientInfo) (*model.User, error)
	Authenticate(ctx context.Context, username, password string, client model.ClientInfo) (*model.Session, string, *model.User, error)
	CurrentSession(ctx context.Context, token string) (*model.Session, error)
	CurrentUser(ctx context.Context, sess *model.Session) (*model.User, error)
	Logout(ctx context.Context, sess *model.Session, client model.ClientInfo) error
	DestroySession(ctx context.Context, sessionID string) error
}

// AuthHandler handles session and account endpoints.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// CreateSession godoc
// POST /api/v1/session
// Opens an anonymous session and returns its token.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	sess, token, err := h.auth.NewAnonymousSession(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"token":   token,
		"session": sess,
	})
}

// Register godoc
// POST /api/v1/auth/register
// Creates an account. The caller logs in separately.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// Login godoc
// POST /api/v1/auth/login
// Validates username + password and returns a token for a fresh authenticated
// session. A session token sent with the request is destroyed.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	sess, token, user, err := h.auth.Authenticate(ctx, req.Username, req.Password, clientInfo(c))
	if err != nil {
		failWithError(c, err)
		return
	}

	if old := middleware.TokenFromRequest(c); old != "" {
		if prev, err := h.auth.CurrentSession(ctx, old); err == nil && prev.ID != sess.ID {
			if err := h.auth.DestroySession(ctx, prev.ID); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", prev.ID).Msg("Failed to destroy previous session")
			}
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":   token,
		"session": sess,
		"user":    user,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Destroys the current session and its workflow state.
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), sess, clientInfo(c)); err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the current session and, when logged in, the user.
func (h *AuthHandler) Me(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	body := gin.H{"session": sess}
	if sess.Authenticated {
		user, err := h.auth.CurrentUser(c.Request.Context(), sess)
		if err != nil {
			failWithError(c, err)
			return
		}
		body["user"] = user
	}

	response.Success(c, http.StatusOK, body)
}
