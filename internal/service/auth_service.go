package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the credential store the auth service reads and writes.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// SessionStore holds session records keyed by session id.
type SessionStore interface {
	Save(ctx context.Context, sess *model.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

// StateDeleter drops the workflow state bound to a session.
type StateDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// ActivityRecorder accepts audit events. Recording never fails the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *model.ActivityLog)
}

// Claims is the session token payload. Only the JWT ID (the session id) and
// expiry are trusted; identity always comes from the stored session record.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthService handles registration, credential checks and session lifecycle.
type AuthService struct {
	cfg       *config.Config
	users     UserStore
	sessions  SessionStore
	workflows StateDeleter
	activity  ActivityRecorder
	log       zerolog.Logger

	// dummyHash is compared against on unknown usernames so both failure paths cost one bcrypt check.
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, users UserStore, sessions SessionStore, workflows StateDeleter, activity ActivityRecorder, log zerolog.Logger) (*AuthService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		workflows: workflows,
		activity:  activity,
		log:       log.With().Str("component", "auth_service").Logger(),
		dummyHash: dummy,
	}, nil
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register creates a user after checking username then email availability.
// The unique indexes still decide races between concurrent registrations.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest, client model.ClientInfo) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.record(ctx, u.ID, model.ActivityRegister, client)
	s.log.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("User registered")
	return u, nil
}

// Authenticate checks credentials and opens an authenticated session.
// Unknown usernames, wrong passwords and inactive accounts all return ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, client model.ClientInfo) (*model.Session, string, *model.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil, fmt.Errorf("lookup user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, "", nil, ErrInvalidCredentials
	}

	if err := s.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, "", nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, "", nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", u.ID).Msg("Failed to update last login")
	}

	uid := u.ID
	sess, token, err := s.openSession(ctx, &uid, u.Username)
	if err != nil {
		return nil, "", nil, err
	}

	s.record(ctx, u.ID, model.ActivityLogin, client)
	return sess, token, u, nil
}

// NewAnonymousSession opens a session with no user attached.
func (s *AuthService) NewAnonymousSession(ctx context.Context) (*model.Session, string, error) {
	return s.openSession(ctx, nil, "")
}

// CurrentSession resolves a token to its live session record.
func (s *AuthService) CurrentSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// CurrentUser loads the account behind an authenticated session.
func (s *AuthService) CurrentUser(ctx context.Context, sess *model.Session) (*model.User, error) {
	if sess == nil || !sess.Authenticated || sess.UserID == nil {
		return nil, ErrLoginRequired
	}
	return s.users.GetByID(ctx, *sess.UserID)
}

// Logout destroys the session and its workflow state from any state.
func (s *AuthService) Logout(ctx context.Context, sess *model.Session, client model.ClientInfo) error {
	if err := s.DestroySession(ctx, sess.ID); err != nil {
		return err
	}
	if sess.Authenticated && sess.UserID != nil {
		s.record(ctx, *sess.UserID, model.ActivityLogout, client)
	}
	return nil
}

// DestroySession removes a session and its workflow state without recording activity.
func (s *AuthService) DestroySession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.workflows.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete workflow state: %w", err)
	}
	return nil
}

// ValidateToken parses and validates a session token.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) openSession(ctx context.Context, userID *int64, username string) (*model.Session, string, error) {
	now := time.Now()
	sess := &model.Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		Username:      username,
		Authenticated: userID != nil,
		CreatedAt:     now.UTC(),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.sessions.Save(ctx, sess, s.cfg.SessionTTL); err != nil {
		return nil, "", err
	}
	return sess, signed, nil
}

func (s *AuthService) record(ctx context.Context, userID int64, action model.ActivityAction, client model.ClientInfo) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, &model.ActivityLog{
		UserID:    userID,
		Action:    action,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: time.Now().UTC(),
	})
}
