package model

import "time"

// Session binds a client token to an identity. UserID is nil for anonymous sessions.
type Session struct {
	ID            string    `json:"session_id"`
	UserID        *int64    `json:"user_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
}
