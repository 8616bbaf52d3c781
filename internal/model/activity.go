package model

import "time"

type ActivityAction string

const (
	ActivityRegister ActivityAction = "register"
	ActivityLogin    ActivityAction = "login"
	ActivityLogout   ActivityAction = "logout"
)

// ActivityLog is one audit trail entry.
type ActivityLog struct {
	UserID    int64          `json:"user_id"`
	Action    ActivityAction `json:"action"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"user_agent"`
	CreatedAt time.Time      `json:"created_at"`
}

// ClientInfo is the request metadata recorded with activity events.
type ClientInfo struct {
	IP        string
	UserAgent string
}
