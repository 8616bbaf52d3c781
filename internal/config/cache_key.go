package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionKey returns the cache key holding a client session record.
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// WorkflowStateKey returns the cache key for a session's workflow state.
func (r *CacheKeyStruct) WorkflowStateKey(sessionID string) string {
	return fmt.Sprintf("workflow:%s", sessionID)
}

// WorkflowLockKey returns the cache key guarding a session's in-flight action.
func (r *CacheKeyStruct) WorkflowLockKey(sessionID string) string {
	return fmt.Sprintf("workflow:%s:lock", sessionID)
}

var CacheKey = NewCacheKeyStruct()
