package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
)

var ErrLockHeld = errors.New("workflow lock is held")

// unlockScript deletes the lock only when it still carries the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WorkflowStore persists per-session workflow state and the one-action-at-a-time lock.
type WorkflowStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewWorkflowStore creates a WorkflowStore whose state keys expire after ttl.
func NewWorkflowStore(rdb *redis.Client, ttl time.Duration) *WorkflowStore {
	return &WorkflowStore{rdb: rdb, ttl: ttl}
}

// Load returns the stored state, or a fresh Idle state when none exists.
func (s *WorkflowStore) Load(ctx context.Context, sessionID string) (*model.WorkflowState, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.WorkflowStateKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.NewWorkflowState(sessionID), nil
		}
		return nil, fmt.Errorf("get workflow state: %w", err)
	}

	var st model.WorkflowState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal workflow state: %w", err)
	}
	st.SessionID = sessionID
	return &st, nil
}

// Save writes the state and refreshes its TTL.
func (s *WorkflowStore) Save(ctx context.Context, st *model.WorkflowState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal workflow state: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.WorkflowStateKey(st.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store workflow state: %w", err)
	}
	return nil
}

// Delete drops the state of a session. A held lock stays with its owner and
// expires or is released by it.
func (s *WorkflowStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, config.CacheKey.WorkflowStateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete workflow state: %w", err)
	}
	return nil
}

// Lock acquires the session's action lock for ttl. It returns the token needed
// to release it, or ErrLockHeld when another action owns the lock.
func (s *WorkflowStore) Lock(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.WorkflowLockKey(sessionID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire workflow lock: %w", err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Unlock releases the lock if token still owns it.
func (s *WorkflowStore) Unlock(ctx context.Context, sessionID, token string) error {
	return unlockScript.Run(ctx, s.rdb, []string{config.CacheKey.WorkflowLockKey(sessionID)}, token).Err()
}
