package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
)

// ActivityWriter stores a single audit row synchronously.
type ActivityWriter interface {
	Create(ctx context.Context, a *model.ActivityLog) error
}

// ActivityService queues audit events for the ActivityWorker. When the queue
// is unreachable the event is written directly; if that fails too it is dropped.
type ActivityService struct {
	rdb  *redis.Client
	repo ActivityWriter
	log  zerolog.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(rdb *redis.Client, repo ActivityWriter, log zerolog.Logger) *ActivityService {
	return &ActivityService{
		rdb:  rdb,
		repo: repo,
		log:  log.With().Str("component", "activity_service").Logger(),
	}
}

// Record implements ActivityRecorder.
func (s *ActivityService) Record(ctx context.Context, entry *model.ActivityLog) {
	raw, err := json.Marshal(entry)
	if err == nil {
		err = s.rdb.RPush(ctx, config.WorkerKey.PersistActivityQueue, raw).Err()
	}
	if err == nil {
		return
	}

	s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("Activity enqueue failed, writing directly")
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Int64("user_id", entry.UserID).
			Str("action", string(entry.Action)).
			Msg("Activity dropped")
	}
}
