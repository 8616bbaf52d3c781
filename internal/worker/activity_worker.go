package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
)

const (
	ActivityBatchSize    = 50
	ActivityBatchTimeout = 2 * time.Second
	ActivityPollTimeout  = 1 * time.Second
)

// ActivitySink persists audit rows.
type ActivitySink interface {
	Create(ctx context.Context, a *model.ActivityLog) error
	BulkCreate(ctx context.Context, batch []*model.ActivityLog) error
}

// ActivityWorker moves queued audit events from Redis into Postgres in batches.
type ActivityWorker struct {
	rdb  *redis.Client
	sink ActivitySink
	log  zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

func NewActivityWorker(rdb *redis.Client, sink ActivitySink, log zerolog.Logger) *ActivityWorker {
	return &ActivityWorker{
		rdb:          rdb,
		sink:         sink,
		log:          log.With().Str("component", "activity_worker").Logger(),
		batchSize:    ActivityBatchSize,
		batchTimeout: ActivityBatchTimeout,
		pollTimeout:  ActivityPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes the pending batch and
// drains whatever is still queued.
func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	queue := config.WorkerKey.PersistActivityQueue
	batch := make([]*model.ActivityLog, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, queue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			if entry := w.decode(item[1]); entry != nil {
				batch = append(batch, entry)
			}
		}
	}
}

func (w *ActivityWorker) decode(raw string) *model.ActivityLog {
	var entry model.ActivityLog
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return nil
	}
	return &entry
}

// ----------------------------------------------------------------
// Bulk insert with single-row fallback
// ----------------------------------------------------------------

// flushSafe writes batch and returns how many entries had to be requeued.
func (w *ActivityWorker) flushSafe(ctx context.Context, batch []*model.ActivityLog) int {
	if len(batch) == 0 {
		return 0
	}

	err := w.sink.BulkCreate(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Activity batch stored")
		return 0
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk activity insert failed, using fallback")

	requeued := 0
	for _, entry := range batch {
		if err := w.sink.Create(ctx, entry); err != nil {
			w.log.Error().Err(err).Int64("user_id", entry.UserID).Msg("Single activity insert failed, requeueing")
			if err := w.requeue(ctx, entry); err != nil {
				w.log.Error().Err(err).
					Int64("user_id", entry.UserID).
					Str("action", string(entry.Action)).
					Msg("Activity entry dropped")
				continue
			}
			requeued++
		}
	}
	return requeued
}

func (w *ActivityWorker) requeue(ctx context.Context, entry *model.ActivityLog) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistActivityQueue, raw).Err(); err != nil {
		return fmt.Errorf("requeue activity: %w", err)
	}
	return nil
}

// drain empties the queue before shutdown. It stops at the first batch that
// had to be requeued so a dead database cannot spin it forever.
func (w *ActivityWorker) drain(ctx context.Context) {
	queue := config.WorkerKey.PersistActivityQueue
	drained := 0

	for {
		raws, err := w.rdb.LPopCount(ctx, queue, w.batchSize).Result()
		if err != nil || len(raws) == 0 {
			break
		}

		batch := make([]*model.ActivityLog, 0, len(raws))
		for _, raw := range raws {
			if entry := w.decode(raw); entry != nil {
				batch = append(batch, entry)
			}
		}

		requeued := w.flushSafe(ctx, batch)
		drained += len(batch) - requeued
		if requeued > 0 {
			break
		}
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
