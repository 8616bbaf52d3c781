package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/response"
)

const healthTimeout = 3 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger adapts a go-redis client to Pinger.
func RedisPinger(rdb *redis.Client) Pinger {
	return PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

// HealthHandler reports liveness of the process and its stores.
type HealthHandler struct {
	postgres  Pinger
	redis     Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. rdb is used for queue depth and may be nil.
func NewHealthHandler(postgres, redisPinger Pinger, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		postgres:  postgres,
		redis:     redisPinger,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status        string            `json:"status"`
	Uptime        string            `json:"uptime"`
	Checks        map[string]string `json:"checks"`
	Goroutines    int               `json:"goroutines"`
	GoVersion     string            `json:"go_version"`
	ActivityQueue int64             `json:"activity_queue"`
}

// Health godoc
// GET /health
// Pings Postgres and Redis. Answers 503 when either is down.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Checks:     map[string]string{},
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}

	for name, p := range map[string]Pinger{"postgres": h.postgres, "redis": h.redis} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			body.Checks[name] = "down"
			body.Status = "degraded"
			continue
		}
		body.Checks[name] = "ok"
	}

	if h.rdb != nil {
		body.ActivityQueue, _ = h.rdb.LLen(ctx, config.WorkerKey.PersistActivityQueue).Result()
	}

	status := http.StatusOK
	if body.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, body)
}
