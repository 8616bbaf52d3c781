package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tubequiz/internal/model"
)

// ActivityRepository writes the login/logout audit trail.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Create inserts a single activity row.
func (r *ActivityRepository) Create(ctx context.Context, a *model.ActivityLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_logs (user_id, action, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.UserID, a.Action, a.IP, a.UserAgent, a.CreatedAt,
	)
	return err
}

// BulkCreate inserts a batch in one statement using UNNEST.
func (r *ActivityRepository) BulkCreate(ctx context.Context, batch []*model.ActivityLog) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	userIDs := make([]int64, 0, n)
	actions := make([]string, 0, n)
	ips := make([]string, 0, n)
	agents := make([]string, 0, n)
	createdAts := make([]time.Time, 0, n)

	for _, a := range batch {
		userIDs = append(userIDs, a.UserID)
		actions = append(actions, string(a.Action))
		ips = append(ips, a.IP)
		agents = append(agents, a.UserAgent)
		createdAts = append(createdAts, a.CreatedAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO activity_logs (user_id, action, ip, user_agent, created_at)
		SELECT * FROM UNNEST(
			$1::bigint[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::timestamptz[]
		)`,
		userIDs, actions, ips, agents, createdAts,
	)
	return err
}
