package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tubequiz/internal/model"
)

// FeedbackRepository appends user feedback.
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// Create inserts a feedback record and fills its ID and timestamp.
func (r *FeedbackRepository) Create(ctx context.Context, f *model.Feedback) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO feedback (user_id, type, text, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		f.UserID, f.Type, f.Text, f.Status,
	).Scan(&f.ID, &f.CreatedAt)
}
