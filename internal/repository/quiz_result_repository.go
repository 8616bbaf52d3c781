package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tubequiz/internal/model"
)

// QuizResultRepository handles persisted quiz results.
type QuizResultRepository struct {
	pool *pgxpool.Pool
}

// NewQuizResultRepository creates a new QuizResultRepository.
func NewQuizResultRepository(pool *pgxpool.Pool) *QuizResultRepository {
	return &QuizResultRepository{pool: pool}
}

// Create stores a scored attempt. Inserting the same quiz_id twice is a no-op,
// reported through the inserted flag.
func (r *QuizResultRepository) Create(ctx context.Context, res *model.QuizResult) (bool, error) {
	questions, err := json.Marshal(res.Questions)
	if err != nil {
		return false, fmt.Errorf("marshal questions: %w", err)
	}
	answers, err := json.Marshal(res.UserAnswers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_results (user_id, quiz_id, video_id, question_type, questions, user_answers, score, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (quiz_id) DO NOTHING`,
		res.UserID, res.QuizID, res.VideoID, res.QuestionType, questions, answers, res.Score, res.Total,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a page of the user's results, newest first, plus the total count.
func (r *QuizResultRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.QuizResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_results WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, quiz_id, video_id, question_type, questions, user_answers, score, total, created_at
		 FROM quiz_results
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.QuizResult{}
	for rows.Next() {
		var (
			res       model.QuizResult
			questions []byte
			answers   []byte
		)
		if err := rows.Scan(&res.ID, &res.UserID, &res.QuizID, &res.VideoID, &res.QuestionType,
			&questions, &answers, &res.Score, &res.Total, &res.CreatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(questions, &res.Questions); err != nil {
			return nil, 0, fmt.Errorf("decode questions of %s: %w", res.QuizID, err)
		}
		if err := json.Unmarshal(answers, &res.UserAnswers); err != nil {
			return nil, 0, fmt.Errorf("decode answers of %s: %w", res.QuizID, err)
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
