package service

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultHistoryPerPage = 20
	MaxHistoryPerPage     = 100

	// exportPageSize is the batch size used while collecting rows for an export.
	exportPageSize = 500
	// maxExportRows bounds a single workbook.
	maxExportRows = 10000

	historySheet = "Quiz Results"
)

// ResultLister reads stored quiz results for one user, newest first.
type ResultLister interface {
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.QuizResult, int, error)
}

// HistoryService serves a logged-in user's past quiz results.
type HistoryService struct {
	results ResultLister
	log     zerolog.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(results ResultLister, log zerolog.Logger) *HistoryService {
	return &HistoryService{
		results: results,
		log:     log.With().Str("component", "history_service").Logger(),
	}
}

// List returns one page of the session user's results and the total count.
func (s *HistoryService) List(ctx context.Context, sess *model.Session, page, perPage int) ([]model.QuizResultSummary, int, error) {
	userID, err := sessionUserID(sess)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultHistoryPerPage
	}
	if perPage > MaxHistoryPerPage {
		perPage = MaxHistoryPerPage
	}

	rows, total, err := s.results.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list quiz results: %w", err)
	}

	summaries, err := summarize(rows)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// Export writes every result of the session user as an xlsx workbook to w.
func (s *HistoryService) Export(ctx context.Context, sess *model.Session, w io.Writer) error {
	userID, err := sessionUserID(sess)
	if err != nil {
		return err
	}

	var rows []model.QuizResult
	for offset := 0; offset < maxExportRows; offset += exportPageSize {
		batch, total, err := s.results.ListByUser(ctx, userID, exportPageSize, offset)
		if err != nil {
			return fmt.Errorf("list quiz results: %w", err)
		}
		rows = append(rows, batch...)
		if len(batch) < exportPageSize || len(rows) >= total {
			break
		}
	}

	summaries, err := summarize(rows)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"Date (UTC)", "Video ID", "Question Type", "Score", "Total", "Percentage", "Passed", "Quiz ID"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(historySheet, 1, 1, bold)
	}
	_ = f.SetColWidth(historySheet, "A", "A", 20)
	_ = f.SetColWidth(historySheet, "H", "H", 38)

	for i, r := range summaries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		passed := "no"
		if r.Passed {
			passed = "yes"
		}
		row := []interface{}{
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.VideoID,
			string(r.QuestionType),
			r.Score,
			r.Total,
			r.Percentage,
			passed,
			r.QuizID.String(),
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	s.log.Info().Int64("user_id", userID).Int("rows", len(summaries)).Msg("Quiz history exported")
	return nil
}

func sessionUserID(sess *model.Session) (int64, error) {
	if sess == nil || !sess.Authenticated || sess.UserID == nil {
		return 0, ErrLoginRequired
	}
	return *sess.UserID, nil
}

func summarize(rows []model.QuizResult) ([]model.QuizResultSummary, error) {
	summaries := make([]model.QuizResultSummary, 0, len(rows))
	if err := copier.Copy(&summaries, &rows); err != nil {
		return nil, fmt.Errorf("project quiz results: %w", err)
	}
	for i := range summaries {
		if summaries[i].Total > 0 {
			ratio := float64(summaries[i].Score) / float64(summaries[i].Total)
			summaries[i].Percentage = math.Round(ratio*1000) / 10
			summaries[i].Passed = ratio >= model.PassRatio
		}
	}
	return summaries, nil
}
