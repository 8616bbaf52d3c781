package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tubequiz/internal/middleware"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// History reads a logged-in user's stored quiz results.
type History interface {
	List(ctx context.Context, sess *model.Session, page, perPage int) ([]model.QuizResultSummary, int, error)
	Export(ctx context.Context, sess *model.Session, w io.Writer) error
}

// HistoryHandler serves quiz history endpoints.
type HistoryHandler struct {
	history History
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history History) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListResults godoc
// GET /api/v1/me/quiz-results?page=1&per_page=20
func (h *HistoryHandler) ListResults(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(service.DefaultHistoryPerPage)))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > service.MaxHistoryPerPage {
		perPage = service.DefaultHistoryPerPage
	}

	results, total, err := h.history.List(c.Request.Context(), middleware.GetSession(c), page, perPage)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, results, response.NewPagination(page, perPage, total))
}

// ExportResults godoc
// GET /api/v1/me/quiz-results/export
// Streams every stored result as an xlsx download.
func (h *HistoryHandler) ExportResults(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.history.Export(c.Request.Context(), middleware.GetSession(c), &buf); err != nil {
		failWithError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz-results-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
