package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tubequiz/internal/middleware"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
	"github.com/stemsi/tubequiz/internal/validator"
)

// Workflow is the per-session state machine behind the quiz flow.
type Workflow interface {
	View(ctx context.Context, sess *model.Session) (*model.View, error)
	Dispatch(ctx context.Context, sess *model.Session, action model.Action) (*model.View, error)
}

// WorkflowHandler exposes each workflow action as a REST endpoint.
type WorkflowHandler struct {
	workflow Workflow
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(workflow Workflow) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// GetView godoc
// GET /api/v1/workflow
// Returns the current view without changing state.
func (h *WorkflowHandler) GetView(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.workflow.View(c.Request.Context(), sess)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Search godoc
// POST /api/v1/workflow/search
func (h *WorkflowHandler) Search(c *gin.Context) {
	var a model.SearchAction
	if fields := validator.Bind(c, &a); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.dispatch(c, a)
}

// SelectVideo godoc
// POST /api/v1/workflow/select
// Accepts a bare video id or any YouTube URL form.
func (h *WorkflowHandler) SelectVideo(c *gin.Context) {
	var a model.SelectVideoAction
	if fields := validator.Bind(c, &a); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.dispatch(c, a)
}

// GenerateQuiz godoc
// POST /api/v1/workflow/generate
func (h *WorkflowHandler) GenerateQuiz(c *gin.Context) {
	var a model.GenerateQuizAction
	if fields := validator.Bind(c, &a); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.dispatch(c, a)
}

// SubmitQuiz godoc
// POST /api/v1/workflow/submit
// Answers are keyed by question index; unanswered questions may be omitted.
func (h *WorkflowHandler) SubmitQuiz(c *gin.Context) {
	var a model.SubmitQuizAction
	if fields := validator.Bind(c, &a); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.dispatch(c, a)
}

// Reset godoc
// POST /api/v1/workflow/reset
func (h *WorkflowHandler) Reset(c *gin.Context) {
	h.dispatch(c, model.ResetAction{})
}

// OpenFeedback godoc
// POST /api/v1/workflow/feedback/open
func (h *WorkflowHandler) OpenFeedback(c *gin.Context) {
	h.dispatch(c, model.OpenFeedbackAction{})
}

// CloseFeedback godoc
// POST /api/v1/workflow/feedback/close
func (h *WorkflowHandler) CloseFeedback(c *gin.Context) {
	h.dispatch(c, model.CloseFeedbackAction{})
}

// ToggleDebug godoc
// POST /api/v1/workflow/debug
func (h *WorkflowHandler) ToggleDebug(c *gin.Context) {
	h.dispatch(c, model.ToggleDebugAction{})
}

// SubmitFeedback godoc
// POST /api/v1/feedback
// Stores feedback and closes the modal. A failed write still closes the modal
// and answers 202 with the warning as notice.
func (h *WorkflowHandler) SubmitFeedback(c *gin.Context) {
	var a model.SubmitFeedbackAction
	if fields := validator.Bind(c, &a); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, ok := h.run(c, a)
	if !ok {
		return
	}
	status := http.StatusOK
	if view.Notice == service.FeedbackWarning {
		status = http.StatusAccepted
	}
	response.Success(c, status, view)
}

func (h *WorkflowHandler) dispatch(c *gin.Context, a model.Action) {
	if view, ok := h.run(c, a); ok {
		response.Success(c, http.StatusOK, view)
	}
}

func (h *WorkflowHandler) run(c *gin.Context, a model.Action) (*model.View, bool) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	view, err := h.workflow.Dispatch(c.Request.Context(), sess, a)
	if err != nil {
		failWithError(c, err)
		return nil, false
	}
	return view, true
}
