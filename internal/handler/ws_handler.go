package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/middleware"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
	ws "github.com/stemsi/tubequiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams workflow actions and views over a WebSocket.
type WSHandler struct {
	workflow Workflow
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(workflow Workflow, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		workflow: workflow,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// WorkflowStream godoc
// WS /ws/v1/workflow?token=...
// Sends the current view on connect, then one view (or error) per action frame.
func (h *WSHandler) WorkflowStream(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	wsLog := h.log.With().Str("session_id", sess.ID).Logger()
	wsLog.Info().Msg("Client connected")

	view, err := h.workflow.View(ctx, sess)
	if err != nil {
		h.writeFailure(conn, err)
		return
	}
	if err := ws.WriteTyped(conn, ws.ViewResponse{Event: ws.EventView, View: view}); err != nil {
		return
	}

	for {
		raw, err := ws.ReadFrame(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Action == ws.ActionPing {
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			continue
		}

		action, err := ws.DecodeAction(raw)
		if err != nil {
			h.writeDecodeError(conn, err)
			continue
		}

		view, err := h.workflow.Dispatch(ctx, sess, action)
		if err != nil {
			h.writeFailure(conn, err)
			if errors.Is(err, service.ErrSessionNotFound) {
				wsLog.Info().Msg("Session ended, closing stream")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(response.ErrSessionInvalidated)),
					time.Now().Add(time.Second))
				return
			}
			continue
		}
		if err := ws.WriteTyped(conn, ws.ViewResponse{Event: ws.EventView, View: view}); err != nil {
			wsLog.Warn().Err(err).Msg("Write failed")
			return
		}
	}
}

func (h *WSHandler) writeDecodeError(conn *websocket.Conn, err error) {
	var fe *ws.FieldError
	switch {
	case errors.As(err, &fe):
		_ = ws.WriteError(conn, string(response.ErrValidation), response.GetMessage(response.ErrValidation), "", fe.Fields)
	case errors.Is(err, ws.ErrUnknownAction):
		_ = ws.WriteError(conn, string(response.ErrUnknownAction), response.GetMessage(response.ErrUnknownAction), err.Error(), nil)
	default:
		_ = ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), err.Error(), nil)
	}
}

func (h *WSHandler) writeFailure(conn *websocket.Conn, err error) {
	status, code, detail := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", string(code)).Msg("Workflow action failed")
	}
	_ = ws.WriteError(conn, string(code), response.GetMessage(code), detail, nil)
}
