package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/middleware"
	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/service"
	ws "github.com/examdesk/examdesk-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the live attempt over WebSocket: a server-side
// countdown plus autosave and submit actions.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exams/:exam_id/stream?token=...
// Pushes a tick event every second with the authoritative countdown and
// accepts autosave/submit/ping actions on the same connection.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	studentID := claims.UserID
	ctx := c.Request.Context()

	state, err := h.sessionService.Resume(ctx, examID, studentID)
	if err != nil {
		conn.WriteError("no session for this exam")
		return
	}
	if state.Status != service.AttemptResumable {
		conn.WriteError("attempt is not active")
		return
	}

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("student connected")

	done := make(chan struct{})
	go h.tickLoop(conn, examID, studentID, state.RemainingSeconds, done, wsLog)
	defer close(done)

	for {
		var msg ws.RequestEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			} else {
				wsLog.Debug().Msg("connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			req := &model.AutosaveRequest{
				Answers:          msg.Answers,
				RemainingSeconds: msg.RemainingSeconds,
			}
			saved, err := h.sessionService.Autosave(ctx, examID, studentID, req)
			if err != nil {
				conn.WriteError("save failed")
				continue
			}
			conn.WriteTyped(ws.SavedEvent{Event: ws.EventSaved, RemainingSeconds: saved.RemainingSeconds})

		case ws.ActionSubmit:
			sess, err := h.sessionService.Submit(ctx, examID, studentID, msg.Answers)
			if err != nil {
				wsLog.Error().Err(err).Msg("submit over websocket")
				conn.WriteError("submit failed")
				continue
			}
			conn.WriteTyped(ws.GradedEvent{Event: ws.EventGraded, Score: sess.Score})
			return

		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// tickLoop pushes the countdown every second. The server clock is the
// authority; the client renders whatever it receives.
func (h *WSHandler) tickLoop(conn *ws.Conn, examID, studentID uuid.UUID, remaining int, done <-chan struct{}, wsLog zerolog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if remaining > 0 {
				remaining--
			}
			if err := conn.WriteTyped(ws.TickEvent{Event: ws.EventTick, RemainingSeconds: remaining}); err != nil {
				return
			}
			if remaining == 0 {
				wsLog.Info().Msg("countdown reached zero")
				// The expiry worker owns the auto-submit; the stream
				// just stops counting.
				return
			}
		}
	}
}
