package websocket

import "github.com/examdesk/examdesk-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope carries every client message. Answers and the timer are
// only meaningful for autosave and submit.
type RequestEnvelope struct {
	Action           Action                       `json:"action"`
	Answers          map[string]model.AnswerValue `json:"answers,omitempty"`
	RemainingSeconds *int                         `json:"remaining_seconds,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick   Event = "tick"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// TickEvent is pushed every second with the server-side countdown.
type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// SavedEvent acknowledges an autosave with the clamped timer value.
type SavedEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// GradedEvent reports the terminal state after a submit.
type GradedEvent struct {
	Event Event    `json:"event"`
	Score *float64 `json:"score"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
