package websocket

import "github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventProgress Event = "progress"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the job state at connect time.
type SnapshotResponse struct {
	Event Event               `json:"event"`
	Job   model.GenerationJob `json:"job"`
}

// ProgressResponse relays one job event.
type ProgressResponse struct {
	Event Event          `json:"event"`
	Data  model.JobEvent `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
