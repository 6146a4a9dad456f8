package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing  Action = "ping"
	ActionState Action = "state"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventState Event = "state"
	EventPong  Event = "pong"
)

// StateResponse is pushed to the client with the current session
// snapshot, either on request or after a server-side refresh.
type StateResponse struct {
	Event                Event         `json:"event"`
	Status               string        `json:"status"`
	CurrentIndex         int           `json:"current_index"`
	TimeRemainingSeconds int           `json:"time_remaining_seconds"`
	Progress             StateProgress `json:"progress"`
}

// StateProgress mirrors the session's progress summary.
type StateProgress struct {
	Total     int `json:"total"`
	Answered  int `json:"answered"`
	Flagged   int `json:"flagged"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
