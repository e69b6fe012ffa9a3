package domain

import "time"

// Routing keys for session lifecycle events.
const (
	EventLoginSucceeded = "session.login.succeeded"
	EventLoginFailed    = "session.login.failed"
	EventSessionExpired = "session.expired"
)

// SessionEvent is published whenever the portal session changes state.
// It never carries credentials, session tokens or account data.
type SessionEvent struct {
	Event      string    `json:"event"`
	DeviceID   string    `json:"device_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
