// Package audit defines the audit event vocabulary emitted from the
// authentication flow. Events stay transport-agnostic so publishers can fan
// out to Kafka, logs, or nothing at all.
package audit

import (
	"context"
	"time"
)

// Action identifies what happened.
type Action string

const (
	ActionUserCreated     Action = "user_created"
	ActionLoginSucceeded  Action = "login_succeeded"
	ActionLoginFailed     Action = "login_failed"
	ActionSessionRedeemed Action = "session_redeemed"
	ActionTokenRefreshed  Action = "token_refreshed"
)

// Event captures a single auditable action in the auth flow.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	StravaID  int64     `json:"strava_id,omitempty"`
	// Reason carries failure context. Never token values.
	Reason string `json:"reason,omitempty"`
	// Device is the human-readable client label for session redemptions.
	Device    string `json:"device,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Publisher delivers audit events. Implementations must not block the auth
// flow on delivery; a failed publish is logged, not surfaced.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
