// Package session defines the per-session conversation log. Two backends
// implement Store: a durable redis one and an in-process fallback with TTL
// timers. Which one serves a process is decided once, at startup, from
// configuration presence; callers never branch on the backend.
package session

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a session's history. Timestamp is unix millis,
// stamped by the store at append time when zero.
type Turn struct {
	Message   string `json:"message"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// Store is an append-only, TTL-backed turn log keyed by session id.
// Appends are atomic inserts; the log is never reordered. Every write
// resets the session's TTL.
type Store interface {
	// Append adds turn to the session's log and refreshes its TTL.
	Append(ctx context.Context, sessionID string, turn Turn) error
	// History returns the full log oldest first; an unknown or expired
	// session yields an empty slice. Malformed stored entries are skipped.
	History(ctx context.Context, sessionID string) ([]Turn, error)
	// Reset deletes the log and cancels any pending expiry. Idempotent.
	Reset(ctx context.Context, sessionID string) error
}
