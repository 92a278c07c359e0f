package sessions

import "context"

// Store persists session state keyed by session id. Sessions are created
// on first upsert and retained afterwards: nothing in the service removes
// them, expiry is a deployment policy (the Redis backend's TTL).
type Store interface {
	// Upsert creates the session if absent and merges cmd into it.
	Upsert(ctx context.Context, sessionID string, cmd UpsertCommand) (*SessionState, error)

	// Find returns the session state.
	// Returns ErrNotFound if no session exists.
	Find(ctx context.Context, sessionID string) (*SessionState, error)
}
