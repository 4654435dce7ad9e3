// Package store provides the durable session store. Sessions expire a fixed
// interval after creation regardless of access; the TTL is not sliding.
//
// No store implementation locks across callers. Two processes racing to
// write the same session is tolerated: writes are idempotent upserts keyed
// by session ID, and the orchestrator's idempotency guard prevents double
// side effects.
package store

import (
	"context"
	"time"

	"github.com/jobmatch/jobmatch-be/internal/session"
)

// TTL is how long a session survives after creation.
const TTL = 2 * time.Hour

// SessionStore is the durable key/value record of session state across
// process restarts. The orchestrator never constructs its own store; one is
// always injected so tests can run against the in-memory implementation.
type SessionStore interface {
	// Put stores or replaces the session keyed by its ID.
	Put(ctx context.Context, s session.Session) error

	// Get returns the session for id, or session.ErrSessionNotFound when
	// it is absent or expired.
	Get(ctx context.Context, id string) (session.Session, error)

	// Patch applies a partial update to an existing session. It is
	// all-or-nothing: either the record is replaced with the merged
	// fields, or it fails without mutation. Patching a missing key
	// returns session.ErrSessionNotFound and never creates a record.
	Patch(ctx context.Context, id string, p session.Patch) error
}

// remainingTTL returns how much of the fixed TTL a session created at
// createdAt still has, measured from now.
func remainingTTL(createdAt, now time.Time) time.Duration {
	return TTL - now.Sub(createdAt)
}
