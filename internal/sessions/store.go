// Package sessions implements Session Memory (C2, spec.md §4.2): durable,
// TTL'd per-session conversation log, execution state, and tool
// observation history. Grounded on the teacher's internal/sessions
// package — the Store interface below generalizes
// haasonsaas-nexus/internal/sessions/store.go's CRUD/history split into
// the three key families spec.md §6 names
// (conversation:history / agent:state / agent:tools), and the locking
// primitives are adapted from its locker.go (DBLocker: lease + heartbeat
// renewal) onto a Redis backend instead of Postgres.
package sessions

import (
	"context"
	"time"

	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Defaults from spec.md §3.
const (
	DefaultMaxHistoryLength = 50
	DefaultHistoryTTL       = 24 * time.Hour
	DefaultStateTTL         = time.Hour
	DefaultObservationRing  = 100
)

// Store is the backing key-value store interface for Session Memory
// (spec.md §4.2). Reads and state saves are a single round-trip; the
// two append methods may read the current value before writing. Reading a
// nonexistent session yields empty/zero results, never an error
// (spec.md §3 invariant d); on backing-store error, reads return empty
// and log a warning while writes propagate the error (spec.md §4.2).
type Store interface {
	// AppendMessage pushes msg onto the session's conversation log,
	// trims to maxLen, and refreshes the log's TTL.
	AppendMessage(ctx context.Context, sessionID string, msg models.Message, maxLen int, ttl time.Duration) error

	// LoadLog returns up to limit of the most recent messages in
	// chronological order. limit<=0 means "no limit" (return the full
	// bounded log).
	LoadLog(ctx context.Context, sessionID string, limit int) ([]models.Message, error)

	// SaveState overwrites the session's execution state with a fresh TTL.
	SaveState(ctx context.Context, sessionID string, state models.ExecutionState, ttl time.Duration) error

	// LoadState returns the session's execution state, or nil if absent.
	LoadState(ctx context.Context, sessionID string) (*models.ExecutionState, error)

	// RecordObservation pushes an observation record onto the session's
	// bounded ring, trims to maxLen, and refreshes the ring's TTL.
	RecordObservation(ctx context.Context, sessionID string, rec models.ToolObservationRecord, maxLen int, ttl time.Duration) error

	// LoadObservations returns the session's observation ring, oldest
	// first.
	LoadObservations(ctx context.Context, sessionID string) ([]models.ToolObservationRecord, error)

	// ClearSession deletes every key belonging to sessionID.
	ClearSession(ctx context.Context, sessionID string) error
}

// Locker provides the per-(principal, session_id) advisory lock from
// spec.md §5: acquire on kernel entry, release on any terminal transition
// including SUSPENDED. Acquisition blocks up to a bounded timeout and then
// fails with errtax.KindSessionBusy.
type Locker interface {
	// Lock blocks until the lock is acquired, ctx is done, or the
	// implementation's acquire timeout elapses. The returned release
	// function must be called exactly once.
	Lock(ctx context.Context, sessionID string) (release func(), err error)
}
