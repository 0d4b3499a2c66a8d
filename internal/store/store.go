// Package store provides the session history recorder.
//
// The recorder is an audit trail: the bridge writes to it best-effort and
// the live session registry never reads it back. Losing it never breaks a
// client connection.
package store

import (
	"context"
	"time"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/domain"
)

// Recorder persists bridged session history.
type Recorder interface {
	// RecordSession writes a new session record in state ACTIVE.
	RecordSession(ctx context.Context, rec *domain.SessionRecord) error

	// UpdateSessionState moves a session record to a final state.
	UpdateSessionState(ctx context.Context, sessionName, state string) error

	// RecordStatus writes one pushed status update. Re-recording the same
	// (session, activity) pair is a no-op.
	RecordStatus(ctx context.Context, rec *domain.StatusRecord) error

	// ListRecentSessions returns the most recently updated session records.
	ListRecentSessions(ctx context.Context, limit int) ([]*domain.SessionRecord, error)

	// ListStatuses returns recorded status updates for a session, oldest first.
	ListStatuses(ctx context.Context, sessionName string, limit int) ([]*domain.StatusRecord, error)

	// PruneHistory deletes records older than maxAge and reports how many
	// sessions and status updates were removed.
	PruneHistory(ctx context.Context, maxAge time.Duration) (sessions int64, statuses int64, err error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database.
	Close() error
}
