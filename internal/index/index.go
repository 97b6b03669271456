package index

import (
	"context"
	"time"
)

// NoteIndex defines the catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	RecentNotes(since time.Time, limit int) ([]NoteRow, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Ledger records routed messages and reports usage.
type Ledger interface {
	RecordRoute(ctx context.Context, r RouteRecord) error
	UsageSince(ctx context.Context, since time.Time) ([]AgentUsage, error)
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ NoteIndex = (*DB)(nil)
	_ Ledger    = (*DB)(nil)
)
