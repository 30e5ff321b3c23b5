package driven

import (
	"context"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// MetadataTracker is the persistent ledger of (key, checksum, version)
// rows used for cross-run change detection and cleanup of stale
// content. Each call commits or rolls back as a whole; the job relies
// on per-operation transactional isolation, never run-level locking.
type MetadataTracker interface {
	// LatestRecord returns the most recently recorded version for a
	// key, ordered by version descending, or nil when the key has
	// never been recorded.
	LatestRecord(ctx context.Context, key string) (*domain.Record, error)

	// Record durably appends a ledger row. It never mutates or
	// deletes prior rows.
	Record(ctx context.Context, rec domain.Record) error

	// DeletePreviousEmbeddings removes all indexed content for a key
	// from the content store. Ledger rows are untouched. A no-op when
	// nothing is indexed.
	DeletePreviousEmbeddings(ctx context.Context, key string) error
}
