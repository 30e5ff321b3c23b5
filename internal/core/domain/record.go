package domain

import "time"

// Record is one ledger entry in the metadata tracker: one row per
// (key, version) ever recorded. The latest row for a key always
// reflects what is currently indexed in the content store.
type Record struct {
	// Key is the stable logical name for the item. It must be
	// identical across runs for versioning to work.
	Key string

	// Checksum is the hex digest of the raw text at this version.
	Checksum string

	// Version is a monotonically increasing integer per key,
	// starting at 1.
	Version int

	// ChunkCount is the number of chunks indexed for this version.
	ChunkCount int

	// LastModified is the source-reported modification time, if any.
	LastModified *time.Time

	// Extra holds auxiliary metadata. Not used for identity.
	Extra map[string]any

	// CreatedAt is when the record was appended.
	CreatedAt time.Time
}
