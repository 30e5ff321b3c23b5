package domain

import "time"

// Item identifies one discoverable unit of content from a source.
// Items are constructed by a connector's enumeration step, treated as
// read-only by the pipeline, and discarded once processed.
type Item struct {
	// ID is globally unique within the source's namespace
	// (e.g. "file:///data/notes.md", "gs://bucket/key").
	ID string

	// SourceRef is an opaque handle the connector uses to fetch
	// content later. The pipeline never interprets it.
	SourceRef any

	// LastModified is the source-reported modification time, if any.
	// Stored as metadata only; it does not short-circuit fetches.
	LastModified *time.Time

	// URL is an optional human-facing locator populated by the
	// connector, merged into document metadata when present.
	URL string
}
