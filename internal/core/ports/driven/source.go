package driven

import (
	"context"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// Source produces items and their raw content from one external
// system. Each connector type (directory, mediawiki, gcs, issues,
// searchapi) implements this interface; the ingestion job holds a
// Source by interface reference only.
type Source interface {
	// Type returns the stable source type identifier stored in every
	// document's metadata (e.g. "directory", "mediawiki").
	Type() string

	// ListItems enumerates all items discoverable from the source.
	// The item channel is a lazy, finite sequence; a second call
	// re-invokes discovery from scratch. A connector-fatal error sent
	// on the error channel stops the run; both channels are closed
	// when enumeration ends, the error channel strictly after the
	// item channel so the consumer can drain late errors. This is the
	// only method allowed to perform paginated or network discovery.
	ListItems(ctx context.Context) (<-chan domain.Item, <-chan error)

	// FetchContent fetches the raw text for an item, plus optional
	// auxiliary metadata discovered during the fetch (e.g. a page
	// URL). A returned error marks the item as skipped; it never
	// aborts the run.
	FetchContent(ctx context.Context, item domain.Item) (string, map[string]any, error)

	// ItemName derives the item's stable logical key. It must be a
	// pure, deterministic function of the item: the same item yields
	// the same key across runs, and structurally different items
	// yield different keys.
	ItemName(item domain.Item) string

	// ExtraMetadata returns additional metadata to merge into the
	// document. Values for reserved keys are dropped by the caller.
	// Implementations may return nil.
	ExtraMetadata(item domain.Item, content string, metadata map[string]any) map[string]any

	// Validate checks the source is ready to enumerate: path exists,
	// credentials work, endpoint responds.
	Validate(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Watcher is implemented by sources that can push change
// notifications. The scheduler uses it in daemon mode to trigger
// early runs; polling remains the correctness backstop.
type Watcher interface {
	// Watch emits an event whenever source content may have changed.
	// The channel is closed when ctx is cancelled.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// SourceFactory constructs a Source from its configuration.
// Configuration errors surface here, before any item is processed.
type SourceFactory interface {
	Create(cfg domain.SourceConfig) (Source, error)
}
