package driven

import (
	"context"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// ContentSink persists prepared documents into the content store:
// chunking, optional embedding and indexing happen behind this
// interface. It must be safe to call with a single-document batch
// repeatedly. A returned error marks the item as skipped.
type ContentSink interface {
	InsertDocuments(ctx context.Context, docs []domain.Document) error
}

// EmbeddingService generates vector embeddings for text.
// Optional: a nil service disables semantic indexing in the sink.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
