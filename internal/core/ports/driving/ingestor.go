package driving

import (
	"context"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// Ingestor runs ingestion for configured sources.
type Ingestor interface {
	// RunSource runs one ingestion pass for the named source.
	// An error is returned only for configuration problems (unknown
	// source, connector construction or validation failure); item and
	// discovery failures are reported through the summary instead.
	RunSource(ctx context.Context, name string) (domain.Summary, error)

	// RunAll runs one pass for every configured source, collecting a
	// summary per source. Configuration errors are joined and
	// returned alongside the summaries gathered so far.
	RunAll(ctx context.Context) ([]domain.Summary, error)

	// Sources returns the configured sources.
	Sources() []domain.SourceConfig
}
