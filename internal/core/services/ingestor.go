package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driving"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.Ingestor = (*Ingestor)(nil)

// Ingestor runs ingestion jobs for the configured sources. It owns
// nothing itself: sources come from configuration, connectors from
// the factory, and persistence from the tracker and sink.
type Ingestor struct {
	sources []domain.SourceConfig
	factory driven.SourceFactory
	tracker driven.MetadataTracker
	sink    driven.ContentSink
}

// NewIngestor creates an ingestor.
func NewIngestor(
	sources []domain.SourceConfig,
	factory driven.SourceFactory,
	tracker driven.MetadataTracker,
	sink driven.ContentSink,
) *Ingestor {
	return &Ingestor{
		sources: sources,
		factory: factory,
		tracker: tracker,
		sink:    sink,
	}
}

// Sources returns the configured sources.
func (ing *Ingestor) Sources() []domain.SourceConfig {
	out := make([]domain.SourceConfig, len(ing.sources))
	copy(out, ing.sources)
	return out
}

// RunSource runs one ingestion pass for the named source.
func (ing *Ingestor) RunSource(ctx context.Context, name string) (domain.Summary, error) {
	cfg, ok := ing.lookup(name)
	if !ok {
		return domain.Summary{}, fmt.Errorf("source %q: %w", name, domain.ErrNotFound)
	}

	source, err := ing.factory.Create(cfg)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("create source %q: %w", name, err)
	}
	defer source.Close()

	if err := source.Validate(ctx); err != nil {
		return domain.Summary{}, fmt.Errorf("validate source %q: %w", name, err)
	}

	job := NewJob(cfg, source, ing.tracker, ing.sink)
	summary := job.Run(ctx)
	return summary, nil
}

// RunAll runs one pass for every configured source.
func (ing *Ingestor) RunAll(ctx context.Context) ([]domain.Summary, error) {
	summaries := make([]domain.Summary, 0, len(ing.sources))
	var errs []error

	for _, cfg := range ing.sources {
		summary, err := ing.RunSource(ctx, cfg.Name)
		if err != nil {
			logger.Error("[%s] %v", cfg.Name, err)
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, summary)
	}

	if len(errs) > 0 {
		return summaries, errors.Join(errs...)
	}
	return summaries, nil
}

func (ing *Ingestor) lookup(name string) (domain.SourceConfig, bool) {
	for _, cfg := range ing.sources {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return domain.SourceConfig{}, false
}
