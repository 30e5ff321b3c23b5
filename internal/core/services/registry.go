package services

import (
	"fmt"
	"sync"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
)

// Ensure SourceRegistry implements the interface.
var _ driven.SourceFactory = (*SourceRegistry)(nil)

// SourceBuilder constructs a source from its configuration.
// Configuration errors must be returned here, eagerly.
type SourceBuilder func(cfg domain.SourceConfig) (driven.Source, error)

// SourceRegistry maps connector types to their builders.
type SourceRegistry struct {
	mu       sync.RWMutex
	builders map[string]SourceBuilder
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		builders: make(map[string]SourceBuilder),
	}
}

// Register adds a builder for a connector type.
// Later registrations replace earlier ones.
func (r *SourceRegistry) Register(sourceType string, builder SourceBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[sourceType] = builder
}

// Types returns the registered connector types.
func (r *SourceRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	return types
}

// Create builds a source for the given configuration.
func (r *SourceRegistry) Create(cfg domain.SourceConfig) (driven.Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	builder, ok := r.builders[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, cfg.Type)
	}
	return builder(cfg)
}
