package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
)

func newTestRegistry(source driven.Source) *SourceRegistry {
	r := NewSourceRegistry()
	r.Register("fake", func(domain.SourceConfig) (driven.Source, error) {
		return source, nil
	})
	return r
}

func TestIngestor_RunSource(t *testing.T) {
	t.Run("runs a configured source", func(t *testing.T) {
		source := &fakeSource{
			items:   itemsFor("a"),
			content: map[string]string{"a": "content"},
		}
		sources := []domain.SourceConfig{{Name: "docs", Type: "fake"}}
		ing := NewIngestor(sources, newTestRegistry(source), newFakeTracker(), &fakeSink{})

		summary, err := ing.RunSource(context.Background(), "docs")

		require.NoError(t, err)
		assert.Equal(t, "docs", summary.SourceName)
		assert.Equal(t, 1, summary.Ingested)
	})

	t.Run("unknown source name", func(t *testing.T) {
		ing := NewIngestor(nil, NewSourceRegistry(), newFakeTracker(), &fakeSink{})

		_, err := ing.RunSource(context.Background(), "nope")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("factory failure surfaces", func(t *testing.T) {
		r := NewSourceRegistry()
		r.Register("fake", func(domain.SourceConfig) (driven.Source, error) {
			return nil, errors.New("bad credentials")
		})
		sources := []domain.SourceConfig{{Name: "docs", Type: "fake"}}
		ing := NewIngestor(sources, r, newFakeTracker(), &fakeSink{})

		_, err := ing.RunSource(context.Background(), "docs")

		assert.ErrorContains(t, err, "bad credentials")
	})
}

func TestIngestor_RunAll(t *testing.T) {
	t.Run("runs every configured source", func(t *testing.T) {
		source := &fakeSource{
			items:   itemsFor("a"),
			content: map[string]string{"a": "content"},
		}
		sources := []domain.SourceConfig{
			{Name: "first", Type: "fake"},
			{Name: "second", Type: "fake"},
		}
		ing := NewIngestor(sources, newTestRegistry(source), newFakeTracker(), &fakeSink{})

		summaries, err := ing.RunAll(context.Background())

		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "first", summaries[0].SourceName)
		assert.Equal(t, "second", summaries[1].SourceName)
	})

	t.Run("one failing source does not stop the rest", func(t *testing.T) {
		source := &fakeSource{
			items:   itemsFor("a"),
			content: map[string]string{"a": "content"},
		}
		r := NewSourceRegistry()
		r.Register("fake", func(domain.SourceConfig) (driven.Source, error) {
			return source, nil
		})
		r.Register("broken", func(domain.SourceConfig) (driven.Source, error) {
			return nil, errors.New("boom")
		})
		sources := []domain.SourceConfig{
			{Name: "bad", Type: "broken"},
			{Name: "good", Type: "fake"},
		}
		ing := NewIngestor(sources, r, newFakeTracker(), &fakeSink{})

		summaries, err := ing.RunAll(context.Background())

		require.Error(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "good", summaries[0].SourceName)
	})
}

func TestIngestor_Sources(t *testing.T) {
	t.Run("returns a copy", func(t *testing.T) {
		sources := []domain.SourceConfig{{Name: "docs", Type: "fake"}}
		ing := NewIngestor(sources, NewSourceRegistry(), newFakeTracker(), &fakeSink{})

		got := ing.Sources()
		got[0].Name = "mutated"

		assert.Equal(t, "docs", ing.Sources()[0].Name)
	})
}
