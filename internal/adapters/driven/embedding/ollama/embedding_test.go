package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		s := NewEmbeddingService(Config{})

		assert.Equal(t, DefaultModel, s.ModelName())
		assert.Equal(t, DefaultBaseURL, s.baseURL)
	})

	t.Run("honours overrides", func(t *testing.T) {
		s := NewEmbeddingService(Config{BaseURL: "http://example.org:1234", Model: "custom"})

		assert.Equal(t, "custom", s.ModelName())
		assert.Equal(t, "http://example.org:1234", s.baseURL)
	})
}

func TestEmbeddingService_Embed(t *testing.T) {
	t.Run("returns the embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embeddings", r.URL.Path)

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req["model"])
			assert.Equal(t, "some text", req["prompt"])

			fmt.Fprint(w, `{"embedding": [0.25, -1.5, 2.0]}`)
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL, Model: "test-model"})

		embedding, err := s.Embed(context.Background(), "some text")

		require.NoError(t, err)
		assert.Equal(t, []float32{0.25, -1.5, 2.0}, embedding)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL})

		_, err := s.Embed(context.Background(), "text")

		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("fails when the server is unreachable", func(t *testing.T) {
		s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

		_, err := s.Embed(context.Background(), "text")

		assert.Error(t, err)
	})
}

func TestEmbeddingService_Ping(t *testing.T) {
	t.Run("succeeds when tags respond", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			fmt.Fprint(w, `{"models": []}`)
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL})

		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("fails on error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL})

		assert.Error(t, s.Ping(context.Background()))
	})
}
