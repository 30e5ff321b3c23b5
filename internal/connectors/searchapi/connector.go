// Package searchapi provides a Source that ingests web search results
// from a SerpAPI-compatible endpoint, one document per query.
package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
)

// Type is the source type identifier for this connector.
const Type = "searchapi"

// Ensure Connector implements the interface.
var _ driven.Source = (*Connector)(nil)

// DefaultTimeout is the search request timeout.
const DefaultTimeout = 30 * time.Second

var queryUnsafeRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)

// searchResponse is the subset of the SerpAPI payload we consume.
type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Connector ingests search result pages, one item per configured
// query.
type Connector struct {
	endpoint string
	apiKey   string
	queries  []string
	client   *http.Client
}

// New creates a search connector from its source configuration.
// The "endpoint" and "queries" options are required.
func New(cfg domain.SourceConfig) (*Connector, error) {
	endpoint := cfg.Option("endpoint", "")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: searchapi source %q needs an endpoint option", domain.ErrInvalidConfig, cfg.Name)
	}
	queries := cfg.OptionList("queries")
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: searchapi source %q needs a queries option", domain.ErrInvalidConfig, cfg.Name)
	}

	return &Connector{
		endpoint: endpoint,
		apiKey:   cfg.Option("api_key", ""),
		queries:  queries,
		client:   &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks the endpoint parses as a URL. Quota is only spent
// once a run actually fetches.
func (c *Connector) Validate(_ context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: searchapi endpoint %q is not a valid URL", domain.ErrInvalidConfig, c.endpoint)
	}
	return nil
}

// ListItems emits one item per configured query. Search results only
// exist at fetch time, so enumeration is trivially the query list.
func (c *Connector) ListItems(ctx context.Context) (<-chan domain.Item, <-chan error) {
	items := make(chan domain.Item)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		for _, query := range c.queries {
			item := domain.Item{
				ID:        "search:" + query,
				SourceRef: query,
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return items, errs
}

// FetchContent runs the search and joins the organic results into one
// text block: all titles first, then all snippets.
func (c *Connector) FetchContent(ctx context.Context, item domain.Item) (string, map[string]any, error) {
	query, ok := item.SourceRef.(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: item %s has no query", domain.ErrInvalidInput, item.ID)
	}

	params := url.Values{"q": {query}}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, fmt.Errorf("decoding search response: %w", err)
	}

	var parts []string
	for _, r := range result.OrganicResults {
		if r.Title != "" {
			parts = append(parts, r.Title)
		}
	}
	for _, r := range result.OrganicResults {
		if r.Snippet != "" {
			parts = append(parts, r.Snippet)
		}
	}

	aux := map[string]any{
		"query":        query,
		"result_count": len(result.OrganicResults),
	}

	return strings.Join(parts, "\n"), aux, nil
}

// ItemName derives a key from the query text.
func (c *Connector) ItemName(item domain.Item) string {
	query, _ := item.SourceRef.(string)
	name := queryUnsafeRe.ReplaceAllString(strings.ReplaceAll(query, " ", "_"), "")
	return "search_" + name
}

// ExtraMetadata returns nothing; FetchContent supplies the query.
func (c *Connector) ExtraMetadata(_ domain.Item, _ string, _ map[string]any) map[string]any {
	return nil
}

// Close releases resources.
func (c *Connector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
