// Package mediawiki provides a Source that ingests pages from a
// MediaWiki installation through its action API.
package mediawiki

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprinting, not security
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/logger"
	"github.com/quarrylabs/quarry-cli/internal/normalisers/html"
)

// Type is the source type identifier for this connector.
const Type = "mediawiki"

// Ensure Connector implements the interface.
var _ driven.Source = (*Connector)(nil)

// Default configuration values.
const (
	DefaultPageLimit  = 500
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultUserAgent  = "quarry-cli (https://github.com/quarrylabs/quarry-cli)"
)

var titleUnsafeRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)

// Connector ingests wiki pages via the MediaWiki action API.
type Connector struct {
	apiURL     string
	userAgent  string
	pageLimit  int
	batchSize  int
	maxRetries int
	namespaces []string
	client     *http.Client
}

// page is the SourceRef carried by items from this connector.
type page struct {
	Title string
}

// New creates a MediaWiki connector from its source configuration.
// The "api_url" option is required.
func New(cfg domain.SourceConfig) (*Connector, error) {
	apiURL := cfg.Option("api_url", "")
	if apiURL == "" {
		return nil, fmt.Errorf("%w: mediawiki source %q needs an api_url option", domain.ErrInvalidConfig, cfg.Name)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("%w: mediawiki source %q: bad api_url: %v", domain.ErrInvalidConfig, cfg.Name, err)
	}

	timeout := time.Duration(cfg.OptionInt("timeout_seconds", int(DefaultTimeout/time.Second))) * time.Second

	return &Connector{
		apiURL:     apiURL,
		userAgent:  cfg.Option("user_agent", DefaultUserAgent),
		pageLimit:  cfg.OptionInt("page_limit", DefaultPageLimit),
		batchSize:  cfg.OptionInt("batch_size", DefaultBatchSize),
		maxRetries: cfg.OptionInt("max_retries", DefaultMaxRetries),
		namespaces: cfg.OptionList("namespaces"),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks the API endpoint responds to a siteinfo query.
func (c *Connector) Validate(ctx context.Context) error {
	params := url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
		"format": {"json"},
	}
	var resp struct {
		Query struct {
			General struct {
				Sitename string `json:"sitename"`
			} `json:"general"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return fmt.Errorf("mediawiki endpoint %s unreachable: %w", c.apiURL, err)
	}
	return nil
}

// ListItems enumerates all pages via list=allpages, one namespace at a
// time, following apcontinue tokens. Revision timestamps are fetched in
// batches so each item carries its last modification time.
func (c *Connector) ListItems(ctx context.Context) (<-chan domain.Item, <-chan error) {
	items := make(chan domain.Item)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		namespaces := c.namespaces
		if len(namespaces) == 0 {
			namespaces = []string{"0"}
		}

		for _, ns := range namespaces {
			if err := c.listNamespace(ctx, ns, items); err != nil {
				errs <- err
				return
			}
		}
	}()

	return items, errs
}

func (c *Connector) listNamespace(ctx context.Context, namespace string, items chan<- domain.Item) error {
	cont := ""
	for {
		params := url.Values{
			"action":      {"query"},
			"list":        {"allpages"},
			"aplimit":     {strconv.Itoa(c.pageLimit)},
			"apnamespace": {namespace},
			"format":      {"json"},
		}
		if cont != "" {
			params.Set("apcontinue", cont)
		}

		var resp struct {
			Continue struct {
				APContinue string `json:"apcontinue"`
			} `json:"continue"`
			Query struct {
				AllPages []struct {
					Title string `json:"title"`
				} `json:"allpages"`
			} `json:"query"`
		}
		if err := c.get(ctx, params, &resp); err != nil {
			return fmt.Errorf("listing pages (namespace %s): %w", namespace, err)
		}

		titles := make([]string, 0, len(resp.Query.AllPages))
		for _, p := range resp.Query.AllPages {
			titles = append(titles, p.Title)
		}

		timestamps := c.revisionTimestamps(ctx, titles)

		for _, title := range titles {
			item := domain.Item{
				ID:        "mediawiki:" + title,
				SourceRef: page{Title: title},
			}
			if ts, ok := timestamps[title]; ok {
				t := ts
				item.LastModified = &t
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if resp.Continue.APContinue == "" {
			return nil
		}
		cont = resp.Continue.APContinue
	}
}

// revisionTimestamps fetches last-revision timestamps for titles in
// batches. Failures are logged and skipped; a missing timestamp only
// costs the item its last_modified metadata.
func (c *Connector) revisionTimestamps(ctx context.Context, titles []string) map[string]time.Time {
	out := make(map[string]time.Time, len(titles))

	for start := 0; start < len(titles); start += c.batchSize {
		end := start + c.batchSize
		if end > len(titles) {
			end = len(titles)
		}

		params := url.Values{
			"action": {"query"},
			"prop":   {"revisions"},
			"rvprop": {"timestamp"},
			"titles": {strings.Join(titles[start:end], "|")},
			"format": {"json"},
		}

		var resp struct {
			Query struct {
				Pages map[string]struct {
					Title     string `json:"title"`
					Revisions []struct {
						Timestamp time.Time `json:"timestamp"`
					} `json:"revisions"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := c.get(ctx, params, &resp); err != nil {
			logger.Warn("mediawiki: revision timestamps: %v", err)
			continue
		}

		for _, p := range resp.Query.Pages {
			if len(p.Revisions) > 0 {
				out[p.Title] = p.Revisions[0].Timestamp.UTC()
			}
		}
	}

	return out
}

// FetchContent renders the page to HTML via action=parse, strips the
// markup and returns plain text. The page's canonical URL comes back
// as auxiliary metadata.
func (c *Connector) FetchContent(ctx context.Context, item domain.Item) (string, map[string]any, error) {
	p, ok := item.SourceRef.(page)
	if !ok {
		return "", nil, fmt.Errorf("%w: item %s has no page reference", domain.ErrInvalidInput, item.ID)
	}

	params := url.Values{
		"action": {"parse"},
		"page":   {p.Title},
		"prop":   {"text"},
		"format": {"json"},
	}
	var resp struct {
		Parse struct {
			Text map[string]string `json:"text"`
		} `json:"parse"`
		Error *struct {
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return "", nil, fmt.Errorf("parsing page %q: %w", p.Title, err)
	}
	if resp.Error != nil {
		return "", nil, fmt.Errorf("parsing page %q: %s", p.Title, resp.Error.Info)
	}

	text := html.StripHTML(resp.Parse.Text["*"])

	aux := map[string]any{"title": p.Title}
	if pageURL := c.canonicalURL(ctx, p.Title); pageURL != "" {
		aux["url"] = pageURL
	}

	return text, aux, nil
}

// canonicalURL resolves the page's full URL. Failure is non-fatal; the
// document simply has no url metadata.
func (c *Connector) canonicalURL(ctx context.Context, title string) string {
	params := url.Values{
		"action": {"query"},
		"prop":   {"info"},
		"inprop": {"url"},
		"titles": {title},
		"format": {"json"},
	}
	var resp struct {
		Query struct {
			Pages map[string]struct {
				FullURL string `json:"fullurl"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		logger.Debug("mediawiki: canonical url for %q: %v", title, err)
		return ""
	}
	for _, p := range resp.Query.Pages {
		if p.FullURL != "" {
			return p.FullURL
		}
	}
	return ""
}

// ItemName derives a key from the page title. Titles that sanitise to
// nothing fall back to a digest-based name so the key stays non-empty
// and stable.
func (c *Connector) ItemName(item domain.Item) string {
	p, _ := item.SourceRef.(page)
	name := titleUnsafeRe.ReplaceAllString(strings.ReplaceAll(p.Title, " ", "_"), "")
	if name == "" {
		sum := md5.Sum([]byte(p.Title)) //nolint:gosec
		name = fmt.Sprintf("page_%x", sum[:4])
	}
	return name
}

// ExtraMetadata reports the wiki endpoint the page came from.
func (c *Connector) ExtraMetadata(_ domain.Item, _ string, _ map[string]any) map[string]any {
	return map[string]any{"api_url": c.apiURL}
}

// Close releases resources.
func (c *Connector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// get performs one API GET with retry on 429 and transient server
// errors. Retry-After is honoured when the server sends it; otherwise
// the backoff doubles per attempt.
func (c *Connector) get(ctx context.Context, params url.Values, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt, lastErr)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		data, err := c.doRequest(ctx, params)
		if err == nil {
			return json.Unmarshal(data, out)
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return err
		}
	}

	return fmt.Errorf("giving up after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Connector) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &retryableError{
			err:        fmt.Errorf("%w: mediawiki returned 429", domain.ErrRateLimited),
			retryAfter: retryAfter,
		}
	case resp.StatusCode >= 500:
		return nil, &retryableError{err: fmt.Errorf("mediawiki returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mediawiki returned status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func backoff(attempt int, err error) time.Duration {
	var retryable *retryableError
	if errors.As(err, &retryable) && retryable.retryAfter > 0 {
		return retryable.retryAfter
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
