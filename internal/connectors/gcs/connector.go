// Package gcs provides a Source that ingests objects from Google
// Cloud Storage buckets.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/quarrylabs/quarry-cli/internal/connectors/directory"
	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// Type is the source type identifier for this connector.
const Type = "gcs"

// Ensure Connector implements the interface.
var _ driven.Source = (*Connector)(nil)

// objectRef is the SourceRef carried by items from this connector.
type objectRef struct {
	Bucket string
	Key    string
}

// Connector ingests objects from one or more GCS buckets.
type Connector struct {
	buckets []string
	prefix  string
	opts    []option.ClientOption

	mu     sync.Mutex
	client *storage.Client
	closed bool
}

// New creates a GCS connector from its source configuration. The
// "buckets" option is required. Credentials come from the environment
// unless a "credentials_file" option points at a key file.
func New(cfg domain.SourceConfig) (*Connector, error) {
	buckets := cfg.OptionList("buckets")
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: gcs source %q needs a buckets option", domain.ErrInvalidConfig, cfg.Name)
	}

	var opts []option.ClientOption
	if creds := cfg.Option("credentials_file", ""); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	return &Connector{
		buckets: buckets,
		prefix:  cfg.Option("prefix", ""),
		opts:    opts,
	}, nil
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// ensureClient creates the storage client on first use so credentials
// are only needed once a run actually starts.
func (c *Connector) ensureClient(ctx context.Context) (*storage.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrSourceClosed
	}
	if c.client != nil {
		return c.client, nil
	}

	client, err := storage.NewClient(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	c.client = client
	return client, nil
}

// Validate checks each configured bucket is accessible.
func (c *Connector) Validate(ctx context.Context) error {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}
	for _, bucket := range c.buckets {
		if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// ListItems enumerates objects across all configured buckets. A bucket
// that fails to list is logged and skipped so one bad bucket does not
// sink the rest; directory placeholder keys are ignored.
func (c *Connector) ListItems(ctx context.Context) (<-chan domain.Item, <-chan error) {
	items := make(chan domain.Item)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		client, err := c.ensureClient(ctx)
		if err != nil {
			errs <- err
			return
		}

		for _, bucket := range c.buckets {
			if err := c.listBucket(ctx, client, bucket, items); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					errs <- err
					return
				}
				logger.Warn("gcs: listing bucket %s: %v", bucket, err)
			}
		}
	}()

	return items, errs
}

func (c *Connector) listBucket(ctx context.Context, client *storage.Client, bucket string, items chan<- domain.Item) error {
	query := &storage.Query{Prefix: c.prefix}
	it := client.Bucket(bucket).Objects(ctx, query)

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		item := domain.Item{
			ID:        fmt.Sprintf("gs://%s/%s", bucket, attrs.Name),
			SourceRef: objectRef{Bucket: bucket, Key: attrs.Name},
		}
		if !attrs.Updated.IsZero() {
			t := attrs.Updated.UTC()
			item.LastModified = &t
		}

		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FetchContent downloads the object and returns its text.
func (c *Connector) FetchContent(ctx context.Context, item domain.Item) (string, map[string]any, error) {
	ref, ok := item.SourceRef.(objectRef)
	if !ok {
		return "", nil, fmt.Errorf("%w: item %s has no object reference", domain.ErrInvalidInput, item.ID)
	}

	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", nil, err
	}

	reader, err := client.Bucket(ref.Bucket).Object(ref.Key).NewReader(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("opening %s: %w", item.ID, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", item.ID, err)
	}

	aux := map[string]any{"bucket": ref.Bucket}
	if ct := reader.Attrs.ContentType; ct != "" {
		aux["content_type"] = ct
	}

	return strings.ToValidUTF8(string(data), ""), aux, nil
}

// ItemName derives a key of the form "bucket__path__to__object",
// sanitised the same way directory keys are so object names with
// spaces or unsafe characters stay filesystem-safe.
func (c *Connector) ItemName(item domain.Item) string {
	ref, _ := item.SourceRef.(objectRef)
	return directory.SanitiseName(ref.Bucket + "/" + ref.Key)
}

// ExtraMetadata reports the object's bucket and key.
func (c *Connector) ExtraMetadata(item domain.Item, _ string, _ map[string]any) map[string]any {
	ref, _ := item.SourceRef.(objectRef)
	return map[string]any{
		"object_key": ref.Key,
	}
}

// Close releases the storage client. Any later use of the connector
// fails with domain.ErrSourceClosed.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
