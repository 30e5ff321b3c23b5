// Package directory provides a Source that ingests files from a local
// directory tree.
package directory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// Type is the source type identifier for this connector.
const Type = "directory"

// Ensure Connector implements the interfaces.
var (
	_ driven.Source  = (*Connector)(nil)
	_ driven.Watcher = (*Connector)(nil)
)

// maxNameLength caps derived item names.
const maxNameLength = 255

var (
	spaceRe  = regexp.MustCompile(` +`)
	unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
)

// Connector ingests files from a directory tree on the local
// filesystem.
type Connector struct {
	root      string
	recursive bool
	filter    map[string]struct{} // lowercase extensions incl. dot; nil means all files
}

// New creates a directory connector from its source configuration.
// The "path" option is required.
func New(cfg domain.SourceConfig) (*Connector, error) {
	root := cfg.Option("path", "")
	if root == "" {
		return nil, fmt.Errorf("%w: directory source %q needs a path option", domain.ErrInvalidConfig, cfg.Name)
	}

	var filter map[string]struct{}
	if exts := cfg.OptionList("filter"); len(exts) > 0 {
		filter = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			filter[ext] = struct{}{}
		}
	}

	return &Connector{
		root:      filepath.Clean(root),
		recursive: cfg.OptionBool("recursive", true),
		filter:    filter,
	}, nil
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks that the configured path exists and is a directory.
func (c *Connector) Validate(_ context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("%w: directory %s: %v", domain.ErrInvalidConfig, c.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidConfig, c.root)
	}
	return nil
}

// ListItems walks the directory tree and emits one item per matching
// file. Items carry the absolute path as SourceRef and a file:// ID.
func (c *Connector) ListItems(ctx context.Context) (<-chan domain.Item, <-chan error) {
	items := make(chan domain.Item)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(items)

		walkErr := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !c.recursive && path != c.root {
					return filepath.SkipDir
				}
				return nil
			}
			if !c.matches(path) {
				return nil
			}

			item := domain.Item{
				ID:        "file://" + path,
				SourceRef: path,
			}
			if info, infoErr := d.Info(); infoErr == nil {
				mod := info.ModTime().UTC()
				item.LastModified = &mod
			}

			select {
			case items <- item:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil {
			errs <- fmt.Errorf("walking %s: %w", c.root, walkErr)
		}
	}()

	return items, errs
}

// FetchContent reads the file and returns its text, replacing invalid
// UTF-8 sequences so downstream storage always sees valid text.
func (c *Connector) FetchContent(_ context.Context, item domain.Item) (string, map[string]any, error) {
	path, ok := item.SourceRef.(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: item %s has no file path", domain.ErrInvalidInput, item.ID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return strings.ToValidUTF8(string(data), ""), nil, nil
}

// ItemName derives a stable key from the file's path relative to the
// configured root. Path separators become "__" so sibling files with
// underscores in their names cannot collide.
func (c *Connector) ItemName(item domain.Item) string {
	path, _ := item.SourceRef.(string)
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	return SanitiseName(rel)
}

// ExtraMetadata adds the file name and relative path.
func (c *Connector) ExtraMetadata(item domain.Item, _ string, _ map[string]any) map[string]any {
	path, _ := item.SourceRef.(string)
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	return map[string]any{
		"path":      filepath.ToSlash(rel),
		"extension": strings.ToLower(filepath.Ext(path)),
	}
}

// Watch emits an event whenever a file under the root changes. The
// watcher and its goroutine shut down when ctx is cancelled.
func (c *Connector) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := c.addWatches(watcher); err != nil {
		watcher.Close()
		return nil, err
	}

	events := make(chan struct{}, 1)

	go func() {
		defer close(events)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				// New directories need their own watch.
				if ev.Op.Has(fsnotify.Create) && c.recursive {
					if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
						if addErr := watcher.Add(ev.Name); addErr != nil {
							logger.Warn("directory: watch %s: %v", ev.Name, addErr)
						}
					}
				}
				select {
				case events <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("directory: watch error: %v", err)
			}
		}
	}()

	return events, nil
}

// Close releases resources. The directory connector holds none outside
// of Watch, which is bound to its context.
func (c *Connector) Close() error {
	return nil
}

func (c *Connector) addWatches(watcher *fsnotify.Watcher) error {
	if !c.recursive {
		return watcher.Add(c.root)
	}
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (c *Connector) matches(path string) bool {
	if c.filter == nil {
		return true
	}
	_, ok := c.filter[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SanitiseName turns a relative path into a storage-safe key: path
// separators become "__", runs of spaces become "_", remaining unsafe
// characters are dropped, and the result is capped at 255 characters.
func SanitiseName(rel string) string {
	name := filepath.ToSlash(rel)
	name = strings.ReplaceAll(name, "/", "__")
	name = spaceRe.ReplaceAllString(name, "_")
	name = unsafeRe.ReplaceAllString(name, "")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}
