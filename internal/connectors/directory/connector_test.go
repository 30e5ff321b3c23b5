package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

func newTestConnector(t *testing.T, root string, options map[string]string) *Connector {
	t.Helper()
	if options == nil {
		options = map[string]string{}
	}
	options["path"] = root

	c, err := New(domain.SourceConfig{Name: "test", Type: Type, Options: options})
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func collectItems(t *testing.T, c *Connector) []domain.Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items, errs := c.ListItems(ctx)
	var out []domain.Item
	for items != nil || errs != nil {
		select {
		case item, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			out = append(out, item)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			require.NoError(t, err)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("requires a path option", func(t *testing.T) {
		_, err := New(domain.SourceConfig{Name: "test", Type: Type})

		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("type is directory", func(t *testing.T) {
		c := newTestConnector(t, t.TempDir(), nil)

		assert.Equal(t, "directory", c.Type())
	})
}

func TestConnector_Validate(t *testing.T) {
	t.Run("accepts an existing directory", func(t *testing.T) {
		c := newTestConnector(t, t.TempDir(), nil)

		assert.NoError(t, c.Validate(context.Background()))
	})

	t.Run("rejects a missing path", func(t *testing.T) {
		c := newTestConnector(t, filepath.Join(t.TempDir(), "nope"), nil)

		assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrInvalidConfig)
	})

	t.Run("rejects a file path", func(t *testing.T) {
		root := t.TempDir()
		path := writeFile(t, root, "file.txt", "x")
		c := newTestConnector(t, path, nil)

		assert.ErrorIs(t, c.Validate(context.Background()), domain.ErrInvalidConfig)
	})
}

func TestConnector_ListItems(t *testing.T) {
	t.Run("enumerates files recursively by default", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "1")
		writeFile(t, root, "sub/b.txt", "2")
		writeFile(t, root, "sub/deep/c.txt", "3")

		items := collectItems(t, newTestConnector(t, root, nil))

		assert.Len(t, items, 3)
		for _, item := range items {
			assert.Contains(t, item.ID, "file://")
			assert.NotNil(t, item.LastModified)
		}
	})

	t.Run("non-recursive stays at the top level", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "1")
		writeFile(t, root, "sub/b.txt", "2")

		items := collectItems(t, newTestConnector(t, root, map[string]string{"recursive": "false"}))

		require.Len(t, items, 1)
		assert.Contains(t, items[0].ID, "a.txt")
	})

	t.Run("filters by extension", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.md", "1")
		writeFile(t, root, "b.txt", "2")
		writeFile(t, root, "c.MD", "3")
		writeFile(t, root, "d.go", "4")

		items := collectItems(t, newTestConnector(t, root, map[string]string{"filter": ".md,txt"}))

		assert.Len(t, items, 3)
	})

	t.Run("empty directory yields no items", func(t *testing.T) {
		items := collectItems(t, newTestConnector(t, t.TempDir(), nil))

		assert.Empty(t, items)
	})
}

func TestConnector_FetchContent(t *testing.T) {
	t.Run("reads file content", func(t *testing.T) {
		root := t.TempDir()
		path := writeFile(t, root, "a.txt", "hello world")
		c := newTestConnector(t, root, nil)

		content, aux, err := c.FetchContent(context.Background(), domain.Item{ID: "file://" + path, SourceRef: path})

		require.NoError(t, err)
		assert.Equal(t, "hello world", content)
		assert.Nil(t, aux)
	})

	t.Run("replaces invalid utf-8", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "bin.txt")
		require.NoError(t, os.WriteFile(path, []byte{'o', 'k', 0xff, 0xfe, '!'}, 0644))
		c := newTestConnector(t, root, nil)

		content, _, err := c.FetchContent(context.Background(), domain.Item{SourceRef: path})

		require.NoError(t, err)
		assert.Equal(t, "ok!", content)
	})

	t.Run("missing file errors", func(t *testing.T) {
		c := newTestConnector(t, t.TempDir(), nil)

		_, _, err := c.FetchContent(context.Background(), domain.Item{SourceRef: "/nope/missing.txt"})

		assert.Error(t, err)
	})
}

func TestConnector_ItemName(t *testing.T) {
	root := t.TempDir()
	c := newTestConnector(t, root, nil)

	name := func(rel string) string {
		return c.ItemName(domain.Item{SourceRef: filepath.Join(root, rel)})
	}

	t.Run("separator mapping avoids collisions", func(t *testing.T) {
		nested := name(filepath.Join("a", "b.txt"))
		flat := name("a_b.txt")

		assert.Equal(t, "a__b.txt", nested)
		assert.Equal(t, "a_b.txt", flat)
		assert.NotEqual(t, nested, flat)
	})

	t.Run("spaces collapse to a single underscore", func(t *testing.T) {
		assert.Equal(t, "my_notes.md", name("my   notes.md"))
	})

	t.Run("unsafe characters are dropped", func(t *testing.T) {
		assert.Equal(t, "rsum.txt", name("résumé!.txt"))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, name("sub/c.txt"), name("sub/c.txt"))
	})

	t.Run("caps very long names", func(t *testing.T) {
		long := ""
		for i := 0; i < 40; i++ {
			long += "abcdefghij"
		}

		assert.LessOrEqual(t, len(name(long+".txt")), 255)
	})
}

func TestConnector_Watch(t *testing.T) {
	t.Run("emits on file changes", func(t *testing.T) {
		root := t.TempDir()
		c := newTestConnector(t, root, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := c.Watch(ctx)
		require.NoError(t, err)

		writeFile(t, root, "new.txt", "content")

		select {
		case _, ok := <-events:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("expected a watch event")
		}
	})

	t.Run("closes the channel on cancellation", func(t *testing.T) {
		c := newTestConnector(t, t.TempDir(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		events, err := c.Watch(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("expected the events channel to close")
		}
	})
}

func TestSanitiseName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "notes.md", "notes.md"},
		{"nested", "a/b/c.md", "a__b__c.md"},
		{"spaces", "my  file.txt", "my_file.txt"},
		{"mixed", "dir name/sub/x y.md", "dir_name__sub__x_y.md"},
		{"specials", "we!rd#.txt", "werd.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitiseName(tt.input))
		})
	}
}
