package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

func newTestConnector(t *testing.T, options map[string]string) *Connector {
	t.Helper()
	c, err := New(domain.SourceConfig{Name: "tracker", Type: Type, Options: options})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("requires repos", func(t *testing.T) {
		_, err := New(domain.SourceConfig{Name: "tracker", Type: Type})

		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("parses owner/name pairs", func(t *testing.T) {
		c := newTestConnector(t, map[string]string{
			"repos": "golang/go, spf13/cobra",
		})

		require.Len(t, c.repos, 2)
		assert.Equal(t, repoRef{Owner: "golang", Name: "go"}, c.repos[0])
		assert.Equal(t, repoRef{Owner: "spf13", Name: "cobra"}, c.repos[1])
	})

	t.Run("rejects malformed repos", func(t *testing.T) {
		for _, bad := range []string{"justaname", "owner/", "/name"} {
			_, err := New(domain.SourceConfig{
				Name:    "tracker",
				Type:    Type,
				Options: map[string]string{"repos": bad},
			})
			assert.ErrorIs(t, err, domain.ErrInvalidConfig, bad)
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		c := newTestConnector(t, map[string]string{"repos": "golang/go"})

		assert.True(t, c.loadComments)
		assert.Equal(t, DefaultMaxComments, c.maxComments)
	})

	t.Run("options override defaults", func(t *testing.T) {
		c := newTestConnector(t, map[string]string{
			"repos":         "golang/go",
			"load_comments": "false",
			"max_comments":  "10",
		})

		assert.False(t, c.loadComments)
		assert.Equal(t, 10, c.maxComments)
	})

	t.Run("type is issues", func(t *testing.T) {
		c := newTestConnector(t, map[string]string{"repos": "golang/go"})

		assert.Equal(t, "issues", c.Type())
	})
}

func TestConnector_ItemName(t *testing.T) {
	c := newTestConnector(t, map[string]string{"repos": "golang/go"})

	t.Run("encodes owner, repo and number", func(t *testing.T) {
		item := domain.Item{SourceRef: issueRef{Repo: repoRef{Owner: "golang", Name: "go"}, Number: 123}}

		assert.Equal(t, "golang__go__123", c.ItemName(item))
	})

	t.Run("distinct issues get distinct names", func(t *testing.T) {
		a := domain.Item{SourceRef: issueRef{Repo: repoRef{Owner: "o", Name: "r"}, Number: 1}}
		b := domain.Item{SourceRef: issueRef{Repo: repoRef{Owner: "o", Name: "r"}, Number: 2}}

		assert.NotEqual(t, c.ItemName(a), c.ItemName(b))
	})
}

func TestConnector_ExtraMetadata(t *testing.T) {
	c := newTestConnector(t, map[string]string{"repos": "golang/go"})

	item := domain.Item{SourceRef: issueRef{Repo: repoRef{Owner: "golang", Name: "go"}, Number: 7}}
	md := c.ExtraMetadata(item, "", nil)

	assert.Equal(t, "golang/go", md["repository"])
	assert.Equal(t, 7, md["issue_number"])
}
