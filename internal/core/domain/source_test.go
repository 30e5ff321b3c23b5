package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceConfig_Validate(t *testing.T) {
	t.Run("accepts a minimal valid config", func(t *testing.T) {
		cfg := SourceConfig{Name: "docs", Type: "directory"}

		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects missing name", func(t *testing.T) {
		cfg := SourceConfig{Type: "directory"}

		err := cfg.Validate()

		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects missing type", func(t *testing.T) {
		cfg := SourceConfig{Name: "docs"}

		err := cfg.Validate()

		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects negative request delay", func(t *testing.T) {
		cfg := SourceConfig{Name: "docs", Type: "directory", RequestDelay: -1}

		err := cfg.Validate()

		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSourceConfig_Options(t *testing.T) {
	cfg := SourceConfig{
		Options: map[string]string{
			"path":      "/data",
			"recursive": "false",
			"limit":     "42",
			"filter":    ".md, .txt, ",
			"blank":     "  ",
			"bad_int":   "many",
		},
	}

	t.Run("Option", func(t *testing.T) {
		assert.Equal(t, "/data", cfg.Option("path", "fallback"))
		assert.Equal(t, "fallback", cfg.Option("missing", "fallback"))
		assert.Equal(t, "fallback", cfg.Option("blank", "fallback"))
	})

	t.Run("OptionBool", func(t *testing.T) {
		assert.False(t, cfg.OptionBool("recursive", true))
		assert.True(t, cfg.OptionBool("missing", true))
		assert.True(t, cfg.OptionBool("bad_int", true))
	})

	t.Run("OptionInt", func(t *testing.T) {
		assert.Equal(t, 42, cfg.OptionInt("limit", 7))
		assert.Equal(t, 7, cfg.OptionInt("missing", 7))
		assert.Equal(t, 7, cfg.OptionInt("bad_int", 7))
	})

	t.Run("OptionList", func(t *testing.T) {
		assert.Equal(t, []string{".md", ".txt"}, cfg.OptionList("filter"))
		assert.Nil(t, cfg.OptionList("missing"))
		assert.Nil(t, cfg.OptionList("blank"))
	})
}
