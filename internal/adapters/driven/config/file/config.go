package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// Config is the top-level configuration file layout.
type Config struct {
	DataDir   string          `toml:"data_dir"`
	Verbose   bool            `toml:"verbose"`
	Sink      SinkConfig      `toml:"sink"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Sources   []SourceEntry   `toml:"sources"`
}

// SinkConfig controls how content is chunked before insertion.
type SinkConfig struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
}

// EmbeddingConfig selects the embedding backend. An empty provider
// disables embedding and chunks are stored without vectors.
type EmbeddingConfig struct {
	Provider string `toml:"provider"`
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
}

// SourceEntry is one [[sources]] block in the config file.
type SourceEntry struct {
	Name         string            `toml:"name"`
	Type         string            `toml:"type"`
	Schedule     string            `toml:"schedule"`
	RequestDelay string            `toml:"request_delay"`
	Options      map[string]string `toml:"options"`
}

// DefaultPath returns the default config file location (~/.quarry/config.toml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quarry", "config.toml"), nil
}

// Load reads and decodes the config file at path. If path is empty the
// default location is used. A missing file yields an empty config, not
// an error, so commands that need no sources still work.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidConfig, path, err)
	}

	return &cfg, nil
}

// SourceConfigs converts the raw entries into validated domain source
// configurations. Duplicate names and bad durations are rejected here.
func (c *Config) SourceConfigs() ([]domain.SourceConfig, error) {
	seen := make(map[string]struct{}, len(c.Sources))
	configs := make([]domain.SourceConfig, 0, len(c.Sources))

	for _, entry := range c.Sources {
		if _, dup := seen[entry.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate source name %q", domain.ErrInvalidConfig, entry.Name)
		}
		seen[entry.Name] = struct{}{}

		cfg := domain.SourceConfig{
			Name:    entry.Name,
			Type:    entry.Type,
			Options: entry.Options,
		}
		if cfg.Options == nil {
			cfg.Options = make(map[string]string)
		}

		var err error
		if cfg.Schedule, err = parseDuration(entry.Name, "schedule", entry.Schedule); err != nil {
			return nil, err
		}
		if cfg.RequestDelay, err = parseDuration(entry.Name, "request_delay", entry.RequestDelay); err != nil {
			return nil, err
		}

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		configs = append(configs, cfg)
	}

	return configs, nil
}

func parseDuration(source, field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: source %q: invalid %s %q", domain.ErrInvalidConfig, source, field, value)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: source %q: negative %s", domain.ErrInvalidConfig, source, field)
	}
	return d, nil
}
