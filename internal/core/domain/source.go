package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceConfig is the configuration for one ingestion source.
// The core reads Name, RequestDelay and Schedule; Options is opaque
// connector-specific configuration.
type SourceConfig struct {
	// Name is the human-readable name for this source. Required.
	Name string

	// Type identifies the connector type
	// (e.g. "directory", "mediawiki", "gcs").
	Type string

	// Schedule is the interval between scheduled runs.
	// Zero disables scheduling for this source.
	Schedule time.Duration

	// RequestDelay is the fixed pause applied between items during a
	// run. Zero disables pacing.
	RequestDelay time.Duration

	// Options contains connector-specific configuration.
	Options map[string]string
}

// Validate checks the fields the core itself depends on.
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: source name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Type) == "" {
		return fmt.Errorf("%w: source type is required", ErrInvalidConfig)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("%w: request_delay must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Option returns the named connector option, or def when unset.
func (c SourceConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// OptionBool returns the named option parsed as a boolean.
// Unset or unparsable values yield def.
func (c SourceConfig) OptionBool(key string, def bool) bool {
	v, ok := c.Options[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// OptionInt returns the named option parsed as an integer.
// Unset or unparsable values yield def.
func (c SourceConfig) OptionInt(key string, def int) int {
	v, ok := c.Options[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// OptionList returns the named option split on commas, with blank
// entries removed. Returns nil when unset or empty.
func (c SourceConfig) OptionList(key string) []string {
	v, ok := c.Options[key]
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ScheduledTask tracks the scheduler state for one source.
type ScheduledTask struct {
	// ID is the unique task identifier.
	ID string

	// SourceName links to the source this task runs.
	SourceName string

	// Interval is the configured run interval.
	Interval time.Duration

	// Enabled controls whether the task runs.
	Enabled bool

	// LastRun is when the task last completed.
	LastRun time.Time

	// NextRun is when the task is next due.
	NextRun time.Time

	// LastResult is the summary string from the last run.
	LastResult string
}
