// Package config provides configuration types and defaults for taskreview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/zjrosen/taskreview/internal/log"
)

// Config holds all configuration options for taskreview.
type Config struct {
	Path                string        `mapstructure:"path" yaml:"path,omitempty"`
	Base                string        `mapstructure:"base" yaml:"base"`
	StatsOnly           bool          `mapstructure:"stats_only" yaml:"stats_only"`
	AutoRefresh         bool          `mapstructure:"auto_refresh" yaml:"auto_refresh"`
	AutoRefreshDebounce time.Duration `mapstructure:"auto_refresh_debounce" yaml:"auto_refresh_debounce"`
	Review              ReviewConfig  `mapstructure:"review" yaml:"review"`
	Render              RenderConfig  `mapstructure:"render" yaml:"render"`
	UI                  UIConfig      `mapstructure:"ui" yaml:"ui"`
	Tracing             TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Log                 LogConfig     `mapstructure:"log" yaml:"log"`
}

// ReviewConfig holds the tuned constants of the review pane: viewport
// tracking, navigation, prefetch and catalog policy.
type ReviewConfig struct {
	AlignEpsilon       float64       `mapstructure:"align_epsilon" yaml:"align_epsilon"`               // px (lines in the TUI) a target may sit from the top and count as arrived
	StabilityWindow    time.Duration `mapstructure:"stability_window" yaml:"stability_window"`         // candidate must hold this long before publication
	OverrideWindow     time.Duration `mapstructure:"override_window" yaml:"override_window"`           // user input earlier than SetAt+window does not cancel a target
	PrefetchDelay      time.Duration `mapstructure:"prefetch_delay" yaml:"prefetch_delay"`             // one prefetch pass per burst of range events
	PrefetchBuffer     int           `mapstructure:"prefetch_buffer" yaml:"prefetch_buffer"`           // items added on each side of the visible range
	PrefetchMaxLines   int           `mapstructure:"prefetch_max_lines" yaml:"prefetch_max_lines"`     // larger items are never prefetched
	CollapseMaxLines   int           `mapstructure:"collapse_max_lines" yaml:"collapse_max_lines"`     // larger items start collapsed
	DefaultCollapsed   []string      `mapstructure:"default_collapsed" yaml:"default_collapsed"`       // change kinds that start collapsed
	MinDefaultHeight   float64       `mapstructure:"min_default_height" yaml:"min_default_height"`     // floor for the placeholder height
	LineHeight         float64       `mapstructure:"line_height" yaml:"line_height"`                   // estimated height of one diff line
	MaxCumulativeBytes int64         `mapstructure:"max_cumulative_bytes" yaml:"max_cumulative_bytes"` // contents beyond this budget are omitted
}

// RenderConfig holds diff render provider options.
type RenderConfig struct {
	ContextLines    int           `mapstructure:"context_lines" yaml:"context_lines"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	SidebarWidth  int  `mapstructure:"sidebar_width" yaml:"sidebar_width"`
	ShowScrollbar bool `mapstructure:"show_scrollbar" yaml:"show_scrollbar"`
	ShowStatusBar bool `mapstructure:"show_status_bar" yaml:"show_status_bar"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	Exporter string `mapstructure:"exporter" yaml:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/taskreview/traces/traces.jsonl
	FilePath string `mapstructure:"file_path" yaml:"file_path,omitempty"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// LogConfig holds debug log options.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// ChangeKinds lists the change kind names accepted in review.default_collapsed.
var ChangeKinds = []string{"added", "deleted", "modified", "renamed", "copied", "permissionChange"}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Base:                "HEAD",
		AutoRefresh:         true,
		AutoRefreshDebounce: 500 * time.Millisecond,
		Review:              DefaultReview(),
		Render: RenderConfig{
			ContextLines:    3,
			CacheTTL:        10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		UI: UIConfig{
			SidebarWidth:  32,
			ShowScrollbar: true,
			ShowStatusBar: true,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			File:  "debug.log",
			Level: "debug",
		},
	}
}

// DefaultReview returns the empirically tuned review pane constants.
func DefaultReview() ReviewConfig {
	return ReviewConfig{
		AlignEpsilon:       24,
		StabilityWindow:    80 * time.Millisecond,
		OverrideWindow:     400 * time.Millisecond,
		PrefetchDelay:      120 * time.Millisecond,
		PrefetchBuffer:     5,
		PrefetchMaxLines:   1000,
		CollapseMaxLines:   200,
		DefaultCollapsed:   []string{"deleted", "renamed", "copied", "permissionChange"},
		MinDefaultHeight:   240,
		LineHeight:         20,
		MaxCumulativeBytes: 200 * 1024 * 1024,
	}
}

// ValidateReview checks the review constants for values the pane cannot use.
func ValidateReview(r ReviewConfig) error {
	if r.AlignEpsilon < 0 {
		return fmt.Errorf("review.align_epsilon must be >= 0, got %v", r.AlignEpsilon)
	}
	durations := []struct {
		name string
		val  time.Duration
	}{
		{"stability_window", r.StabilityWindow},
		{"override_window", r.OverrideWindow},
		{"prefetch_delay", r.PrefetchDelay},
	}
	for _, d := range durations {
		if d.val < 0 {
			return fmt.Errorf("review.%s must be >= 0, got %s", d.name, d.val)
		}
	}
	if r.PrefetchBuffer < 0 {
		return fmt.Errorf("review.prefetch_buffer must be >= 0, got %d", r.PrefetchBuffer)
	}
	if r.PrefetchMaxLines < 0 || r.CollapseMaxLines < 0 {
		return fmt.Errorf("review line ceilings must be >= 0")
	}
	if r.LineHeight <= 0 {
		return fmt.Errorf("review.line_height must be > 0, got %v", r.LineHeight)
	}
	if r.MinDefaultHeight < 0 {
		return fmt.Errorf("review.min_default_height must be >= 0, got %v", r.MinDefaultHeight)
	}
	for _, kind := range r.DefaultCollapsed {
		if !slices.Contains(ChangeKinds, kind) {
			return fmt.Errorf("review.default_collapsed: unknown change kind %q (valid: %v)", kind, ChangeKinds)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration.
func ValidateTracing(tracing TracingConfig) error {
	if !tracing.Enabled {
		return nil
	}
	switch tracing.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of none, file, stdout, otlp, got %q", tracing.Exporter)
	}
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}
	return nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateReview(c.Review); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	if c.Render.ContextLines < 0 {
		return fmt.Errorf("render.context_lines must be >= 0, got %d", c.Render.ContextLines)
	}
	if c.UI.SidebarWidth < 0 {
		return fmt.Errorf("ui.sidebar_width must be >= 0, got %d", c.UI.SidebarWidth)
	}
	return nil
}

// DefaultTracesFilePath returns the default traces file location.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".taskreview", "traces", "traces.jsonl")
	}
	return filepath.Join(home, ".config", "taskreview", "traces", "traces.jsonl")
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# taskreview configuration

# Git ref the worktree is compared against
base: HEAD

# Drop file contents and show line counts only
stats_only: false

# Reload the diff set when the worktree changes
auto_refresh: true
auto_refresh_debounce: 500ms

# Review pane tuning. These values were tuned by hand; override with care.
review:
  align_epsilon: 24           # distance from the top that counts as "arrived" at a jump target
  stability_window: 80ms      # how long a file must stay on top before it is reported in view
  override_window: 400ms      # scroll input sooner than this after a jump is treated as momentum
  prefetch_delay: 120ms       # bursts of scroll events collapse into one prefetch pass
  prefetch_buffer: 5          # items prefetched on each side of the visible range
  prefetch_max_lines: 1000    # larger files are rendered on demand only
  collapse_max_lines: 200     # larger files start collapsed
  default_collapsed: [deleted, renamed, copied, permissionChange]
  min_default_height: 240
  line_height: 20
  max_cumulative_bytes: 209715200

render:
  context_lines: 3
  cache_ttl: 10m
  cleanup_interval: 30m

ui:
  sidebar_width: 32
  show_scrollbar: true
  show_status_bar: true

log:
  file: debug.log
  level: debug

# Distributed tracing (disabled by default)
# tracing:
#   enabled: true
#   exporter: file            # none, file, stdout, otlp
#   file_path: ~/.config/taskreview/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
