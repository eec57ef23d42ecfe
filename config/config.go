// Package config provides configuration loading and management for testtag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/testtag/output"
	"github.com/c360studio/testtag/processor/rewriter"
)

// Config represents the complete testtag configuration
type Config struct {
	// Paths are the roots to scan (directories, files or globs)
	Paths []string `yaml:"paths"`
	// Include patterns select files below each root (default: **/*.java)
	Include []string `yaml:"include,omitempty"`
	// Exclude patterns skip files below each root. Unset means the built-in
	// excludes; an empty list disables them.
	Exclude []string `yaml:"exclude,omitempty"`
	// Workers bounds concurrent file processing
	Workers int `yaml:"workers"`
	// Mode is "apply" or "dry-run"
	Mode string `yaml:"mode"`
	// FailFast stops at the first failed file
	FailFast bool `yaml:"fail_fast"`

	Log     LogConfig     `yaml:"log"`
	Output  OutputConfig  `yaml:"output"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	// Format is text, json or markdown
	Format string `yaml:"format"`
	// Color is auto, always or never
	Color string `yaml:"color"`
	// Diff includes unified diffs in the report
	Diff bool `yaml:"diff"`
	// Verbose lists unchanged files too
	Verbose bool `yaml:"verbose"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is how long a file must be quiet before it is processed
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// EventsConfig configures change event publishing
type EventsConfig struct {
	// NATSURL is the NATS server URL (empty = disabled)
	NATSURL string `yaml:"nats_url"`
	// SubjectPrefix prefixes the change subjects (default: testtag)
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Paths:   []string{"."},
		Include: nil, // rewriter.DefaultInclude
		Exclude: nil, // rewriter.DefaultExclude
		Workers: runtime.NumCPU(),
		Mode:    string(rewriter.ModeApply),
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format: string(output.FormatText),
			Color:  ColorAuto,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Events: EventsConfig{
			SubjectPrefix: "testtag",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return fmt.Errorf("paths is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if !rewriter.Mode(c.Mode).IsValid() {
		return fmt.Errorf("mode must be %q or %q, got %q", rewriter.ModeApply, rewriter.ModeDryRun, c.Mode)
	}
	if !logLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if !output.Format(c.Output.Format).IsValid() {
		return fmt.Errorf("output.format must be one of %v, got %q", output.Formats(), c.Output.Format)
	}
	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("output.color must be auto, always or never, got %q", c.Output.Color)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if err := rewriter.ValidatePatterns(c.Include); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	if err := rewriter.ValidatePatterns(c.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	return nil
}

// FileSet returns the file selection described by the configuration.
func (c *Config) FileSet() rewriter.FileSet {
	return rewriter.FileSet{Roots: c.Paths, Include: c.Include, Exclude: c.Exclude}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults,
// expanding ${VAR} and ${VAR:-default} references first
func LoadFromFile(path string) (*Config, error) {
	layer, err := loadLayer(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(layer)
	return config, nil
}

// loadLayer parses a YAML file without defaults so that only the values it
// sets take part in a merge
func loadLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	layer := &Config{}
	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), layer); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return layer, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Selection
	if len(other.Paths) > 0 {
		c.Paths = other.Paths
	}
	if len(other.Include) > 0 {
		c.Include = other.Include
	}
	if other.Exclude != nil {
		c.Exclude = other.Exclude
	}

	// Run
	if other.Workers != 0 {
		c.Workers = other.Workers
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}
	if other.FailFast {
		c.FailFast = true
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}

	// Output
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}
	if other.Output.Color != "" {
		c.Output.Color = other.Output.Color
	}
	if other.Output.Diff {
		c.Output.Diff = true
	}
	if other.Output.Verbose {
		c.Output.Verbose = true
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Events
	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}
}
