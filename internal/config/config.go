// Package config provides configuration types and defaults for grae.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/tracing"
)

// Config holds all configuration options for grae.
type Config struct {
	// RootDir is the resource root that registry lookups resolve under.
	RootDir string         `mapstructure:"root_dir"`
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Watch   WatchConfig    `mapstructure:"watch"`
	// Types overrides the subdirectory of built-in resource types, keyed by
	// short type name (e.g. "texture: images").
	Types map[string]string `mapstructure:"types"`
}

// LogConfig controls the CLI's logger.
type LogConfig struct {
	Level string `mapstructure:"level"` // verbose, debug, info, warn, error
	File  string `mapstructure:"file"`  // empty logs to stderr
}

// MetricsConfig controls registry metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"` // print collected metrics after `grae load`
}

// WatchConfig controls `grae watch`.
type WatchConfig struct {
	Debounce   time.Duration `mapstructure:"debounce"`
	Extensions []string      `mapstructure:"extensions"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()

	return Config{
		RootDir: "assets",
		Log: LogConfig{
			Level: "info",
		},
		Tracing: tr,
		Watch: WatchConfig{
			Debounce:   250 * time.Millisecond,
			Extensions: []string{".gen"},
		},
		Types: map[string]string{},
	}
}

// DefaultTracesFilePath returns ~/.config/grae/traces/traces.jsonl, or an
// empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "grae", "traces", "traces.jsonl")
}

// Validate checks the configuration for errors. Empty values use defaults.
func Validate(cfg Config) error {
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return err
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	for _, ext := range cfg.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watch.extensions entries must start with '.', got %q", ext)
		}
	}
	return ValidateTypes(cfg.Types)
}

// ValidateTypes checks type directory overrides. Directories are relative
// to the root and must stay inside it.
func ValidateTypes(types map[string]string) error {
	for name, dir := range types {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("types: empty type name")
		}
		if filepath.IsAbs(dir) {
			return fmt.Errorf("types.%s: directory must be relative, got %q", name, dir)
		}
		clean := filepath.ToSlash(filepath.Clean(dir))
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("types.%s: directory escapes the resource root: %q", name, dir)
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# grae configuration

# Directory that resource ids resolve under
root_dir: assets

log:
  level: info        # verbose, debug, info, warn, error
  # file: grae.log   # log to a file instead of stderr

# Print registry metrics after ` + "`grae load`" + `
metrics:
  enabled: false

watch:
  debounce: 250ms
  extensions: [".gen"]

# Override the subdirectory of a built-in resource type
types: {}
#  texture: images
#  script: lua

# Tracing spans for resource construction
tracing:
  enabled: false
  exporter: file     # none, file, stdout, otlp
  # file_path: ~/.config/grae/traces/traces.jsonl
  # otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at configPath with default
// settings and comments. Parent directories are created as needed.
func WriteDefaultConfig(fs afero.Fs, configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := afero.WriteFile(fs, configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
