// Package config provides configuration types and defaults for courier.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/courier-mq/courier/generator"
	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/internal/tracing"
	"github.com/courier-mq/courier/queue"
)

// Config holds all configuration options for courier.
type Config struct {
	Queue     queue.Config     `mapstructure:"queue"`
	Tracing   tracing.Config   `mapstructure:"tracing"`
	Generator generator.Config `mapstructure:"generator"`
}

// Defaults returns a Config with sensible default values. The queue
// path has no default; it must come from the config file, environment
// or a flag.
func Defaults() Config {
	return Config{
		Queue: queue.Config{
			Type:        queue.TypeDirq,
			Granularity: queue.DefaultGranularity,
			MaxLock:     queue.DefaultMaxLock,
			MaxTemp:     queue.DefaultMaxTemp,
		},
		Tracing: tracing.Config{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "courier",
		},
		Generator: generator.Config{
			BodySize:    generator.DefaultBodySize,
			HeaderCount: generator.DefaultHeaderCount,
			KeySize:     generator.DefaultKeySize,
			ValueSize:   generator.DefaultValueSize,
		},
	}
}

// DefaultConfigPath returns ~/.config/courier/config.yaml, or "" if the
// home directory is unavailable.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "courier", "config.yaml")
}

// DefaultTracesFilePath returns the default path for trace file export,
// or "" if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "courier", "traces", "traces.jsonl")
}

// ValidateQueue checks queue configuration for errors. Empty values
// use defaults.
func ValidateQueue(qc queue.Config) error {
	switch qc.Type {
	case "", queue.TypeDirq, queue.TypeSimple, queue.TypeSQLite:
	default:
		return fmt.Errorf("queue.type must be %q, %q, or %q, got %q",
			queue.TypeDirq, queue.TypeSimple, queue.TypeSQLite, qc.Type)
	}
	if qc.Granularity < 0 {
		return fmt.Errorf("queue.granularity must not be negative, got %v", qc.Granularity)
	}
	if qc.MaxLock < 0 {
		return fmt.Errorf("queue.max_lock must not be negative, got %v", qc.MaxLock)
	}
	if qc.MaxTemp < 0 {
		return fmt.Errorf("queue.max_temp must not be negative, got %v", qc.MaxTemp)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors. Empty
// values use defaults.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	// Only validate path requirements when tracing is enabled.
	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateQueue(c.Queue); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Courier Configuration

# Queue settings
queue:
  # Backend type: dirq (default), simple, or sqlite
  type: dirq

  # Queue location: a directory for dirq/simple, a database file for sqlite
  # path: /var/spool/courier

  # Width of the time buckets grouping elements (dirq, simple)
  # granularity: 60s

  # Age after which purge breaks an element lock
  # max_lock: 600s

  # Age after which purge deletes an unfinished temporary element (dirq)
  # max_temp: 300s

# Message generator settings (courier generate)
generator:
  body_size: 1024     # Target body size in bytes
  header_count: 4     # Headers per message besides message-id
  key_size: 8         # Header key size
  value_size: 16      # Header value size
  # body_spread: 0    # Widen sizes to [size-spread, size+spread]
  # binary: false     # Random byte bodies instead of text
  # seed: 0           # Fix the random stream (0 = random seed)

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/courier/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := writeAtomic(configPath, []byte(DefaultConfigTemplate())); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
