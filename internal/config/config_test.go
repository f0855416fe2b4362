package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/courier-mq/courier/queue"
	"github.com/courier-mq/courier/internal/tracing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, queue.TypeDirq, cfg.Queue.Type)
	assert.Empty(t, cfg.Queue.Path)
	assert.Equal(t, queue.DefaultGranularity, cfg.Queue.Granularity)
	assert.Equal(t, queue.DefaultMaxLock, cfg.Queue.MaxLock)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "file", cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	assert.NoError(t, cfg.Validate())
}

func TestValidateQueue(t *testing.T) {
	assert.NoError(t, ValidateQueue(queue.Config{}))
	assert.NoError(t, ValidateQueue(queue.Config{Type: queue.TypeSQLite}))

	err := ValidateQueue(queue.Config{Type: "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.type")

	err = ValidateQueue(queue.Config{MaxLock: -time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_lock")
}

func TestValidateTracing(t *testing.T) {
	assert.NoError(t, ValidateTracing(tracing.Config{}))

	err := ValidateTracing(tracing.Config{SampleRate: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_rate")

	err = ValidateTracing(tracing.Config{Exporter: "jaeger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter")

	// Path requirements only apply when tracing is on.
	assert.NoError(t, ValidateTracing(tracing.Config{Exporter: "file"}))
	err = ValidateTracing(tracing.Config{Enabled: true, Exporter: "file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file_path")

	err = ValidateTracing(tracing.Config{Enabled: true, Exporter: "otlp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "otlp_endpoint")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "queue:")
	assert.Contains(t, string(data), "type: dirq")

	// The template must be parseable YAML.
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
}
