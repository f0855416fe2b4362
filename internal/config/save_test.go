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
)

func TestSaveQueue_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveQueue(path, queue.Config{Type: queue.TypeSQLite, Path: "/tmp/q.db"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed struct {
		Queue struct {
			Type string `yaml:"type"`
			Path string `yaml:"path"`
		} `yaml:"queue"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "sqlite", parsed.Queue.Type)
	assert.Equal(t, "/tmp/q.db", parsed.Queue.Path)
}

func TestSaveQueue_DefaultsType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveQueue(path, queue.Config{Path: "/var/spool/q"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type: dirq")
}

func TestSaveQueue_PreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	existing := `# my config
generator:
  body_size: 64

queue:
  type: dirq
  path: /old/path
`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	err := SaveQueue(path, queue.Config{
		Type:    queue.TypeSimple,
		Path:    "/new/path",
		MaxLock: 2 * time.Minute,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# my config")
	assert.Contains(t, text, "body_size: 64")
	assert.Contains(t, text, "type: simple")
	assert.Contains(t, text, "path: /new/path")
	assert.Contains(t, text, "max_lock: 2m0s")
	assert.NotContains(t, text, "/old/path")
}

func TestSaveQueue_AppendsMissingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("generator:\n  body_size: 10\n"), 0o600))
	require.NoError(t, SaveQueue(path, queue.Config{Path: "/q"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "body_size: 10")
	assert.Contains(t, string(data), "path: /q")
}
