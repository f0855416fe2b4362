// Package testutil provides test helpers for queue setup and seeding.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/queue"
	_ "github.com/courier-mq/courier/queue/dirq"
	_ "github.com/courier-mq/courier/queue/simple"
	_ "github.com/courier-mq/courier/queue/sqlite"
)

// NewTestQueue creates a queue of the given type rooted in a temp
// directory. The queue is closed when the test finishes.
func NewTestQueue(t *testing.T, typ string) queue.Queue {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue")
	if typ == queue.TypeSQLite {
		path = filepath.Join(t.TempDir(), "queue.db")
	}

	q, err := queue.New(queue.Config{Type: typ, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// EachBackend runs the test function once per queue backend.
func EachBackend(t *testing.T, fn func(t *testing.T, q queue.Queue)) {
	t.Helper()
	for _, typ := range []string{queue.TypeDirq, queue.TypeSimple, queue.TypeSQLite} {
		t.Run(typ, func(t *testing.T) {
			fn(t, NewTestQueue(t, typ))
		})
	}
}
