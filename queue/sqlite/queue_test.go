package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := New(queue.Config{Path: filepath.Join(t.TempDir(), "queue.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "queue.db")

	q, err := New(queue.Config{Path: path})
	require.NoError(t, err)
	defer q.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(queue.Config{})
	assert.Error(t, err)
}

func TestQueue_AddLockGetRemove(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	msg := message.NewText("hello")
	msg.SetHeader("subject", "greeting")

	name, err := q.Add(ctx, msg)
	require.NoError(t, err)
	require.NotEmpty(t, name)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := q.Get(ctx, name)
	require.NoError(t, err)
	assert.True(t, msg.Equal(got))

	require.NoError(t, q.Remove(ctx, name))

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueue_LockIsExclusive(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.Lock(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Unlock(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Lock(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueue_LockMissingElement(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	ok, err := q.Lock(ctx, "no-such-element")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_UnlockNotLocked(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	ok, err := q.Unlock(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_GetErrors(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var notFound *queue.NotFoundError
	_, err := q.Get(ctx, "no-such-element")
	require.ErrorAs(t, err, &notFound)

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	var notLocked *queue.NotLockedError
	_, err = q.Get(ctx, name)
	require.ErrorAs(t, err, &notLocked)
}

func TestQueue_RemoveErrors(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var notFound *queue.NotFoundError
	err := q.Remove(ctx, "no-such-element")
	require.ErrorAs(t, err, &notFound)

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	var notLocked *queue.NotLockedError
	err = q.Remove(ctx, name)
	require.ErrorAs(t, err, &notLocked)
}

func TestQueue_BinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	msg := message.NewBinary([]byte{0x00, 0xff, 0x10, 0x80})
	msg.SetHeader("content-type", "application/octet-stream")

	name, err := q.Add(ctx, msg)
	require.NoError(t, err)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := q.Get(ctx, name)
	require.NoError(t, err)
	assert.True(t, msg.Equal(got))
}

func TestQueue_Iteration(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var added []string
	for i := 0; i < 5; i++ {
		name, err := q.Add(ctx, message.NewText("msg"))
		require.NoError(t, err)
		added = append(added, name)
	}

	var seen []string
	name, err := q.First(ctx)
	require.NoError(t, err)
	for name != "" {
		seen = append(seen, name)
		name, err = q.Next(ctx)
		require.NoError(t, err)
	}

	// Iteration follows insertion order.
	assert.Equal(t, added, seen)
}

func TestQueue_FirstEmpty(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	name, err := q.First(ctx)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestQueue_PurgeBreaksStaleLocks(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	q.maxLock = time.Minute

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	// Age the lock past the maximum.
	stale := time.Now().Add(-2 * time.Minute).Unix()
	_, err = q.db.Exec(`UPDATE elements SET locked_at = ? WHERE name = ?`, stale, name)
	require.NoError(t, err)

	require.NoError(t, q.Purge(ctx))

	ok, err = q.Lock(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueue_PurgeKeepsFreshLocks(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	name, err := q.Add(ctx, message.NewText("x"))
	require.NoError(t, err)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Purge(ctx))

	ok, err = q.Lock(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := New(queue.Config{Path: path})
	require.NoError(t, err)
	name, err := q.Add(ctx, message.NewText("persisted"))
	require.NoError(t, err)
	require.NoError(t, q.Close())

	q, err = New(queue.Config{Path: path})
	require.NoError(t, err)
	defer q.Close()

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := q.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.BodyString())
}
