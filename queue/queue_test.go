package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
	"github.com/courier-mq/courier/queue/dirq"
	"github.com/courier-mq/courier/queue/simple"
	"github.com/courier-mq/courier/queue/sqlite"
)

func TestNew_DefaultsToDirq(t *testing.T) {
	q, err := queue.New(queue.Config{Path: filepath.Join(t.TempDir(), "q")})
	require.NoError(t, err)
	defer q.Close()

	assert.IsType(t, &dirq.Queue{}, q)
}

func TestNew_SelectsBackendByType(t *testing.T) {
	tests := []struct {
		typ  string
		want any
	}{
		{queue.TypeDirq, &dirq.Queue{}},
		{queue.TypeSimple, &simple.Queue{}},
		{queue.TypeSQLite, &sqlite.Queue{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			q, err := queue.New(queue.Config{
				Type: tt.typ,
				Path: filepath.Join(t.TempDir(), "q"),
			})
			require.NoError(t, err)
			defer q.Close()
			assert.IsType(t, tt.want, q)
		})
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := queue.New(queue.Config{Type: queue.TypeDirq})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestNew_UnknownType(t *testing.T) {
	_, err := queue.New(queue.Config{Type: "kafka", Path: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
}

// The consumption protocol behaves identically across backends.
func TestBackends_ConsumptionProtocol(t *testing.T) {
	ctx := context.Background()
	for _, typ := range []string{queue.TypeDirq, queue.TypeSimple, queue.TypeSQLite} {
		t.Run(typ, func(t *testing.T) {
			q, err := queue.New(queue.Config{
				Type: typ,
				Path: filepath.Join(t.TempDir(), "q"),
			})
			require.NoError(t, err)
			defer q.Close()

			msg := message.NewText("payload")
			msg.SetHeader("subject", "test")
			_, err = q.Add(ctx, msg)
			require.NoError(t, err)

			name, err := q.First(ctx)
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
		})
	}
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, "queue element not found: x", (&queue.NotFoundError{Name: "x"}).Error())
	assert.Equal(t, "queue element not locked: x", (&queue.NotLockedError{Name: "x"}).Error())
}
