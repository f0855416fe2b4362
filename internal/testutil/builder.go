package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

// Builder accumulates messages and seeds a queue with them.
type Builder struct {
	t    *testing.T
	q    queue.Queue
	msgs []*message.Message
}

// NewBuilder creates a builder for the given queue.
func NewBuilder(t *testing.T, q queue.Queue) *Builder {
	t.Helper()
	return &Builder{t: t, q: q}
}

// WithMessage adds a text message with optional configuration.
func (b *Builder) WithMessage(body string, opts ...MessageOption) *Builder {
	msg := message.NewText(body)
	for _, opt := range opts {
		opt(msg)
	}
	b.msgs = append(b.msgs, msg)
	return b
}

// Build adds all accumulated messages and returns their element names
// in insertion order.
func (b *Builder) Build() []string {
	b.t.Helper()
	ctx := context.Background()
	names := make([]string, 0, len(b.msgs))
	for _, msg := range b.msgs {
		name, err := b.q.Add(ctx, msg)
		require.NoError(b.t, err)
		names = append(names, name)
	}
	return names
}
