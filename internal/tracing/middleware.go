package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

// WrapQueue decorates a queue so every operation runs inside a span
// carrying queue and element attributes. A nil tracer returns the
// queue unchanged, keeping the disabled path free of overhead.
func WrapQueue(q queue.Queue, tracer trace.Tracer, queueType, queuePath string) queue.Queue {
	if tracer == nil {
		return q
	}
	return &tracedQueue{
		inner:  q,
		tracer: tracer,
		attrs: []attribute.KeyValue{
			attribute.String(AttrQueueType, queueType),
			attribute.String(AttrQueuePath, queuePath),
		},
	}
}

type tracedQueue struct {
	inner  queue.Queue
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

var _ queue.Queue = (*tracedQueue)(nil)

func (t *tracedQueue) start(ctx context.Context, name string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(t.attrs...)
	span.SetAttributes(extra...)
	return ctx, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *tracedQueue) Add(ctx context.Context, msg *message.Message) (string, error) {
	ctx, span := t.start(ctx, SpanQueueAdd,
		attribute.Int(AttrMessageSize, msg.Size()),
	)
	if id, ok := msg.Header["message-id"]; ok {
		span.SetAttributes(attribute.String(AttrMessageID, id))
	}
	name, err := t.inner.Add(ctx, msg)
	if err == nil {
		span.SetAttributes(attribute.String(AttrElementName, name))
	}
	finish(span, err)
	return name, err
}

func (t *tracedQueue) Lock(ctx context.Context, name string) (bool, error) {
	ctx, span := t.start(ctx, SpanQueueLock,
		attribute.String(AttrElementName, name),
	)
	ok, err := t.inner.Lock(ctx, name)
	span.SetAttributes(attribute.Bool(AttrLockAcquired, ok))
	finish(span, err)
	return ok, err
}

func (t *tracedQueue) Unlock(ctx context.Context, name string) (bool, error) {
	ctx, span := t.start(ctx, SpanQueueUnlock,
		attribute.String(AttrElementName, name),
	)
	ok, err := t.inner.Unlock(ctx, name)
	finish(span, err)
	return ok, err
}

func (t *tracedQueue) Get(ctx context.Context, name string) (*message.Message, error) {
	ctx, span := t.start(ctx, SpanQueueGet,
		attribute.String(AttrElementName, name),
	)
	msg, err := t.inner.Get(ctx, name)
	if err == nil {
		span.SetAttributes(attribute.Int(AttrMessageSize, msg.Size()))
	}
	finish(span, err)
	return msg, err
}

func (t *tracedQueue) Remove(ctx context.Context, name string) error {
	ctx, span := t.start(ctx, SpanQueueRemove,
		attribute.String(AttrElementName, name),
	)
	err := t.inner.Remove(ctx, name)
	finish(span, err)
	return err
}

func (t *tracedQueue) Count(ctx context.Context) (int, error) {
	ctx, span := t.start(ctx, SpanQueueCount)
	n, err := t.inner.Count(ctx)
	finish(span, err)
	return n, err
}

func (t *tracedQueue) Purge(ctx context.Context) error {
	ctx, span := t.start(ctx, SpanQueuePurge)
	err := t.inner.Purge(ctx)
	finish(span, err)
	return err
}

func (t *tracedQueue) First(ctx context.Context) (string, error) {
	return t.inner.First(ctx)
}

func (t *tracedQueue) Next(ctx context.Context) (string, error) {
	return t.inner.Next(ctx)
}

func (t *tracedQueue) Close() error {
	return t.inner.Close()
}
