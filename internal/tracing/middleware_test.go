package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/courier-mq/courier/internal/testutil"
	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

func recordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func attrValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWrapQueue_NilTracerIsPassThrough(t *testing.T) {
	q := testutil.NewTestQueue(t, queue.TypeDirq)
	assert.Equal(t, q, WrapQueue(q, nil, queue.TypeDirq, "/q"))
}

func TestWrapQueue_SpansCarryQueueAttributes(t *testing.T) {
	ctx := context.Background()
	exporter, tp := recordingTracer(t)

	q := WrapQueue(testutil.NewTestQueue(t, queue.TypeDirq), tp.Tracer("test"), queue.TypeDirq, "/q")

	msg := message.NewText("hello")
	msg.SetHeader("message-id", "id-123")
	name, err := q.Add(ctx, msg)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, SpanQueueAdd, span.Name)

	v, ok := attrValue(span, AttrQueueType)
	require.True(t, ok)
	assert.Equal(t, "dirq", v.AsString())

	v, ok = attrValue(span, AttrMessageID)
	require.True(t, ok)
	assert.Equal(t, "id-123", v.AsString())

	v, ok = attrValue(span, AttrElementName)
	require.True(t, ok)
	assert.Equal(t, name, v.AsString())
}

func TestWrapQueue_LockSpanRecordsOutcome(t *testing.T) {
	ctx := context.Background()
	exporter, tp := recordingTracer(t)

	inner := testutil.NewTestQueue(t, queue.TypeDirq)
	q := WrapQueue(inner, tp.Tracer("test"), queue.TypeDirq, "/q")

	name, err := inner.Add(ctx, message.NewText("x"))
	require.NoError(t, err)
	exporter.Reset()

	ok, err := q.Lock(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	v, found := attrValue(spans[0], AttrLockAcquired)
	require.True(t, found)
	assert.True(t, v.AsBool())
}

func TestWrapQueue_ErrorSetsSpanStatus(t *testing.T) {
	ctx := context.Background()
	exporter, tp := recordingTracer(t)

	q := WrapQueue(testutil.NewTestQueue(t, queue.TypeDirq), tp.Tracer("test"), queue.TypeDirq, "/q")

	_, err := q.Get(ctx, "00000000/0000000000000e")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.NotEmpty(t, spans[0].Status.Description)
}
