package tracing

// Span attribute keys used by queue tracing.
const (
	AttrQueuePath    = "queue.path"
	AttrQueueType    = "queue.type"
	AttrElementName  = "queue.element"
	AttrMessageSize  = "message.size"
	AttrMessageID    = "message.id"
	AttrLockAcquired = "queue.lock.acquired"
)

// Span names for queue operations.
const (
	SpanQueueAdd    = "queue.add"
	SpanQueueGet    = "queue.get"
	SpanQueueLock   = "queue.lock"
	SpanQueueUnlock = "queue.unlock"
	SpanQueueRemove = "queue.remove"
	SpanQueueCount  = "queue.count"
	SpanQueuePurge  = "queue.purge"
)
