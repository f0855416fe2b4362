// Package pubsub provides a generic publish/subscribe event system.
// It decouples queue activity (and log output) from the consumers that
// display it: the watch command and the monitor TUI.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent marks a new entry on a feed, such as a log line.
	CreatedEvent EventType = "created"

	// Queue activity events.
	ElementAddedEvent   EventType = "element_added"
	ElementLockedEvent  EventType = "element_locked"
	ElementRemovedEvent EventType = "element_removed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
