package queue

import "fmt"

// NotFoundError is returned when an element does not exist (or
// disappeared between iteration and access).
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("queue element not found: %s", e.Name)
}

// NotLockedError is returned by Get/Remove when the element is not
// locked by this consumer.
type NotLockedError struct {
	Name string
}

func (e *NotLockedError) Error() string {
	return fmt.Sprintf("queue element not locked: %s", e.Name)
}
