// Package queue defines the courier message queue abstraction and the
// factory that creates concrete backends. A queue stores messages as
// named elements; consumers iterate, lock an element, read it, then
// remove it. All backends are safe for multiple concurrent producers
// and consumers.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/courier-mq/courier/message"
)

// Queue is the unified message queue interface.
//
// The consumption protocol is: First/Next to discover element names,
// Lock to claim one, Get to read it, Remove to delete it (or Unlock to
// give it back). Lock returns (false, nil) when the element is already
// claimed or has vanished; that is the normal signal to move on to the
// next element.
type Queue interface {
	// Add stores a message and returns the name of the new element.
	Add(ctx context.Context, msg *message.Message) (string, error)

	// Lock claims an element for this consumer.
	Lock(ctx context.Context, name string) (bool, error)

	// Unlock releases a previously claimed element.
	Unlock(ctx context.Context, name string) (bool, error)

	// Get reads a locked element's message.
	Get(ctx context.Context, name string) (*message.Message, error)

	// Remove deletes a locked element.
	Remove(ctx context.Context, name string) error

	// Count returns the number of elements in the queue, locked or not.
	Count(ctx context.Context) (int, error)

	// Purge reclaims stale locks and leftover temporary elements.
	Purge(ctx context.Context) error

	// First resets iteration and returns the first element name, or ""
	// when the queue is empty.
	First(ctx context.Context) (string, error)

	// Next returns the next element name, or "" when exhausted.
	Next(ctx context.Context) (string, error)

	// Close releases backend resources.
	Close() error
}

// Backend types accepted by New.
const (
	TypeDirq   = "dirq"
	TypeSimple = "simple"
	TypeSQLite = "sqlite"
)

// Default maintenance windows, shared by the backends.
const (
	DefaultGranularity = 60 * time.Second
	DefaultMaxLock     = 600 * time.Second
	DefaultMaxTemp     = 300 * time.Second
)

// Config selects and configures a queue backend.
type Config struct {
	// Type is the backend type: dirq (default), simple or sqlite.
	Type string `mapstructure:"type"`

	// Path is the queue root directory (dirq, simple) or database file
	// (sqlite).
	Path string `mapstructure:"path"`

	// Granularity is the width of the time buckets grouping elements
	// (dirq, simple). Defaults to DefaultGranularity.
	Granularity time.Duration `mapstructure:"granularity"`

	// MaxLock is the age after which Purge breaks an element lock.
	// Defaults to DefaultMaxLock.
	MaxLock time.Duration `mapstructure:"max_lock"`

	// MaxTemp is the age after which Purge deletes an unfinished
	// temporary element. Defaults to DefaultMaxTemp.
	MaxTemp time.Duration `mapstructure:"max_temp"`
}

// normalized fills in defaults for zero-valued fields.
func (c Config) normalized() Config {
	if c.Type == "" {
		c.Type = TypeDirq
	}
	if c.Granularity <= 0 {
		c.Granularity = DefaultGranularity
	}
	if c.MaxLock <= 0 {
		c.MaxLock = DefaultMaxLock
	}
	if c.MaxTemp <= 0 {
		c.MaxTemp = DefaultMaxTemp
	}
	return c
}

// factories maps backend types to constructors. Backend packages
// register themselves from an init function via Register.
var factories = make(map[string]func(Config) (Queue, error))

// Register installs a backend constructor under the given type name.
// It panics on duplicate registration, mirroring database/sql drivers.
func Register(typ string, factory func(Config) (Queue, error)) {
	if _, dup := factories[typ]; dup {
		panic(fmt.Sprintf("queue: backend %q registered twice", typ))
	}
	factories[typ] = factory
}

// New creates a queue of the configured type. The zero Type selects
// the dirq backend, matching the historical default.
func New(cfg Config) (Queue, error) {
	cfg = cfg.normalized()
	if cfg.Path == "" {
		return nil, fmt.Errorf("queue path is required")
	}
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("queue type not valid: %s", cfg.Type)
	}
	return factory(cfg)
}
