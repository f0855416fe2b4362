// Package sqlite implements the message queue on a single SQLite
// database file. Elements are rows; locking is an atomic UPDATE, so
// the backend supports many processes sharing one file without the
// directory scans the filesystem backends need.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

func init() {
	queue.Register(queue.TypeSQLite, func(cfg queue.Config) (queue.Queue, error) {
		return New(cfg)
	})
}

// Queue is the SQLite queue backend.
type Queue struct {
	db      *sql.DB
	maxLock time.Duration

	mu    sync.Mutex
	names []string // remaining names for the current iteration
}

var _ queue.Queue = (*Queue)(nil)

// New opens (or creates) a SQLite queue stored at cfg.Path.
func New(cfg queue.Config) (*Queue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := openDB(cfg.Path)
	if err != nil {
		return nil, err
	}
	maxLock := cfg.MaxLock
	if maxLock <= 0 {
		maxLock = queue.DefaultMaxLock
	}
	return &Queue{db: db, maxLock: maxLock}, nil
}

// Add stores a message as a new row. The element name is a fresh UUID;
// insertion order is preserved by the autoincrement id, which drives
// iteration order.
func (q *Queue) Add(ctx context.Context, msg *message.Message) (string, error) {
	payload, err := msg.Serialize(message.EncodeOptions{})
	if err != nil {
		return "", err
	}
	name := uuid.NewString()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO elements (name, message, created_at) VALUES (?, ?, ?)`,
		name, payload, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting element: %w", err)
	}
	log.Debug(log.CatQueue, "element added", "queue", "sqlite", "element", name)
	return name, nil
}

// Lock claims an element. The UPDATE only succeeds when locked_at is
// still NULL, so concurrent consumers cannot claim the same row.
func (q *Queue) Lock(ctx context.Context, name string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE elements SET locked_at = ? WHERE name = ? AND locked_at IS NULL`,
		time.Now().Unix(), name,
	)
	if err != nil {
		return false, fmt.Errorf("locking element: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("locking element: %w", err)
	}
	return n == 1, nil
}

// Unlock releases a claimed element. Returns (false, nil) when the
// element was not locked.
func (q *Queue) Unlock(ctx context.Context, name string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE elements SET locked_at = NULL WHERE name = ? AND locked_at IS NOT NULL`,
		name,
	)
	if err != nil {
		return false, fmt.Errorf("unlocking element: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlocking element: %w", err)
	}
	return n == 1, nil
}

// Get reads a locked element's message.
func (q *Queue) Get(ctx context.Context, name string) (*message.Message, error) {
	var payload []byte
	var lockedAt sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT message, locked_at FROM elements WHERE name = ?`, name,
	).Scan(&payload, &lockedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &queue.NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("reading element: %w", err)
	}
	if !lockedAt.Valid {
		return nil, &queue.NotLockedError{Name: name}
	}
	return message.Deserialize(payload)
}

// Remove deletes a locked element.
func (q *Queue) Remove(ctx context.Context, name string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM elements WHERE name = ? AND locked_at IS NOT NULL`, name,
	)
	if err != nil {
		return fmt.Errorf("removing element: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("removing element: %w", err)
	}
	if n == 1 {
		log.Debug(log.CatQueue, "element removed", "queue", "sqlite", "element", name)
		return nil
	}
	var exists int
	err = q.db.QueryRowContext(ctx,
		`SELECT 1 FROM elements WHERE name = ?`, name,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &queue.NotFoundError{Name: name}
	}
	if err != nil {
		return fmt.Errorf("removing element: %w", err)
	}
	return &queue.NotLockedError{Name: name}
}

// Count returns the number of elements, locked or not.
func (q *Queue) Count(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting elements: %w", err)
	}
	return n, nil
}

// Purge breaks locks older than the configured maximum. The SQLite
// backend has no temporary elements; inserts are already atomic.
func (q *Queue) Purge(ctx context.Context) error {
	cutoff := time.Now().Add(-q.maxLock).Unix()
	res, err := q.db.ExecContext(ctx,
		`UPDATE elements SET locked_at = NULL WHERE locked_at IS NOT NULL AND locked_at < ?`,
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("purging stale locks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Info(log.CatQueue, "broke stale locks", "queue", "sqlite", "count", n)
	}
	return nil
}

// First resets iteration and returns the first element name, or "".
// The snapshot is taken up front so iteration is stable under
// concurrent adds and removes.
func (q *Queue) First(ctx context.Context) (string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT name FROM elements ORDER BY id`)
	if err != nil {
		return "", fmt.Errorf("listing elements: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("listing elements: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("listing elements: %w", err)
	}

	q.mu.Lock()
	q.names = names
	q.mu.Unlock()
	return q.Next(ctx)
}

// Next returns the next element name, or "" when exhausted.
func (q *Queue) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.names) == 0 {
		return "", nil
	}
	name := q.names[0]
	q.names = q.names[1:]
	return name, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}
