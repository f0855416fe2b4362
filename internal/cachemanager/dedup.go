package cachemanager

import (
	"context"
	"time"
)

// Checksum identifies a message by its md5 checksum.
type Checksum string

// Deduper remembers message checksums for a sliding window so the
// forward command can skip messages it has already shoveled.
type Deduper struct {
	cache  CacheManager[Checksum, struct{}]
	window time.Duration
}

// NewDeduper creates a deduper with the given window. A zero window
// falls back to DefaultExpiration.
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultExpiration
	}
	return &Deduper{
		cache:  NewInMemoryCacheManager[Checksum, struct{}]("forward-dedup", window, DefaultCleanupInterval),
		window: window,
	}
}

// Seen reports whether the checksum was observed within the window and
// marks it. The mark refreshes on every call, so a message that keeps
// reappearing stays suppressed.
func (d *Deduper) Seen(ctx context.Context, sum Checksum) bool {
	_, seen := d.cache.GetWithRefresh(ctx, sum, d.window)
	if !seen {
		d.cache.Set(ctx, sum, struct{}{}, d.window)
	}
	return seen
}

// Reset forgets every remembered checksum.
func (d *Deduper) Reset(ctx context.Context) {
	_ = d.cache.Flush(ctx)
}
