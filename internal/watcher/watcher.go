// Package watcher provides file system watching with debouncing for
// directory queues. It tracks the queue root and its time buckets,
// publishes per-element activity on a pub/sub broker and coalesces
// bursts into a single change signal for consumers that only need to
// refresh.
package watcher

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/courier-mq/courier/internal/pubsub"
)

// Backend lock artifacts: dirq puts a "locked" marker file inside the
// element directory, simple hardlinks "<element>.lck" in the bucket.
const (
	lockMarkerFile = "locked"
	lockSuffix     = ".lck"
)

// Watcher monitors a directory queue for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration
	onChange  chan struct{}
	events    *pubsub.Broker[string]
	done      chan struct{}

	// known holds element names already reported as added. The bucket
	// scan and the element's own create event can both see an element;
	// only the event loop touches this map.
	known map[string]struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Root is the queue root directory.
	Root string

	// DebounceDur coalesces bursts of events into one change signal.
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		DebounceDur: 1 * time.Second,
	}
}

// New creates a new queue watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      filepath.Clean(cfg.Root),
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		events:    pubsub.NewBroker[string](),
		done:      make(chan struct{}),
		known:     make(map[string]struct{}),
	}, nil
}

// Start begins watching the queue root and its existing buckets.
// Returns a channel that receives a signal when the queue changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.root); err != nil {
		return nil, fmt.Errorf("watching queue root %s: %w", w.root, err)
	}
	// Existing buckets; new ones are picked up from create events.
	// Elements present before Start are activity from before the watch,
	// not adds: mark them known and watch their directories for locks.
	matches, _ := filepath.Glob(filepath.Join(w.root, "????????"))
	for _, m := range matches {
		if !isBucketName(filepath.Base(m)) {
			continue
		}
		_ = w.fsWatcher.Add(m)
		entries, err := os.ReadDir(m)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !isElementName(e.Name()) {
				continue
			}
			w.known[path.Join(filepath.Base(m), e.Name())] = struct{}{}
			if e.IsDir() {
				_ = w.fsWatcher.Add(filepath.Join(m, e.Name()))
			}
		}
	}

	go w.loop()

	return w.onChange, nil
}

// Events returns the broker publishing element-level activity.
// Payloads are element names ("bucket/element").
func (w *Watcher) Events() *pubsub.Broker[string] {
	return w.events
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	w.events.Close()
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.handleEvent(event) {
				continue
			}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = true
			} else {
				if !timer.Stop() {
					// Drain the timer channel if it already fired
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
				pending = true
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				// Non-blocking send - drop if channel full
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Keep watching; callers needing error visibility can wrap.

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// handleEvent classifies an fsnotify event. It returns true when the
// event represents queue activity worth a change signal.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	switch len(parts) {
	case 1:
		// A new bucket directory at the root. The first element's rename
		// into the bucket can land before this watch exists, so scan for
		// elements already present.
		if event.Op&fsnotify.Create != 0 && isBucketName(parts[0]) {
			_ = w.fsWatcher.Add(event.Name)
			return w.scanBucket(event.Name, parts[0])
		}
		return false
	case 2:
		bucket, entry := parts[0], parts[1]
		if !isBucketName(bucket) {
			return false
		}
		if elem, ok := strings.CutSuffix(entry, lockSuffix); ok && isElementName(elem) {
			// The simple backend locks by hardlinking "<element>.lck".
			if event.Op&fsnotify.Create != 0 {
				w.events.Publish(pubsub.ElementLockedEvent, path.Join(bucket, elem))
				return true
			}
			return false
		}
		if !isElementName(entry) {
			return false
		}
		name := path.Join(bucket, entry)
		switch {
		case event.Op&fsnotify.Create != 0:
			// Elements appear via rename, which fsnotify reports as Create.
			return w.reportAdded(event.Name, name)
		case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			delete(w.known, name)
			w.events.Publish(pubsub.ElementRemovedEvent, name)
			return true
		}
		return false
	case 3:
		// Inside a dirq element directory: the lock marker appearing.
		if parts[2] == lockMarkerFile && isElementName(parts[1]) && event.Op&fsnotify.Create != 0 {
			w.events.Publish(pubsub.ElementLockedEvent, path.Join(parts[0], parts[1]))
			return true
		}
		return false
	default:
		return false
	}
}

// scanBucket reports elements that landed in a bucket before its watch
// was in place. Returns true when at least one element was reported.
func (w *Watcher) scanBucket(dir, bucket string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	found := false
	for _, e := range entries {
		if !isElementName(e.Name()) {
			continue
		}
		if w.reportAdded(filepath.Join(dir, e.Name()), path.Join(bucket, e.Name())) {
			found = true
		}
	}
	return found
}

// reportAdded publishes an added event once per element and, for dirq
// element directories, starts watching for the lock marker.
func (w *Watcher) reportAdded(fsPath, name string) bool {
	if _, dup := w.known[name]; dup {
		return false
	}
	w.known[name] = struct{}{}
	if info, err := os.Stat(fsPath); err == nil && info.IsDir() {
		_ = w.fsWatcher.Add(fsPath)
	}
	w.events.Publish(pubsub.ElementAddedEvent, name)
	return true
}

func isBucketName(s string) bool {
	return isHex(s, 8)
}

func isElementName(s string) bool {
	return isHex(s, 14)
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
