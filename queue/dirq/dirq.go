// Package dirq implements the directory-based message queue, the
// default courier backend. Each element is a directory holding the
// message header and body as separate files, so binary bodies are
// stored verbatim. Elements are grouped into time buckets and added
// atomically (staged under temporary/, then renamed), which makes the
// queue safe for concurrent producers and consumers sharing a
// filesystem, NFS included.
package dirq

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/message"
	"github.com/courier-mq/courier/queue"
)

// On-disk layout:
//
//	root/
//	  temporary/<uuid>/          staging area for in-flight adds
//	  <bucket>/<element>/        bucket: 8 hex digits of truncated unix time
//	    header                   sorted key<TAB>value lines, escaped
//	    body                     raw body bytes
//	    text                     marker, present for text bodies
//	    locked                   marker, present while claimed
const (
	temporaryDir = "temporary"
	headerFile   = "header"
	bodyFile     = "body"
	textFile     = "text"
	lockedFile   = "locked"
)

const dirPerm = 0o755

func init() {
	queue.Register(queue.TypeDirq, func(cfg queue.Config) (queue.Queue, error) {
		return New(cfg)
	})
}

// seq disambiguates element names generated within the same
// microsecond by this process.
var seq atomic.Uint32

// Queue is the directory queue backend.
type Queue struct {
	root        string
	granularity time.Duration
	maxLock     time.Duration
	maxTemp     time.Duration

	mu      sync.Mutex
	buckets []string // remaining buckets for the current iteration
	elems   []string // remaining element names in the current bucket
}

var _ queue.Queue = (*Queue)(nil)

// New creates (or opens) a directory queue rooted at cfg.Path.
func New(cfg queue.Config) (*Queue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("dirq: path is required")
	}
	root := filepath.Clean(cfg.Path)
	if err := os.MkdirAll(filepath.Join(root, temporaryDir), dirPerm); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}

	q := &Queue{
		root:        root,
		granularity: cfg.Granularity,
		maxLock:     cfg.MaxLock,
		maxTemp:     cfg.MaxTemp,
	}
	if q.granularity <= 0 {
		q.granularity = queue.DefaultGranularity
	}
	if q.maxLock <= 0 {
		q.maxLock = queue.DefaultMaxLock
	}
	if q.maxTemp <= 0 {
		q.maxTemp = queue.DefaultMaxTemp
	}
	return q, nil
}

// Path returns the queue root directory.
func (q *Queue) Path() string {
	return q.root
}

// Add stores a message. The element is staged under temporary/ and
// renamed into its bucket, so readers never observe partial elements.
func (q *Queue) Add(ctx context.Context, msg *message.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	staging := filepath.Join(q.root, temporaryDir, uuid.NewString())
	if err := os.Mkdir(staging, dirPerm); err != nil {
		return "", fmt.Errorf("staging element: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(staging) }

	if err := writeElement(staging, msg); err != nil {
		cleanup()
		return "", err
	}

	// Rename into the bucket. A name collision (same microsecond,
	// another writer) makes the rename fail because the target is a
	// non-empty directory; retry with a fresh name.
	for attempt := 0; attempt < 16; attempt++ {
		now := time.Now()
		bucket := q.bucketName(now)
		name := elementName(now)
		bucketDir := filepath.Join(q.root, bucket)
		if err := os.MkdirAll(bucketDir, dirPerm); err != nil {
			cleanup()
			return "", fmt.Errorf("creating bucket: %w", err)
		}
		dest := filepath.Join(bucketDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := os.Rename(staging, dest); err != nil {
			if os.IsExist(err) {
				continue
			}
			cleanup()
			return "", fmt.Errorf("publishing element: %w", err)
		}
		full := path.Join(bucket, name)
		log.Debug(log.CatQueue, "element added", "queue", q.root, "element", full)
		return full, nil
	}
	cleanup()
	return "", fmt.Errorf("could not find a free element name")
}

// Lock claims an element. Returns (false, nil) when the element is
// already locked or has vanished.
func (q *Queue) Lock(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := q.elementDir(name)
	if err != nil {
		return false, err
	}
	f, err := os.OpenFile(filepath.Join(dir, lockedFile), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("locking element: %w", err)
	}
	_ = f.Close()
	return true, nil
}

// Unlock releases a claimed element. Returns (false, nil) when the
// element was not locked.
func (q *Queue) Unlock(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := q.elementDir(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(filepath.Join(dir, lockedFile)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("unlocking element: %w", err)
	}
	return true, nil
}

// Get reads a locked element's message.
func (q *Queue) Get(ctx context.Context, name string) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := q.elementDir(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, lockedFile)); err != nil {
		if os.IsNotExist(err) {
			if _, serr := os.Stat(dir); os.IsNotExist(serr) {
				return nil, &queue.NotFoundError{Name: name}
			}
			return nil, &queue.NotLockedError{Name: name}
		}
		return nil, fmt.Errorf("checking lock: %w", err)
	}
	return readElement(dir)
}

// Remove deletes a locked element.
func (q *Queue) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := q.elementDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, lockedFile)); err != nil {
		if os.IsNotExist(err) {
			if _, serr := os.Stat(dir); os.IsNotExist(serr) {
				return &queue.NotFoundError{Name: name}
			}
			return &queue.NotLockedError{Name: name}
		}
		return fmt.Errorf("checking lock: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing element: %w", err)
	}
	log.Debug(log.CatQueue, "element removed", "queue", q.root, "element", name)
	return nil
}

// Count returns the number of elements, locked or not.
func (q *Queue) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buckets, err := q.bucketNames()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, bucket := range buckets {
		elems, err := q.elementNames(bucket)
		if err != nil {
			return 0, err
		}
		count += len(elems)
	}
	return count, nil
}

// Purge reclaims stale locks, deletes old temporary elements and
// removes empty past buckets.
func (q *Queue) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()

	// Stale temporary elements from writers that died mid-add.
	tmpDir := filepath.Join(q.root, temporaryDir)
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return fmt.Errorf("reading temporary dir: %w", err)
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > q.maxTemp {
			log.Info(log.CatQueue, "purging stale temporary element", "queue", q.root, "element", entry.Name())
			_ = os.RemoveAll(filepath.Join(tmpDir, entry.Name()))
		}
	}

	buckets, err := q.bucketNames()
	if err != nil {
		return err
	}
	currentBucket := q.bucketName(now)
	for _, bucket := range buckets {
		elems, err := q.elementNames(bucket)
		if err != nil {
			return err
		}
		for _, elem := range elems {
			lockPath := filepath.Join(q.root, bucket, elem, lockedFile)
			info, err := os.Stat(lockPath)
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > q.maxLock {
				log.Info(log.CatQueue, "breaking stale lock", "queue", q.root, "element", path.Join(bucket, elem))
				_ = os.Remove(lockPath)
			}
		}
		// Empty past buckets can go; the current one may be receiving
		// writes.
		if len(elems) == 0 && bucket < currentBucket {
			_ = os.Remove(filepath.Join(q.root, bucket))
		}
	}
	return nil
}

// First resets iteration and returns the first element name, or "".
func (q *Queue) First(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	buckets, err := q.bucketNames()
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	q.buckets = buckets
	q.elems = nil
	q.mu.Unlock()
	return q.Next(ctx)
}

// Next returns the next element name in rough FIFO order, or "" when
// the iteration is exhausted.
func (q *Queue) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.elems) > 0 {
			name := q.elems[0]
			q.elems = q.elems[1:]
			return name, nil
		}
		if len(q.buckets) == 0 {
			return "", nil
		}
		bucket := q.buckets[0]
		q.buckets = q.buckets[1:]
		elems, err := q.elementNames(bucket)
		if err != nil {
			return "", err
		}
		for _, elem := range elems {
			q.elems = append(q.elems, path.Join(bucket, elem))
		}
	}
}

// Close is a no-op for the directory backend.
func (q *Queue) Close() error {
	return nil
}

// elementDir validates an element name and returns its directory.
// Names are always "bucket/element"; anything else is rejected to keep
// callers from escaping the queue root.
func (q *Queue) elementDir(name string) (string, error) {
	bucket, elem, ok := strings.Cut(name, "/")
	if !ok || !isHex(bucket, 8) || !isHex(elem, 14) {
		return "", fmt.Errorf("invalid element name: %q", name)
	}
	return filepath.Join(q.root, bucket, elem), nil
}

func (q *Queue) bucketName(t time.Time) string {
	gran := int64(q.granularity / time.Second)
	sec := t.Unix()
	return fmt.Sprintf("%08x", sec-sec%gran)
}

// bucketNames returns the sorted bucket directory names.
func (q *Queue) bucketNames() ([]string, error) {
	entries, err := os.ReadDir(q.root)
	if err != nil {
		return nil, fmt.Errorf("reading queue dir: %w", err)
	}
	var buckets []string
	for _, entry := range entries {
		if entry.IsDir() && isHex(entry.Name(), 8) {
			buckets = append(buckets, entry.Name())
		}
	}
	sort.Strings(buckets)
	return buckets, nil
}

// elementNames returns the sorted element names within a bucket.
func (q *Queue) elementNames(bucket string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(q.root, bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading bucket %s: %w", bucket, err)
	}
	var elems []string
	for _, entry := range entries {
		if entry.IsDir() && isHex(entry.Name(), 14) {
			elems = append(elems, entry.Name())
		}
	}
	sort.Strings(elems)
	return elems, nil
}

// elementName builds a 14 hex digit name from seconds, microseconds
// and a per-process counter, keeping lexical order aligned with
// creation order for a single writer.
func elementName(t time.Time) string {
	return fmt.Sprintf("%08x%05x%01x", t.Unix(), t.Nanosecond()/1000, seq.Add(1)&0xf)
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
