// Package dedupe tracks keys that are currently in flight so the same piece of
// work is never queued twice.
package dedupe

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper records in-flight keys to ensure at-most-one active unit of work per key.
type Deduper interface {
	// SeenAndRecord atomically checks if key is in flight and records it if not.
	// Returns true if key was already in flight, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key once its work has finished or could not be queued.
	Unrecord(ctx context.Context, key string)

	// InFlight lists the recorded keys in ascending order.
	InFlight() []string

	Size() int64
}

// inMemoryDeduper implements Deduper with a map of key -> record time.
// With a ttl > 0, a record older than ttl no longer blocks its key; this bounds
// the damage of a caller that never reaches Unrecord.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
	size atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, exists := d.seen[key]; exists {
		if d.ttl <= 0 || now.Sub(at) < d.ttl {
			return true
		}
		// stale record, take it over
		d.seen[key] = now
		return false
	}
	d.seen[key] = now
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) InFlight() []string {
	d.mu.Lock()
	keys := make([]string, 0, len(d.seen))
	for k := range d.seen {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
