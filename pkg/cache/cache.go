// Package cache provides keyed async memoization with request deduplication
// and explicit invalidation. It backs every remote read in the client core:
// concurrent readers of one key share a single in-flight producer call, and
// mutations mark keys stale so the next read refetches.
package cache

import (
	"context"
	"strings"
	"sync"
)

// Status describes the lifecycle position of a cache entry.
type Status string

const (
	// StatusIdle marks a key with no entry yet.
	StatusIdle Status = "idle"
	// StatusLoading marks a key whose producer call is outstanding.
	StatusLoading Status = "loading"
	// StatusReady marks a key holding a settled value.
	StatusReady Status = "ready"
	// StatusError marks a key whose last producer call failed.
	StatusError Status = "error"
)

// Entry is the externally visible snapshot of one key. Entries are replaced
// wholesale on every transition, never partially mutated.
type Entry[V any] struct {
	Key    string
	Status Status
	Value  V
	Err    error
}

// Producer computes the value for a key. At most one producer call is
// outstanding per key at any time.
type Producer[V any] func(ctx context.Context) (V, error)

type record[V any] struct {
	status  Status
	value   V
	err     error
	stale   bool
	settled chan struct{}
}

// Cache memoizes producer results by string key.
type Cache[V any] struct {
	mu      sync.Mutex
	records map[string]*record[V]
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{records: make(map[string]*record[V])}
}

// Get returns the entry for key, invoking producer when the key is absent,
// stale, or previously errored. Callers that arrive while a producer call is
// outstanding for the same key block until it settles and observe the same
// result; no second producer call is issued. An errored entry is retried on
// the next Get, so re-issuing an intent is the retry mechanism.
func (c *Cache[V]) Get(ctx context.Context, key string, producer Producer[V]) (Entry[V], error) {
	c.mu.Lock()
	for {
		rec, ok := c.records[key]
		if ok && rec.status == StatusLoading {
			// Join the in-flight call. This holds even for a key
			// invalidated mid-flight: the invariant is one outstanding
			// producer per key, so the refetch waits its turn.
			settled := rec.settled
			c.mu.Unlock()
			select {
			case <-settled:
			case <-ctx.Done():
				return Entry[V]{Key: key, Status: StatusLoading}, ctx.Err()
			}
			c.mu.Lock()
			if rec2, ok := c.records[key]; ok && rec2 == rec {
				// Joiners observe the settled result of the call they
				// waited on, success or failure alike.
				entry := snapshot(key, rec)
				c.mu.Unlock()
				return entry, entry.Err
			}
			continue
		}
		if ok && !rec.stale && rec.status == StatusReady {
			entry := snapshot(key, rec)
			c.mu.Unlock()
			return entry, entry.Err
		}
		// Absent, stale, or errored: this caller runs the producer.
		break
	}

	rec := &record[V]{status: StatusLoading, settled: make(chan struct{})}
	c.records[key] = rec
	c.mu.Unlock()

	value, err := producer(ctx)

	c.mu.Lock()
	if err != nil {
		rec.status = StatusError
		rec.err = err
	} else {
		rec.status = StatusReady
		rec.value = value
	}
	close(rec.settled)
	entry := snapshot(key, rec)
	c.mu.Unlock()
	return entry, err
}

// Lookup returns the current entry for key without triggering any producer
// call. Absent keys report StatusIdle.
func (c *Cache[V]) Lookup(key string) Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	if !ok {
		return Entry[V]{Key: key, Status: StatusIdle}
	}
	return snapshot(key, rec)
}

// Stale reports whether key has been invalidated since it last settled.
func (c *Cache[V]) Stale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	return ok && rec.stale
}

// Invalidate marks key stale. The next Get for key re-invokes its producer;
// no fetch happens until then.
func (c *Cache[V]) Invalidate(key string) {
	c.InvalidateFunc(func(k string) bool { return k == key })
}

// InvalidatePrefix marks every key beginning with prefix stale.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.InvalidateFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// InvalidateFunc marks every key matching pred stale.
func (c *Cache[V]) InvalidateFunc(pred func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, rec := range c.records {
		if pred(key) {
			rec.stale = true
		}
	}
}

func snapshot[V any](key string, rec *record[V]) Entry[V] {
	return Entry[V]{Key: key, Status: rec.status, Value: rec.value, Err: rec.err}
}
