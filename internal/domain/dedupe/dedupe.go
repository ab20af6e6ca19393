// Package dedupe tracks ids that must not be processed twice: guesses with a
// resolution in flight and session tokens that were revoked.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Deduper records ids to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Seen reports whether id is recorded without recording it.
	Seen(ctx context.Context, id string) bool

	// Unrecord removes an id, allowing it to be recorded again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id      string
	expires time.Time // zero when ttl is off
}

// inMemoryDeduper keeps ids in insertion order.
//
// Without a ttl the set is bounded by maxSize and the oldest id is evicted
// when it is full; maxSize <= 0 never evicts. With a ttl an id lives exactly
// ttl after it was recorded and maxSize is ignored, so a live id is never
// dropped early.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)
	if _, exists := d.seen[id]; exists {
		return true
	}

	e := entry{id: id}
	if d.ttl > 0 {
		e.expires = now.Add(d.ttl)
	} else if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushFront(e)
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire(d.now())
	_, exists := d.seen[id]
	return exists
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[id]; exists {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

// expire drops ids whose ttl has passed. Every id gets the same ttl, so the
// oldest ids expire first. Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Back(); el != nil; el = d.order.Back() {
		e := el.Value.(entry)
		if now.Before(e.expires) {
			return
		}
		d.order.Remove(el)
		delete(d.seen, e.id)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(entry).id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire(d.now())
	return int64(len(d.seen))
}
