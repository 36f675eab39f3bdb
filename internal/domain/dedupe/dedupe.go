// Package dedupe tracks keys that are currently claimed, so a second caller
// for the same key can be turned away until the first releases it.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Deduper records claimed keys for at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is claimed and claims it if not.
	// Returns true if id was already claimed, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id so it can be claimed again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id string
	at time.Time
}

// inMemoryDeduper keeps claims in insertion order. When full, the oldest
// claim is evicted; claims older than ttl are treated as released.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
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
	if el, ok := d.seen[id]; ok {
		if !d.expired(el.Value.(entry), now) {
			return true
		}
		d.remove(el)
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.seen[id] = d.order.PushBack(entry{id: id, at: now})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[id]; ok {
		d.remove(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

func (d *inMemoryDeduper) expired(e entry, now time.Time) bool {
	return d.ttl > 0 && now.Sub(e.at) >= d.ttl
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.seen, el.Value.(entry).id)
	d.order.Remove(el)
}
