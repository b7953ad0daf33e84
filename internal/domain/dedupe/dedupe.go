// Package dedupe tracks which rating batches were already applied so a
// re-finalized tournament never moves ratings twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records batch keys for at-most-once application.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was recorded and records it
	// if not. It returns true when key had already been recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Seen reports whether key is recorded without recording it.
	Seen(ctx context.Context, key string) bool

	// Unrecord forgets key so the batch can be applied again. Use it when a
	// batch was claimed but could not be applied.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// ledger keeps keys in insertion order. When bounded, the oldest key is
// evicted first.
type ledger struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
}

// NewInMemoryDeduper creates an in-memory ledger.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ledger{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.keys = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *ledger) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.keys, oldest.Value.(string))
	}
	d.keys[key] = d.order.PushBack(key)
	return false
}

func (d *ledger) Seen(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok
}

func (d *ledger) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.order.Remove(el)
		delete(d.keys, key)
	}
}

func (d *ledger) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
