// Package dedupe tracks mention delivery ids for at-most-once processing.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen delivery IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed delivery can be retried on a later cycle.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type slot struct {
	id  string
	seq uint64
}

// inMemoryDeduper keeps ids in a map and evicts in insertion order once
// maxSize insertions are outstanding. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // id -> insertion sequence
	ring    []slot            // insertion order, bounded mode only
	next    int               // ring write position
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seq++
	if d.maxSize > 0 {
		// The slot being overwritten holds the oldest insertion.
		old := d.ring[d.next]
		if seq, ok := d.seen[old.id]; ok && seq == old.seq {
			delete(d.seen, old.id)
		}
		d.ring[d.next] = slot{id: id, seq: d.seq}
		d.next = (d.next + 1) % d.maxSize
	}
	d.seen[id] = d.seq
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
