package tracker

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

const (
	// shardCount must be a power of 2 so shard selection is a mask.
	shardCount = 16
	shardMask  = shardCount - 1
)

// PrimBits is a sharded map from primitive id to dirty bits.
//
// Each shard has its own lock, so goroutines syncing distinct ids only
// contend when their ids hash to the same shard. PrimBits also carries a
// revision counter that increases on every change to its membership or to
// the bits of one of its entries.
//
// PrimBits is safe for concurrent use.
type PrimBits struct {
	shards   [shardCount]bitsShard
	revision atomic.Uint64
	count    atomic.Int64
}

type bitsShard struct {
	mu   sync.RWMutex
	bits map[sdfpath.Path]dirty.Bits
}

func newPrimBits() *PrimBits {
	m := &PrimBits{}
	for i := range m.shards {
		m.shards[i].bits = make(map[sdfpath.Path]dirty.Bits)
	}
	m.revision.Store(1)
	return m
}

func (m *PrimBits) shard(id sdfpath.Path) *bitsShard {
	return &m.shards[id.Hash()&shardMask]
}

// Insert starts tracking id with the given bits, replacing any previous
// entry.
func (m *PrimBits) Insert(id sdfpath.Path, bits dirty.Bits) {
	s := m.shard(id)
	s.mu.Lock()
	if _, ok := s.bits[id]; !ok {
		m.count.Add(1)
	}
	s.bits[id] = bits
	s.mu.Unlock()
	m.revision.Add(1)
}

// Remove stops tracking id. It reports whether id was tracked.
func (m *PrimBits) Remove(id sdfpath.Path) bool {
	s := m.shard(id)
	s.mu.Lock()
	_, ok := s.bits[id]
	if ok {
		delete(s.bits, id)
		m.count.Add(-1)
	}
	s.mu.Unlock()
	if ok {
		m.revision.Add(1)
	}
	return ok
}

// MarkDirty ORs bits into the entry for id, creating a clean entry first
// when id is unknown. It returns the resulting bits.
func (m *PrimBits) MarkDirty(id sdfpath.Path, bits dirty.Bits) dirty.Bits {
	s := m.shard(id)
	s.mu.Lock()
	old, ok := s.bits[id]
	if !ok {
		m.count.Add(1)
	}
	nb := old | bits
	s.bits[id] = nb
	s.mu.Unlock()
	if !ok || nb != old {
		m.revision.Add(1)
	}
	return nb
}

// MarkClean clears bits from the entry for id. Unknown ids are ignored.
// It reports whether any stored bit changed.
func (m *PrimBits) MarkClean(id sdfpath.Path, bits dirty.Bits) bool {
	s := m.shard(id)
	s.mu.Lock()
	old, ok := s.bits[id]
	changed := ok && old&bits != 0
	if changed {
		s.bits[id] = old &^ bits
	}
	s.mu.Unlock()
	if changed {
		m.revision.Add(1)
	}
	return changed
}

// Set replaces the bits of a tracked id. Unknown ids are ignored, so a
// store racing with a removal does not resurrect the entry. It returns the
// previous bits and whether id was tracked.
func (m *PrimBits) Set(id sdfpath.Path, bits dirty.Bits) (dirty.Bits, bool) {
	s := m.shard(id)
	s.mu.Lock()
	old, ok := s.bits[id]
	if ok {
		s.bits[id] = bits
	}
	s.mu.Unlock()
	if ok && old != bits {
		m.revision.Add(1)
	}
	return old, ok
}

// Get returns the bits for id, or Clean when id is unknown.
func (m *PrimBits) Get(id sdfpath.Path) dirty.Bits {
	b, _ := m.Lookup(id)
	return b
}

// Lookup returns the bits for id and whether id is tracked.
func (m *PrimBits) Lookup(id sdfpath.Path) (dirty.Bits, bool) {
	s := m.shard(id)
	s.mu.RLock()
	b, ok := s.bits[id]
	s.mu.RUnlock()
	return b, ok
}

// Update applies fn to every tracked entry and stores the result.
// It reports how many entries changed.
func (m *PrimBits) Update(fn func(id sdfpath.Path, bits dirty.Bits) dirty.Bits) int {
	changed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for id, b := range s.bits {
			if nb := fn(id, b); nb != b {
				s.bits[id] = nb
				changed++
			}
		}
		s.mu.Unlock()
	}
	if changed > 0 {
		m.revision.Add(1)
	}
	return changed
}

// Range calls fn for every tracked entry until fn returns false.
// Entries are visited in no particular order. fn must not modify m.
func (m *PrimBits) Range(fn func(id sdfpath.Path, bits dirty.Bits) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for id, b := range s.bits {
			if !fn(id, b) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Len returns the number of tracked ids.
func (m *PrimBits) Len() int { return int(m.count.Load()) }

// Revision returns the change counter.
func (m *PrimBits) Revision() uint64 { return m.revision.Load() }
