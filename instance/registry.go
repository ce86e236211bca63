// Package instance deduplicates derived resources by content hash.
//
// A Registry maps a 64-bit content hash to one shared, reference-counted
// value. The first caller to register a hash becomes its builder; every
// other caller for the same hash receives a handle to the same entry and
// waits for the builder to publish the value. Between two garbage
// collections the build for a hash runs at most once, however many
// goroutines request it.
//
// Typical use:
//
//	inst, err := reg.GetOrBuild(ctx, h.Sum64(), func() (*Topology, error) {
//		return newTopology(src), nil
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Release()
//	topo, _ := inst.Value(ctx)
package instance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

const (
	shardCount = 16
	shardMask  = shardCount - 1
)

var (
	// ErrAbandoned is returned by Value when the builder gave up.
	// Callers retry by registering the hash again.
	ErrAbandoned = errors.New("instance: build abandoned")

	// ErrNotFirstInstance is returned when a handle that did not create the
	// entry tries to publish or abandon it.
	ErrNotFirstInstance = errors.New("instance: not the first instance")

	// ErrAlreadyResolved is returned when an entry is published twice.
	ErrAlreadyResolved = errors.New("instance: value already resolved")

	// ErrPending is returned when the builder itself asks for the value
	// before publishing it.
	ErrPending = errors.New("instance: value not yet published")
)

// Registry is a concurrent content-hash table of shared values.
//
// Registry is safe for concurrent use. The zero value is not usable; use
// NewRegistry.
type Registry[T any] struct {
	shards [shardCount]shard[T]

	hits      atomic.Uint64
	misses    atomic.Uint64
	builds    atomic.Uint64
	abandoned atomic.Uint64
	collected atomic.Uint64
}

type shard[T any] struct {
	mu      sync.Mutex
	entries map[uint64]*entry[T]
}

type entryState uint8

const (
	statePending entryState = iota
	stateReady
	stateAbandoned
)

type entry[T any] struct {
	hash uint64
	refs atomic.Int64

	mu    sync.Mutex
	state entryState
	done  chan struct{}
	value T
	err   error
}

// Stats is a snapshot of registry counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Builds    uint64
	Abandoned uint64
	Collected uint64
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	r := &Registry[T]{}
	for i := range r.shards {
		r.shards[i].entries = make(map[uint64]*entry[T])
	}
	return r
}

func (r *Registry[T]) shard(hash uint64) *shard[T] {
	// Mix the high bits in; content hashes of small inputs can share low bits.
	return &r.shards[(hash^hash>>32)&shardMask]
}

// Register looks up hash and takes a reference to its entry, creating a
// pending entry when none exists. The returned handle's IsFirstInstance
// reports whether this call created the entry, in which case the caller
// must eventually call SetValue or Abandon.
func (r *Registry[T]) Register(hash uint64) *Instance[T] {
	s := r.shard(hash)
	s.mu.Lock()
	e, ok := s.entries[hash]
	if ok {
		e.refs.Add(1)
		s.mu.Unlock()
		r.hits.Add(1)
		return &Instance[T]{reg: r, e: e}
	}
	e = &entry[T]{hash: hash, done: make(chan struct{})}
	e.refs.Store(1)
	s.entries[hash] = e
	s.mu.Unlock()
	r.misses.Add(1)
	return &Instance[T]{reg: r, e: e, first: true}
}

// GetOrBuild registers hash and, when this call is first, runs build and
// publishes its result. A failed build is abandoned and its error
// returned; nothing is cached. When another builder abandons while this
// call waits, GetOrBuild registers again and may become the builder.
func (r *Registry[T]) GetOrBuild(ctx context.Context, hash uint64, build func() (T, error)) (*Instance[T], error) {
	for {
		inst := r.Register(hash)
		if inst.IsFirstInstance() {
			v, err := build()
			if err != nil {
				_ = inst.Abandon(err)
				inst.Release()
				return nil, err
			}
			if err := inst.SetValue(v); err != nil {
				inst.Release()
				return nil, err
			}
			return inst, nil
		}
		_, err := inst.Value(ctx)
		if err == nil {
			return inst, nil
		}
		inst.Release()
		if !errors.Is(err, ErrAbandoned) {
			return nil, err
		}
	}
}

// GarbageCollect removes every published entry that no handle references
// and returns how many were removed. Pending entries are never removed.
func (r *Registry[T]) GarbageCollect() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for h, e := range s.entries {
			if e.refs.Load() > 0 {
				continue
			}
			e.mu.Lock()
			state := e.state
			e.mu.Unlock()
			if state == statePending {
				continue
			}
			delete(s.entries, h)
			n++
		}
		s.mu.Unlock()
	}
	r.collected.Add(uint64(n))
	return n
}

// Len returns the number of entries, pending ones included.
func (r *Registry[T]) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns a snapshot of the registry counters.
func (r *Registry[T]) Stats() Stats {
	return Stats{
		Entries:   r.Len(),
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Builds:    r.builds.Load(),
		Abandoned: r.abandoned.Load(),
		Collected: r.collected.Load(),
	}
}

// Instance is one reference to a registry entry.
type Instance[T any] struct {
	reg      *Registry[T]
	e        *entry[T]
	first    bool
	released atomic.Bool
}

// IsFirstInstance reports whether this handle created the entry and is
// therefore responsible for building its value.
func (i *Instance[T]) IsFirstInstance() bool { return i.first }

// Hash returns the content hash of the entry.
func (i *Instance[T]) Hash() uint64 { return i.e.hash }

// SetValue publishes v and wakes every waiter. Only the first instance
// may call it, and only once.
func (i *Instance[T]) SetValue(v T) error {
	if !i.first {
		return ErrNotFirstInstance
	}
	e := i.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != statePending {
		return ErrAlreadyResolved
	}
	e.value = v
	e.state = stateReady
	close(e.done)
	i.reg.builds.Add(1)
	return nil
}

// Abandon gives up building the value. The entry is removed from the
// registry so the next Register starts a fresh build, and current waiters
// receive an error wrapping ErrAbandoned and cause.
func (i *Instance[T]) Abandon(cause error) error {
	if !i.first {
		return ErrNotFirstInstance
	}
	e := i.e
	s := i.reg.shard(e.hash)
	s.mu.Lock()
	if s.entries[e.hash] == e {
		delete(s.entries, e.hash)
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != statePending {
		return ErrAlreadyResolved
	}
	if cause == nil {
		e.err = ErrAbandoned
	} else {
		e.err = errors.Join(ErrAbandoned, cause)
	}
	e.state = stateAbandoned
	close(e.done)
	i.reg.abandoned.Add(1)
	return nil
}

// Value returns the published value, blocking until the builder calls
// SetValue or Abandon, or ctx is done.
func (i *Instance[T]) Value(ctx context.Context) (T, error) {
	var zero T
	e := i.e
	if i.first {
		e.mu.Lock()
		pending := e.state == statePending
		e.mu.Unlock()
		if pending {
			return zero, ErrPending
		}
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateReady {
		return zero, e.err
	}
	return e.value, nil
}

// Get is Value for callers that know the value is published; it returns
// the zero value otherwise.
func (i *Instance[T]) Get() T {
	e := i.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateReady {
		var zero T
		return zero
	}
	return e.value
}

// Release drops this handle's reference. The entry becomes eligible for
// garbage collection once every handle is released. Release is idempotent.
func (i *Instance[T]) Release() {
	if i.released.CompareAndSwap(false, true) {
		i.e.refs.Add(-1)
	}
}

// RefCount returns the number of live references to the entry.
func (i *Instance[T]) RefCount() int64 { return i.e.refs.Load() }

// Same reports whether i and other refer to the same entry.
func (i *Instance[T]) Same(other *Instance[T]) bool {
	return other != nil && i.e == other.e
}
