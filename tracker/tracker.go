// Package tracker records what changed in a render index since the last
// synchronization.
//
// A Tracker keeps one dirty-bit entry per primitive, split into separate id
// spaces for rprims, instancers, sprims, bprims and tasks, together with the
// revision counters that dirty lists and render tasks use to decide whether
// their cached state is still valid.
//
// All methods are safe for concurrent use. Entries are stored in sharded
// maps so that goroutines syncing distinct primitives do not serialize on a
// single lock.
package tracker

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// Tracker is the change tracker of one render index.
type Tracker struct {
	rprims     *PrimBits
	instancers *PrimBits
	sprims     *PrimBits
	bprims     *PrimBits
	tasks      *PrimBits

	// sceneRevision increases on every rprim MarkDirty that sets a bit
	// and on every rprim insertion or removal.
	sceneRevision atomic.Uint64
	// cleanRevision increases whenever stored rprim bits lose bits
	// without any bit being added.
	cleanRevision   atomic.Uint64
	varyingRevision atomic.Uint64
	rprimIndexRev   atomic.Uint64

	colMu       sync.RWMutex
	collections map[string]uint64

	depMu      sync.RWMutex
	dependents map[sdfpath.Path]map[sdfpath.Path]struct{}

	log *slog.Logger
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for tracker diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates an empty tracker. Every revision counter starts at 1 so a
// zero stamp is always stale.
func New(opts ...Option) *Tracker {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = hydra.LoggerOr(o.logger, nil)
	t := &Tracker{
		rprims:      newPrimBits(),
		instancers:  newPrimBits(),
		sprims:      newPrimBits(),
		bprims:      newPrimBits(),
		tasks:       newPrimBits(),
		collections: make(map[string]uint64),
		dependents:  make(map[sdfpath.Path]map[sdfpath.Path]struct{}),
		log:         o.logger,
	}
	t.sceneRevision.Store(1)
	t.cleanRevision.Store(1)
	t.varyingRevision.Store(1)
	t.rprimIndexRev.Store(1)
	return t
}

// ---------------------------------------------------------------------------
// Rprims
// ---------------------------------------------------------------------------

// RprimInserted starts tracking an rprim with its initial bits.
func (t *Tracker) RprimInserted(id sdfpath.Path, initial dirty.Bits) {
	t.rprims.Insert(id, initial)
	t.sceneRevision.Add(1)
	t.rprimIndexRev.Add(1)
}

// RprimRemoved erases the entry for id. The index calls it exactly once
// per removal, before any dirty list recomputes.
func (t *Tracker) RprimRemoved(id sdfpath.Path) {
	t.rprims.Remove(id)
	t.sceneRevision.Add(1)
	t.rprimIndexRev.Add(1)
}

// MarkRprimDirty ORs bits into the entry for id, creating a clean entry
// first when id is unknown. Marking with Clean is a no-op.
func (t *Tracker) MarkRprimDirty(id sdfpath.Path, bits dirty.Bits) {
	if bits == dirty.Clean {
		t.log.Debug("tracker: MarkRprimDirty with clean bits", "id", id)
		return
	}
	t.rprims.MarkDirty(id, bits)
	t.sceneRevision.Add(1)
	if bits&(dirty.DirtyVisibility|dirty.DirtyPrimID) != 0 {
		t.varyingRevision.Add(1)
	}
}

// MarkRprimClean clears bits from the entry for id. Unknown ids are
// ignored because a prim may be removed while a clear is queued.
func (t *Tracker) MarkRprimClean(id sdfpath.Path, bits dirty.Bits) {
	if t.rprims.MarkClean(id, bits) {
		t.cleanRevision.Add(1)
	}
}

// RprimDirtyBits returns the bits for id. An unknown id reports Clean.
func (t *Tracker) RprimDirtyBits(id sdfpath.Path) dirty.Bits {
	return t.rprims.Get(id)
}

// HasRprim reports whether id is tracked.
func (t *Tracker) HasRprim(id sdfpath.Path) bool {
	_, ok := t.rprims.Lookup(id)
	return ok
}

// SetRprimDirtyBits stores a primitive's post-sync bits. A store that only
// removes bits does not advance the scene revision; dirty lists filter
// their cached members instead of walking the index again. A store that
// adds a bit counts as a MarkDirty. Unknown ids are ignored.
func (t *Tracker) SetRprimDirtyBits(id sdfpath.Path, bits dirty.Bits) {
	old, ok := t.rprims.Set(id, bits)
	if !ok || old == bits {
		return
	}
	if bits&^old != 0 {
		t.sceneRevision.Add(1)
		return
	}
	t.cleanRevision.Add(1)
}

// MarkAllRprimsDirty ORs bits into every tracked rprim.
func (t *Tracker) MarkAllRprimsDirty(bits dirty.Bits) {
	if bits == dirty.Clean {
		return
	}
	t.rprims.Update(func(_ sdfpath.Path, b dirty.Bits) dirty.Bits { return b | bits })
	t.sceneRevision.Add(1)
	if bits&(dirty.DirtyVisibility|dirty.DirtyPrimID) != 0 {
		t.varyingRevision.Add(1)
	}
}

// ResetVaryingState clears the Varying marker from every rprim that has
// no other dirty bit set.
func (t *Tracker) ResetVaryingState() {
	n := t.rprims.Update(func(_ sdfpath.Path, b dirty.Bits) dirty.Bits {
		if b&dirty.AllDirty == 0 {
			return b &^ dirty.Varying
		}
		return b
	})
	t.varyingRevision.Add(1)
	if n > 0 {
		t.cleanRevision.Add(1)
	}
}

// RprimCount returns the number of tracked rprims.
func (t *Tracker) RprimCount() int { return t.rprims.Len() }

// ---------------------------------------------------------------------------
// Instancers
// ---------------------------------------------------------------------------

// InstancerInserted starts tracking an instancer.
func (t *Tracker) InstancerInserted(id sdfpath.Path, initial dirty.Bits) {
	t.instancers.Insert(id, initial)
}

// InstancerRemoved erases the instancer entry and its dependency record.
func (t *Tracker) InstancerRemoved(id sdfpath.Path) {
	t.instancers.Remove(id)
	t.depMu.Lock()
	delete(t.dependents, id)
	t.depMu.Unlock()
}

// AddInstancerDependency records that rprim draws through instancer.
func (t *Tracker) AddInstancerDependency(instancer, rprim sdfpath.Path) {
	t.depMu.Lock()
	set, ok := t.dependents[instancer]
	if !ok {
		set = make(map[sdfpath.Path]struct{})
		t.dependents[instancer] = set
	}
	set[rprim] = struct{}{}
	t.depMu.Unlock()
}

// RemoveInstancerDependency drops a dependency recorded by
// AddInstancerDependency.
func (t *Tracker) RemoveInstancerDependency(instancer, rprim sdfpath.Path) {
	t.depMu.Lock()
	if set, ok := t.dependents[instancer]; ok {
		delete(set, rprim)
		if len(set) == 0 {
			delete(t.dependents, instancer)
		}
	}
	t.depMu.Unlock()
}

// InstancerDependents returns the rprims that draw through instancer,
// in path order.
func (t *Tracker) InstancerDependents(instancer sdfpath.Path) []sdfpath.Path {
	t.depMu.RLock()
	set := t.dependents[instancer]
	ids := make([]sdfpath.Path, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	t.depMu.RUnlock()
	sortPaths(ids)
	return ids
}

// MarkInstancerDirty ORs bits into the instancer entry and marks every
// dependent rprim DirtyInstancer. Instance-index changes also mark the
// dependants DirtyInstanceIndex.
func (t *Tracker) MarkInstancerDirty(id sdfpath.Path, bits dirty.Bits) {
	if bits == dirty.Clean {
		return
	}
	t.instancers.MarkDirty(id, bits)

	toRprim := dirty.DirtyInstancer
	if bits&dirty.InstancerDirtyInstanceIndex != 0 {
		toRprim |= dirty.DirtyInstanceIndex
	}
	for _, rprim := range t.InstancerDependents(id) {
		t.MarkRprimDirty(rprim, toRprim)
	}
}

// MarkInstancerClean clears bits from the instancer entry.
func (t *Tracker) MarkInstancerClean(id sdfpath.Path, bits dirty.Bits) {
	t.instancers.MarkClean(id, bits)
}

// SetInstancerDirtyBits stores an instancer's post-sync bits. Unknown ids
// are ignored.
func (t *Tracker) SetInstancerDirtyBits(id sdfpath.Path, bits dirty.Bits) {
	t.instancers.Set(id, bits)
}

// InstancerDirtyBits returns the bits for an instancer, Clean if unknown.
func (t *Tracker) InstancerDirtyBits(id sdfpath.Path) dirty.Bits {
	return t.instancers.Get(id)
}

// ---------------------------------------------------------------------------
// Sprims, bprims and tasks
// ---------------------------------------------------------------------------

// Sprims returns the state-primitive id space.
func (t *Tracker) Sprims() *PrimBits { return t.sprims }

// Bprims returns the buffer-primitive id space.
func (t *Tracker) Bprims() *PrimBits { return t.bprims }

// Tasks returns the task id space.
func (t *Tracker) Tasks() *PrimBits { return t.tasks }

// ---------------------------------------------------------------------------
// Collections and revisions
// ---------------------------------------------------------------------------

// MarkCollectionDirty bumps the revision of the named collection and the
// rprim membership revision, forcing every dirty list to recompute.
func (t *Tracker) MarkCollectionDirty(name string) {
	t.colMu.Lock()
	t.collections[name]++
	t.colMu.Unlock()
	t.rprimIndexRev.Add(1)
}

// MarkAllCollectionsDirty bumps every known collection revision.
func (t *Tracker) MarkAllCollectionsDirty() {
	t.colMu.Lock()
	for name := range t.collections {
		t.collections[name]++
	}
	t.colMu.Unlock()
	t.rprimIndexRev.Add(1)
}

// CollectionRevision returns the revision of the named collection; an
// unknown name reports 0.
func (t *Tracker) CollectionRevision(name string) uint64 {
	t.colMu.RLock()
	defer t.colMu.RUnlock()
	return t.collections[name]
}

// SceneRevision returns the scene revision. It never decreases.
func (t *Tracker) SceneRevision() uint64 { return t.sceneRevision.Load() }

// CleanRevision returns the counter of bit-clearing stores.
func (t *Tracker) CleanRevision() uint64 { return t.cleanRevision.Load() }

// VaryingRevision returns the varying-state revision.
func (t *Tracker) VaryingRevision() uint64 { return t.varyingRevision.Load() }

// RprimIndexRevision returns the rprim membership revision.
func (t *Tracker) RprimIndexRevision() uint64 { return t.rprimIndexRev.Load() }
