package reference

import (
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

// Instancer draws the rprims that reference it once per instance index.
// Instance indices are pulled per prototype on Sync; the prototypes are
// the instancer's dependents in the change tracker.
type Instancer struct {
	id     sdfpath.Path
	parent sdfpath.Path

	mu        sync.RWMutex
	transform hd.Matrix
	indices   map[sdfpath.Path][]int32
}

var _ hd.Instancer = (*Instancer)(nil)

func newInstancer(id, parent sdfpath.Path) *Instancer {
	return &Instancer{
		id:        id,
		parent:    parent,
		transform: hd.Identity(),
		indices:   make(map[sdfpath.Path][]int32),
	}
}

// ID returns the instancer id.
func (i *Instancer) ID() sdfpath.Path { return i.id }

// ParentID returns the enclosing instancer, if any.
func (i *Instancer) ParentID() sdfpath.Path { return i.parent }

// GetInitialDirtyBitsMask returns every instancer bit.
func (i *Instancer) GetInitialDirtyBitsMask() dirty.Bits { return dirty.InstancerAllDirty }

// Transform returns the instancer transform as of the last sync.
func (i *Instancer) Transform() hd.Matrix {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.transform
}

// InstanceIndices returns the instance indices drawing prototypeID.
func (i *Instancer) InstanceIndices(prototypeID sdfpath.Path) []int32 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.indices[prototypeID])
}

// Prototypes returns the prototypes with instance indices, sorted.
func (i *Instancer) Prototypes() []sdfpath.Path {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(i.indices), sdfpath.Compare)
}

// Sync pulls the instancer transform and the instance indices of every
// prototype.
func (i *Instancer) Sync(sc *hd.SyncContext, bits *dirty.Bits) {
	if *bits&dirty.InstancerDirtyTransform != 0 {
		m, err := sc.Delegate().InstancerTransform(i.id)
		if err != nil {
			sc.Fail(err)
			return
		}
		i.mu.Lock()
		i.transform = m
		i.mu.Unlock()
	}
	if *bits&(dirty.InstancerDirtyInstanceIndex|dirty.InstancerDirtyInstancer) != 0 {
		protos := sc.Index().ChangeTracker().InstancerDependents(i.id)
		indices := make(map[sdfpath.Path][]int32, len(protos))
		for _, proto := range protos {
			idx, err := sc.Delegate().InstanceIndices(i.id, proto)
			if err != nil {
				sc.Fail(err)
				return
			}
			if len(idx) > 0 {
				indices[proto] = idx
			}
		}
		i.mu.Lock()
		i.indices = indices
		i.mu.Unlock()
	}
	*bits = dirty.Clean
}

// Finalize is a no-op.
func (i *Instancer) Finalize(hd.RenderParam) {}
