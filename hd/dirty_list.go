package hd

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// DirtyList is the cached, path-ordered set of dirty rprims selected by
// one collection.
//
// The cached set stays valid while the tracker's scene revision and rprim
// membership revision match the values recorded when it was computed.
// When only bits were cleared since then, the cached ids that are now
// clean are dropped without walking the index.
//
// A DirtyList is safe for concurrent use. Callers must not modify the
// returned slices.
type DirtyList struct {
	index *RenderIndex
	group singleflight.Group
	refs  atomic.Int32

	mu       sync.Mutex
	col      Collection
	ids      []sdfpath.Path
	valid    bool
	sceneRev uint64
	indexRev uint64
	cleanRev uint64

	rebuilds atomic.Uint64
}

func newDirtyList(index *RenderIndex, col Collection) *DirtyList {
	return &DirtyList{index: index, col: col}
}

// NewDirtyList returns an unshared dirty list bound to col.
func NewDirtyList(index *RenderIndex, col Collection) *DirtyList {
	return newDirtyList(index, col)
}

// Collection returns the bound collection.
func (l *DirtyList) Collection() Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.col
}

// Rebuilds returns the number of full recomputations so far.
func (l *DirtyList) Rebuilds() uint64 { return l.rebuilds.Load() }

// DirtyPrims returns the ids selected by the collection whose dirty bits
// are not Clean, in path order. With no intervening change the same slice
// is returned. Concurrent callers share one recomputation.
func (l *DirtyList) DirtyPrims() []sdfpath.Path {
	v, _, _ := l.group.Do("dirty", func() (any, error) {
		return l.refresh(), nil
	})
	return v.([]sdfpath.Path)
}

func (l *DirtyList) refresh() []sdfpath.Path {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.index.tracker
	sceneRev := t.SceneRevision()
	indexRev := t.RprimIndexRevision()
	cleanRev := t.CleanRevision()

	if l.valid && sceneRev == l.sceneRev && indexRev == l.indexRev {
		if cleanRev != l.cleanRev {
			l.dropClean()
			l.cleanRev = cleanRev
		}
		return l.ids
	}

	if l.col.IsEmpty() {
		l.ids = nil
	} else {
		l.ids = l.index.collectDirty(l.col)
		l.rebuilds.Add(1)
		l.index.metrics.dirtyListRebuilds.Inc()
		l.index.log.Debug("hd: dirty list rebuilt", "collection", l.col.Name(), "dirty", len(l.ids))
	}
	l.valid = true
	l.sceneRev, l.indexRev, l.cleanRev = sceneRev, indexRev, cleanRev
	return l.ids
}

// dropClean removes cached ids whose bits are now Clean. The cached slice
// is replaced, never edited, so earlier results stay intact.
func (l *DirtyList) dropClean() {
	t := l.index.tracker
	keep := -1
	for i, id := range l.ids {
		if t.RprimDirtyBits(id) == dirty.Clean {
			keep = i
			break
		}
	}
	if keep < 0 {
		return
	}
	out := make([]sdfpath.Path, keep, len(l.ids))
	copy(out, l.ids[:keep])
	for _, id := range l.ids[keep+1:] {
		if t.RprimDirtyBits(id) != dirty.Clean {
			out = append(out, id)
		}
	}
	l.ids = out
	l.index.metrics.dirtyListFilters.Inc()
}

// Clean drops the ids that were cleaned by the last sync. It never walks
// the index.
func (l *DirtyList) Clean() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.valid {
		return
	}
	l.dropClean()
	l.cleanRev = l.index.tracker.CleanRevision()
}

// Invalidate forces the next DirtyPrims to walk the index.
func (l *DirtyList) Invalidate() {
	l.mu.Lock()
	l.valid = false
	l.mu.Unlock()
}

// ApplyEdit rebinds the list to col when col selects the same prims as
// the bound collection. A change of representation marks every member
// InitRepr and DirtyRepr so the new repr's draw items are built; the
// resulting membership equals that of a list built for col from scratch.
// It returns false, leaving the list unchanged, when membership could
// differ.
func (l *DirtyList) ApplyEdit(col Collection) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.col.SameMembership(col) {
		return false
	}
	if !l.col.ReprSelector().Equal(col.ReprSelector()) && !col.IsEmpty() {
		n := l.index.markMembers(col, dirty.InitRepr|dirty.DirtyRepr, false)
		l.index.log.Debug("hd: dirty list repr edit", "collection", col.Name(), "repr", col.ReprSelector().String(), "marked", n)
	}
	l.col = col
	return true
}
