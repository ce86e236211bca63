package hd_test

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

func p(s string) sdfpath.Path { return sdfpath.MustParse(s) }

func TestDirtyListExcludesSubtree(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/hidden/b", "/World/c")
	tr := f.index.ChangeTracker()
	tr.SetRprimDirtyBits(p("/World/a"), dirty.DirtyPoints)
	tr.SetRprimDirtyBits(p("/World/hidden/b"), dirty.DirtyTransform)
	tr.SetRprimDirtyBits(p("/World/c"), dirty.Clean)

	col := worldCollection(hd.ReprSmoothHull).WithExcludes(p("/World/hidden"))
	l := hd.NewDirtyList(f.index, col)
	assert.Equal(t, []sdfpath.Path{p("/World/a")}, l.DirtyPrims())
}

func TestDirtyListSoundAndComplete(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewPCG(7, 11))
	var all []string
	for g := range 3 {
		for i := range 12 {
			all = append(all, fmt.Sprintf("/World/g%d/m%02d", g, i))
		}
		all = append(all, fmt.Sprintf("/World/g%d/x/m", g))
	}
	all = append(all, "/Other/m")
	f.addMeshes(all...)

	tr := f.index.ChangeTracker()
	for _, s := range all {
		bits := dirty.Clean
		if rng.IntN(2) == 0 {
			bits = dirty.DirtyTransform
		}
		tr.SetRprimDirtyBits(p(s), bits)
	}

	col := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprSmoothHull),
		p("/World/g0"), p("/World/g1")).WithExcludes(p("/World/g1/x"))
	got := hd.NewDirtyList(f.index, col).DirtyPrims()

	assert.True(t, slices.IsSortedFunc(got, sdfpath.Compare))
	for _, id := range got {
		assert.True(t, col.Contains(id), "%s not in collection", id)
		assert.NotEqual(t, dirty.Clean, tr.RprimDirtyBits(id), "%s is clean", id)
	}
	for _, id := range f.index.RprimIDs() {
		if col.Contains(id) && tr.RprimDirtyBits(id) != dirty.Clean {
			assert.Contains(t, got, id)
		}
	}
}

func TestDirtyListReturnsCachedSlice(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/b")
	l := hd.NewDirtyList(f.index, worldCollection(hd.ReprSmoothHull))

	a := l.DirtyPrims()
	b := l.DirtyPrims()
	require.Len(t, a, 2)
	assert.Same(t, &a[0], &b[0])
	assert.EqualValues(t, 1, l.Rebuilds())

	f.addMeshes("/World/c")
	c := l.DirtyPrims()
	assert.EqualValues(t, 2, l.Rebuilds())
	assert.Contains(t, c, p("/World/c"))
}

func TestDirtyListFiltersCleanedWithoutWalk(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/b", "/World/c")
	l := hd.NewDirtyList(f.index, worldCollection(hd.ReprSmoothHull))

	before := l.DirtyPrims()
	require.Len(t, before, 3)
	f.index.ChangeTracker().SetRprimDirtyBits(p("/World/a"), dirty.Clean)

	after := l.DirtyPrims()
	assert.Equal(t, []sdfpath.Path{p("/World/b"), p("/World/c")}, after)
	assert.EqualValues(t, 1, l.Rebuilds())
	assert.Len(t, before, 3, "earlier result must stay intact")
	assert.EqualValues(t, 1, f.index.Metrics().Snapshot().DirtyListFilters)
}

func TestDirtyListEmptySelections(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")

	empty := hd.NewDirtyList(f.index, hd.NewCollection("empty", hd.NewReprSelector(hd.ReprSmoothHull)))
	assert.Empty(t, empty.DirtyPrims())
	assert.Zero(t, empty.Rebuilds())

	excluded := hd.NewDirtyList(f.index, worldCollection(hd.ReprSmoothHull).WithExcludes(p("/World")))
	assert.Empty(t, excluded.DirtyPrims())
}

func TestDirtyListApplyEdit(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/b", "/World/c")
	hull := worldCollection(hd.ReprSmoothHull)
	f.sync(f.task("render", hull))

	require.NoError(t, f.scene.SetVisible(p("/World/a"), false))
	l := hd.NewDirtyList(f.index, hull)
	require.Equal(t, []sdfpath.Path{p("/World/a")}, l.DirtyPrims())

	wire := hull.WithReprSelector(hd.NewReprSelector(hd.ReprWire))
	require.True(t, l.ApplyEdit(wire))
	assert.True(t, l.Collection().Equal(wire))
	assert.Equal(t, hd.NewDirtyList(f.index, wire).DirtyPrims(), l.DirtyPrims())
	assert.Len(t, l.DirtyPrims(), 3)

	assert.False(t, l.ApplyEdit(wire.WithExcludes(p("/World/b"))))
	assert.False(t, l.ApplyEdit(wire.WithRoots(p("/World/a"))))
	assert.True(t, l.Collection().Equal(wire))
}

func TestDirtyListInvalidate(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")
	l := hd.NewDirtyList(f.index, worldCollection(hd.ReprSmoothHull))
	l.DirtyPrims()
	l.Invalidate()
	l.DirtyPrims()
	assert.EqualValues(t, 2, l.Rebuilds())
}

func TestRenderPassSharesDirtyList(t *testing.T) {
	f := newFixture(t)
	col := worldCollection(hd.ReprSmoothHull)
	p1 := hd.NewRenderPass(f.index, col, nil)
	p2 := hd.NewRenderPass(f.index, col, nil)
	assert.Same(t, p1.DirtyList(), p2.DirtyList())
	assert.EqualValues(t, 1, f.index.Metrics().Snapshot().DirtyListShared)

	p2.SetRprimCollection(col.WithReprSelector(hd.NewReprSelector(hd.ReprWire)))
	assert.NotSame(t, p1.DirtyList(), p2.DirtyList())

	owned := p2.DirtyList()
	points := col.WithReprSelector(hd.NewReprSelector(hd.ReprPoints))
	p2.SetRprimCollection(points)
	assert.Same(t, owned, p2.DirtyList(), "sole owner edits in place")
	assert.Equal(t, hd.ReprPoints, p2.Collection().ReprSelector().At(0))

	p3 := hd.NewRenderPass(f.index, points, nil)
	assert.Same(t, owned, p3.DirtyList())

	p1.SetRprimCollection(col.WithExcludes(p("/World/a")))
	assert.NotSame(t, owned, p1.DirtyList())

	p1.Close()
	p2.Close()
	p3.Close()
}
