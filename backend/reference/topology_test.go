package reference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdtest"
	"github.com/gogpu/hydra/hdx"
	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

func TestMeshIndices(t *testing.T) {
	tests := []struct {
		name string
		topo hd.MeshTopology
		kind IndexKind
		want []int32
	}{
		{
			name: "quad fan",
			topo: hd.MeshTopology{FaceVertexCounts: []int32{4}, FaceVertexIndices: []int32{0, 1, 2, 3}},
			kind: IndexTriangles,
			want: []int32{0, 1, 2, 0, 2, 3},
		},
		{
			name: "hole skipped",
			topo: hd.MeshTopology{
				FaceVertexCounts:  []int32{3, 3},
				FaceVertexIndices: []int32{0, 1, 2, 2, 1, 3},
				HoleIndices:       []int32{1},
			},
			kind: IndexTriangles,
			want: []int32{0, 1, 2},
		},
		{
			name: "left handed",
			topo: hd.MeshTopology{Orientation: "leftHanded", FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}},
			kind: IndexTriangles,
			want: []int32{0, 2, 1},
		},
		{
			name: "degenerate face",
			topo: hd.MeshTopology{FaceVertexCounts: []int32{2, 3}, FaceVertexIndices: []int32{0, 1, 1, 2, 3}},
			kind: IndexTriangles,
			want: []int32{1, 2, 3},
		},
		{
			name: "edges",
			topo: hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{4, 5, 6}},
			kind: IndexEdges,
			want: []int32{4, 5, 5, 6, 6, 4},
		},
		{
			name: "points",
			topo: hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 2, 1}},
			kind: IndexPoints,
			want: []int32{0, 1, 2},
		},
		{
			name: "short index array",
			topo: hd.MeshTopology{FaceVertexCounts: []int32{4}, FaceVertexIndices: []int32{0, 1, 2}},
			kind: IndexTriangles,
			want: []int32{0, 1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newMeshTopology(tt.topo).Indices(tt.kind))
		})
	}
}

func TestCurvesIndices(t *testing.T) {
	open := newCurvesTopology(hd.BasisCurvesTopology{CurveType: "linear", Wrap: "nonperiodic", CurveVertexCounts: []int32{3}})
	assert.Equal(t, []int32{0, 1, 1, 2}, open.Indices(IndexEdges))

	closed := newCurvesTopology(hd.BasisCurvesTopology{CurveType: "linear", Wrap: "periodic", CurveVertexCounts: []int32{3}})
	assert.Equal(t, []int32{0, 1, 1, 2, 2, 0}, closed.Indices(IndexEdges))

	indexed := newCurvesTopology(hd.BasisCurvesTopology{
		CurveType: "linear", CurveVertexCounts: []int32{3}, CurveIndices: []int32{5, 6, 7},
	})
	assert.Equal(t, []int32{5, 6, 6, 7}, indexed.Indices(IndexEdges))
	assert.Len(t, indexed.Indices(IndexPoints), 8)
}

func TestTopologyHashIgnoresSliceIdentity(t *testing.T) {
	a := hd.MeshTopology{Scheme: "none", FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}}
	b := hd.MeshTopology{Scheme: "none", FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}}
	assert.Equal(t, hashMeshTopology(a), hashMeshTopology(b))

	b.RefineLevel = 1
	assert.NotEqual(t, hashMeshTopology(a), hashMeshTopology(b))
	assert.False(t, equalMeshTopology(a, b))
}

// collisionLog records the coding errors reported during registration.
type collisionLog struct{ msgs []string }

func (l *collisionLog) CodingError(msg string, _ ...any) { l.msgs = append(l.msgs, msg) }

// registerWithHash registers t under a fixed hash to force collisions.
func registerWithHash(t *testing.T, reg *ResourceRegistry, rep Reporter, hash uint64, topo hd.MeshTopology) *instance.Instance[*MeshTopology] {
	t.Helper()
	inst, err := registerShared(context.Background(), reg, rep, reg.meshTopologies, "meshTopology", hash,
		func() (*MeshTopology, error) { return newMeshTopology(topo), nil },
		func(have *MeshTopology) bool { return equalMeshTopology(have.MeshTopology, topo) },
	)
	require.NoError(t, err)
	return inst
}

func TestSafeModeResolvesCollisions(t *testing.T) {
	a := hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}}
	b := hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 2, 1}}

	reg := NewResourceRegistry(hydra.Logger(), true)
	var log collisionLog
	ia := registerWithHash(t, reg, &log, 42, a)
	ib := registerWithHash(t, reg, &log, 42, b)
	assert.False(t, ia.Same(ib))
	assert.Equal(t, b.FaceVertexIndices, ib.Get().FaceVertexIndices)
	assert.EqualValues(t, 1, reg.Collisions())
	assert.Equal(t, []string{"hash collision"}, log.msgs)

	again := registerWithHash(t, reg, &log, 42, b)
	assert.True(t, again.Same(ib))
	assert.EqualValues(t, 2, reg.Collisions())
	assert.Len(t, log.msgs, 2)
	assert.Equal(t, uint64(2), reg.ResourceAllocation()["hashCollisions"])

	registerWithHash(t, reg, &log, 42, a)
	assert.Len(t, log.msgs, 2, "a hit with equal content is no collision")
}

func TestUnsafeModeTrustsHash(t *testing.T) {
	a := hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}}
	b := hd.MeshTopology{FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 2, 1}}

	reg := NewResourceRegistry(hydra.Logger(), false)
	var log collisionLog
	ia := registerWithHash(t, reg, &log, 42, a)
	ib := registerWithHash(t, reg, &log, 42, b)
	assert.True(t, ia.Same(ib))
	assert.Zero(t, reg.Collisions())
	assert.Empty(t, log.msgs)
}

func TestSyncReportsHashCollision(t *testing.T) {
	rd := New(WithSafeMode(true))
	index, err := hd.NewRenderIndex(rd, hd.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(index.Close)

	quad, points := hdtest.Quad()
	tri := hd.MeshTopology{Scheme: "none", FaceVertexCounts: []int32{3}, FaceVertexIndices: []int32{0, 1, 2}}
	occupant := registerWithHash(t, rd.Registry(), nil, hashMeshTopology(quad), tri)
	defer occupant.Release()

	id := sdfpath.MustParse("/World/quad")
	scene := hdtest.NewSceneDelegate(index, sdfpath.AbsoluteRoot())
	require.NoError(t, scene.AddMesh(id, quad, points))
	col := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprSmoothHull), sdfpath.MustParse("/World"))
	task := hdx.NewRenderTask(index, sdfpath.MustParse("/tasks/render"), hdx.WithCollection(col))
	require.NoError(t, hd.NewEngine().Execute(context.Background(), index, []hd.Task{task}, nil))

	assert.EqualValues(t, 1, index.Diagnostics().CodingErrors())
	reports := index.Diagnostics().ReportsFor(id)
	require.Len(t, reports, 1)
	assert.Equal(t, hd.SeverityCodingError, reports[0].Severity)
	assert.Equal(t, "hash collision", reports[0].Message)

	prim, ok := index.Rprim(id)
	require.True(t, ok)
	m := prim.(*Mesh)
	require.NotNil(t, m.Topology())
	assert.Equal(t, quad.FaceVertexIndices, m.Topology().FaceVertexIndices)
}

func TestCommitDropsReleasedRanges(t *testing.T) {
	reg := NewResourceRegistry(hydra.Logger(), false)
	spec := BufferSpec{Name: "points", Format: 0}
	live := reg.AllocateBufferArrayRange("vertex", 0, spec)
	dead := reg.AllocateBufferArrayRange("vertex", 0, spec)
	reg.AddSources(live, BufferSource{Name: "points", Data: []hd.Vec3{{1, 2, 3}}})
	reg.AddSources(dead, BufferSource{Name: "points", Data: []hd.Vec3{{4, 5, 6}}})
	dead.Release()

	require.NoError(t, reg.Commit(context.Background()))
	assert.Equal(t, 1, live.NumElements())
	assert.Zero(t, dead.NumElements())
	assert.EqualValues(t, 1, reg.Commits())
	assert.Equal(t, 1, reg.GarbageCollect())
}

func TestCommitRejectsUnknownBuffer(t *testing.T) {
	reg := NewResourceRegistry(hydra.Logger(), false)
	rng := reg.AllocateBufferArrayRange("vertex", 0, BufferSpec{Name: "points"})
	reg.AddSources(rng, BufferSource{Name: "normals", Data: []hd.Vec3{{0, 0, 1}}})
	assert.Error(t, reg.Commit(context.Background()))
}
