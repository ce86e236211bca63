package hd_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdtest"
	"github.com/gogpu/hydra/sdfpath"
)

func TestNewRenderIndexNilDelegate(t *testing.T) {
	_, err := hd.NewRenderIndex(nil)
	assert.ErrorIs(t, err, hd.ErrNilDelegate)
}

func TestInsertRprimErrors(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")

	err := f.index.InsertRprim(hd.TypeMesh, f.scene, p("/World/a"), sdfpath.Path{})
	assert.ErrorIs(t, err, hd.ErrDuplicatePrim)

	err = f.index.InsertRprim(hd.TypeMesh, f.scene, sdfpath.Path{}, sdfpath.Path{})
	assert.ErrorIs(t, err, hd.ErrInvalidID)

	err = f.index.InsertRprim("volume", f.scene, p("/World/v"), sdfpath.Path{})
	assert.ErrorIs(t, err, hd.ErrUnsupportedType)
	assert.False(t, f.index.HasRprim(p("/World/v")))

	assert.ErrorIs(t, f.index.RemoveRprim(p("/World/missing")), hd.ErrUnknownPrim)
	assert.Equal(t, 1, f.index.RprimCount())
}

func TestInsertRprimTracksInitialBits(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")

	prim, ok := f.index.Rprim(p("/World/a"))
	require.True(t, ok)
	assert.Equal(t, prim.GetInitialDirtyBitsMask(), f.bits("/World/a"))
	info, ok := f.index.RprimInfo(p("/World/a"))
	require.True(t, ok)
	assert.Equal(t, hd.TypeMesh, info.TypeID)
	assert.False(t, info.Synced())
}

func TestRprimIDsSorted(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/b", "/World/a/x", "/World/a", "/Other")
	assert.Equal(t, []sdfpath.Path{
		p("/Other"), p("/World/a"), p("/World/a/x"), p("/World/b"),
	}, f.index.RprimIDs())
}

func TestRemoveMaterialDirtiesBoundRprims(t *testing.T) {
	f := newFixture(t)
	mat := p("/Looks/red")
	require.NoError(t, f.scene.AddMaterial(mat))
	topo, points := hdtest.Quad()
	require.NoError(t, f.scene.AddMesh(p("/World/a"), topo, points, hdtest.WithMaterial(mat)))
	f.addMeshes("/World/b")
	f.sync(f.task("render", worldCollection(hd.ReprSmoothHull)))
	require.Equal(t, mat, f.prim("/World/a").MaterialID())

	require.NoError(t, f.scene.Remove(mat))
	_, ok := f.index.Sprim(mat)
	assert.False(t, ok)
	assert.True(t, f.bits("/World/a").Has(dirty.DirtyMaterialID))
	assert.Equal(t, dirty.Clean, f.bits("/World/b"))
}

func TestRemoveInstancerDirtiesDependents(t *testing.T) {
	f := newFixture(t)
	inst := p("/World/instancer")
	require.NoError(t, f.scene.AddInstancer(inst, sdfpath.Path{}))
	topo, points := hdtest.Quad()
	require.NoError(t, f.scene.AddMesh(p("/World/proto"), topo, points, hdtest.WithInstancer(inst)))
	task := f.task("render", worldCollection(hd.ReprSmoothHull))
	f.sync(task)
	require.Equal(t, dirty.Clean, f.bits("/World/proto"))

	require.NoError(t, f.scene.Remove(inst))
	assert.True(t, f.bits("/World/proto").IsInstancerDirty())

	require.NoError(t, f.scene.AddInstancer(inst, sdfpath.Path{}))
	f.sync(task)
	assert.Equal(t, dirty.Clean, f.bits("/World/proto"))
}

func TestRemoveSubtree(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/a/b", "/World/c")
	require.NoError(t, f.scene.AddMaterial(p("/World/a/mat")))
	other := hdtest.NewSceneDelegate(f.index, p("/Other"))
	topo, points := hdtest.Quad()
	require.NoError(t, other.AddMesh(p("/World/a/foreign"), topo, points))

	f.index.RemoveSubtree(p("/World/a"), f.scene)
	assert.False(t, f.index.HasRprim(p("/World/a")))
	assert.False(t, f.index.HasRprim(p("/World/a/b")))
	assert.True(t, f.index.HasRprim(p("/World/c")))
	assert.True(t, f.index.HasRprim(p("/World/a/foreign")))
	_, ok := f.index.Sprim(p("/World/a/mat"))
	assert.False(t, ok)
	assert.False(t, f.index.ChangeTracker().HasRprim(p("/World/a/b")))
}

func TestClearAndGarbageCollect(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a", "/World/b")
	require.NoError(t, f.scene.AddRenderBuffer(p("/Buffers/color"), 4, 4))

	f.index.Clear()
	assert.Zero(t, f.index.RprimCount())
	assert.Zero(t, f.index.ChangeTracker().RprimCount())
	_, ok := f.index.Bprim(p("/Buffers/color"))
	assert.False(t, ok)

	assert.Equal(t, 1, f.index.GarbageCollect())
	assert.EqualValues(t, 1, f.rd.gcRuns.Load())
	assert.EqualValues(t, 1, f.index.Metrics().Snapshot().GarbageCollected)
}

func TestDiagnosticsRing(t *testing.T) {
	f := newFixture(t, hd.WithDiagnosticsCapacity(2))
	d := f.index.Diagnostics()
	d.Warning(p("/World/a"), "first")
	d.CodingError(p("/World/b"), "second")
	d.Warning(p("/World/a"), "third")

	reports := d.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "second", reports[0].Message)
	assert.Equal(t, hd.SeverityCodingError, reports[0].Severity)
	assert.Equal(t, "third", reports[1].Message)
	assert.Len(t, d.ReportsFor(p("/World/a")), 1)
	assert.Equal(t, "coding_error: /World/b: second", reports[0].String())

	assert.EqualValues(t, 2, d.Warnings())
	assert.EqualValues(t, 1, d.CodingErrors())
	snap := f.index.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.Warnings)
	assert.EqualValues(t, 1, snap.CodingErrors)

	d.Clear()
	assert.Empty(t, d.Reports())
	assert.EqualValues(t, 2, d.Warnings())
}

func TestMetricsRegistryGathers(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")
	f.sync(f.task("render", worldCollection(hd.ReprSmoothHull)))

	families, err := f.index.Metrics().Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["hydra_rprims_synced_total"])
	assert.True(t, names["hydra_sync_all_duration_seconds"])
	assert.Equal(t, 1, f.index.Metrics().Snapshot().SyncSetSize)
}

func TestSettingsVersion(t *testing.T) {
	var s hd.Settings
	assert.EqualValues(t, 1, s.RenderSettingsVersion())

	s.PopulateDefaults([]hd.SettingDescriptor{{Name: "Samples", Key: "samples", DefaultValue: 4}})
	assert.EqualValues(t, 1, s.RenderSettingsVersion())
	assert.Equal(t, 4, s.RenderSettingOr("samples", 0))

	s.SetRenderSetting("samples", 4)
	assert.EqualValues(t, 1, s.RenderSettingsVersion())
	s.SetRenderSetting("samples", 8)
	assert.EqualValues(t, 2, s.RenderSettingsVersion())
	s.SetRenderSetting("tags", []string{"a"})
	s.SetRenderSetting("tags", []string{"a"})
	assert.EqualValues(t, 3, s.RenderSettingsVersion())
	assert.Equal(t, []string{"samples", "tags"}, s.RenderSettingKeys())
	assert.Equal(t, "x", s.RenderSettingOr("missing", "x"))
}

func TestPluginRegistry(t *testing.T) {
	r := hd.NewPluginRegistry("fast", "reference")
	assert.Empty(t, r.DefaultPluginID())

	factory := func(map[string]any) (hd.RenderDelegate, error) { return newFakeDelegate(), nil }
	r.Register("zeta", factory)
	r.Register("alpha", factory)
	assert.Equal(t, "alpha", r.DefaultPluginID())

	r.Register("reference", factory)
	assert.Equal(t, "reference", r.DefaultPluginID())
	assert.Equal(t, []string{"alpha", "reference", "zeta"}, r.Available())

	rd, err := r.CreateRenderDelegate("", nil)
	require.NoError(t, err)
	assert.NotNil(t, rd)

	_, err = r.CreateRenderDelegate("missing", nil)
	assert.ErrorIs(t, err, hd.ErrUnknownPlugin)

	r.Unregister("reference")
	assert.False(t, r.Has("reference"))
	assert.Equal(t, "alpha", r.DefaultPluginID())
}

func TestTaskContext(t *testing.T) {
	f := newFixture(t)
	tc := hd.NewTaskContext(t.Context(), f.index)
	assert.Same(t, f.index, tc.Index())

	_, ok := tc.Get(hd.TaskContextRenderPassState)
	assert.False(t, ok)
	state := hd.NewRenderPassState()
	tc.Set(hd.TaskContextRenderPassState, state)
	v, ok := tc.Get(hd.TaskContextRenderPassState)
	require.True(t, ok)
	assert.Same(t, state, v)
	tc.Delete(hd.TaskContextRenderPassState)
	_, ok = tc.Get(hd.TaskContextRenderPassState)
	assert.False(t, ok)
}

func TestWithLoggerOverridesPackageLogger(t *testing.T) {
	orig := hydra.Logger()
	t.Cleanup(func() { hydra.SetLogger(orig) })

	var global, local bytes.Buffer
	hydra.SetLogger(slog.New(slog.NewTextHandler(&global, nil)))
	shared := newFixture(t)
	own := newFixture(t, hd.WithLogger(slog.New(slog.NewTextHandler(&local, nil))))

	shared.index.Diagnostics().CodingError(p("/World/a"), "from shared")
	own.index.Diagnostics().CodingError(p("/World/b"), "from own")

	assert.Contains(t, global.String(), "from shared")
	assert.NotContains(t, global.String(), "from own")
	assert.Contains(t, local.String(), "from own")
	assert.NotContains(t, local.String(), "from shared")
}
