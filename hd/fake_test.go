package hd_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdtest"
	"github.com/gogpu/hydra/sdfpath"
	"github.com/gogpu/hydra/tracker"
)

var (
	fakeBits       dirty.CustomAllocator
	fakeIndicesBit = fakeBits.Next("indices")
)

// fakeDelegate is a render delegate whose prims record every call.
type fakeDelegate struct {
	hd.Settings

	mu      sync.Mutex
	rprims  map[sdfpath.Path]*fakeRprim
	commits atomic.Int32
	gcRuns  atomic.Int32
	events  *[]string
}

func newFakeDelegate() *fakeDelegate {
	return &fakeDelegate{rprims: make(map[sdfpath.Path]*fakeRprim)}
}

func (d *fakeDelegate) SupportedRprimTypes() []string {
	return []string{hd.TypeMesh, hd.TypeBasisCurves, hd.TypePoints}
}
func (d *fakeDelegate) SupportedSprimTypes() []string { return []string{hd.TypeMaterial} }
func (d *fakeDelegate) SupportedBprimTypes() []string { return []string{hd.TypeRenderBuffer} }

func (d *fakeDelegate) CreateRprim(typeID string, id, instancerID sdfpath.Path) (hd.Rprim, error) {
	if !slices.Contains(d.SupportedRprimTypes(), typeID) {
		return nil, hd.ErrUnsupportedType
	}
	p := &fakeRprim{RprimBase: hd.NewRprimBase(id, instancerID)}
	d.mu.Lock()
	d.rprims[id] = p
	d.mu.Unlock()
	return p, nil
}

func (d *fakeDelegate) CreateSprim(typeID string, id sdfpath.Path) (hd.Sprim, error) {
	return &fakeSprim{id: id}, nil
}

func (d *fakeDelegate) CreateBprim(typeID string, id sdfpath.Path) (hd.Bprim, error) {
	return &fakeSprim{id: id}, nil
}

func (d *fakeDelegate) CreateInstancer(_ hd.SceneDelegate, id, parentID sdfpath.Path) (hd.Instancer, error) {
	return &fakeInstancer{fakeSprim: fakeSprim{id: id}, parent: parentID}, nil
}

func (d *fakeDelegate) CreateRenderPass(index *hd.RenderIndex, col hd.Collection) *hd.RenderPass {
	return hd.NewRenderPass(index, col, nil)
}

func (d *fakeDelegate) CreateRenderPassState() *hd.RenderPassState { return hd.NewRenderPassState() }
func (d *fakeDelegate) ResourceRegistry() hd.ResourceRegistry      { return (*fakeRegistry)(d) }
func (d *fakeDelegate) RenderParam() hd.RenderParam                { return "param" }

func (d *fakeDelegate) CommitResources(context.Context, *tracker.Tracker) error {
	d.commits.Add(1)
	if d.events != nil {
		*d.events = append(*d.events, "commit")
	}
	return nil
}

func (d *fakeDelegate) prim(id sdfpath.Path) *fakeRprim {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rprims[id]
}

type fakeRegistry fakeDelegate

func (r *fakeRegistry) Commit(context.Context) error { return nil }
func (r *fakeRegistry) GarbageCollect() int {
	r.gcRuns.Add(1)
	return 1
}
func (r *fakeRegistry) ResourceAllocation() map[string]any { return nil }

type fakeRprim struct {
	hd.RprimBase

	syncs      atomic.Int32
	populates  atomic.Int32
	inFlight   atomic.Int32
	overlapped atomic.Bool

	mu        sync.Mutex
	reprs     []string
	keep      dirty.Bits
	panicNext bool
	onSync    func(sc *hd.SyncContext)
}

func (p *fakeRprim) GetInitialDirtyBitsMask() dirty.Bits {
	return dirty.InitRepr | dirty.DirtyExtent | dirty.DirtyTransform | dirty.DirtyVisibility |
		dirty.DirtyPrimvar | dirty.DirtyPoints | dirty.DirtyTopology | dirty.DirtyMaterialID |
		dirty.DirtyRenderTag | dirty.DirtyInstancer | dirty.NewRepr
}

func (p *fakeRprim) PropagateDirtyBits(bits dirty.Bits) dirty.Bits {
	if bits.IsTopologyDirty() {
		bits |= fakeIndicesBit
	}
	return bits
}

func (p *fakeRprim) InitRepr(repr string, bits *dirty.Bits) {
	if p.HasRepr(repr) {
		return
	}
	p.AddRepr(repr, []*hd.DrawItem{{Shared: p.SharedData()}})
	*bits |= dirty.NewRepr | fakeIndicesBit
}

func (p *fakeRprim) Sync(sc *hd.SyncContext, bits *dirty.Bits, repr string) {
	if p.inFlight.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	defer p.inFlight.Add(-1)
	p.syncs.Add(1)

	p.mu.Lock()
	p.reprs = append(p.reprs, repr)
	keep, panicNext, onSync := p.keep, p.panicNext, p.onSync
	p.panicNext = false
	p.mu.Unlock()

	if panicNext {
		panic("fake rprim failure")
	}
	if onSync != nil {
		onSync(sc)
	}
	if bits.Scene() == dirty.Clean && bits.Custom()&^keep == 0 {
		return
	}
	p.populates.Add(1)
	p.UpdateVisibility(sc, *bits)
	p.UpdateRenderTag(sc, *bits)
	p.UpdateMaterialID(sc, *bits)
	p.UpdateTransform(sc, *bits)
	p.UpdateExtent(sc, *bits)
	p.UpdateInstancer(sc, *bits)
	*bits = bits.ClearScene() &^ (fakeIndicesBit &^ keep)
}

func (p *fakeRprim) syncedReprs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.reprs)
}

func (p *fakeRprim) set(fn func(p *fakeRprim)) {
	p.mu.Lock()
	fn(p)
	p.mu.Unlock()
}

type fakeSprim struct {
	id    sdfpath.Path
	syncs atomic.Int32
}

func (s *fakeSprim) ID() sdfpath.Path                    { return s.id }
func (s *fakeSprim) GetInitialDirtyBitsMask() dirty.Bits { return dirty.SprimAllDirty }
func (s *fakeSprim) Finalize(hd.RenderParam)             {}
func (s *fakeSprim) Sync(_ *hd.SyncContext, bits *dirty.Bits) {
	s.syncs.Add(1)
	*bits = dirty.Clean
}

type fakeInstancer struct {
	fakeSprim
	parent sdfpath.Path
}

func (i *fakeInstancer) ParentID() sdfpath.Path               { return i.parent }
func (i *fakeInstancer) InstanceIndices(sdfpath.Path) []int32 { return nil }
func (i *fakeInstancer) GetInitialDirtyBitsMask() dirty.Bits  { return dirty.InstancerAllDirty }

// passTask is a minimal render task over one pass.
type passTask struct {
	id     sdfpath.Path
	pass   *hd.RenderPass
	tags   []string
	events *[]string
	onSync func()
	fail   error
}

func (t *passTask) ID() sdfpath.Path     { return t.id }
func (t *passTask) RenderTags() []string { return t.tags }

func (t *passTask) Sync(tc *hd.TaskContext, _ hd.SceneDelegate, bits *dirty.Bits) error {
	t.record("sync")
	if err := t.pass.Sync(tc.Context()); err != nil {
		return err
	}
	if t.onSync != nil {
		t.onSync()
	}
	*bits = dirty.Clean
	return nil
}

func (t *passTask) Prepare(tc *hd.TaskContext) error {
	t.record("prepare")
	return t.pass.Prepare(tc.Context(), t.tags)
}

func (t *passTask) Execute(tc *hd.TaskContext) error {
	t.record("execute")
	if t.fail != nil {
		return t.fail
	}
	return t.pass.Execute(tc.Context(), hd.NewRenderPassState(), t.tags)
}

func (t *passTask) record(ev string) {
	if t.events != nil {
		*t.events = append(*t.events, t.id.Name()+":"+ev)
	}
}

var errInjected = errors.New("injected read failure")

// fixture is an index with a fake delegate and an in-memory scene.
type fixture struct {
	t     *testing.T
	rd    *fakeDelegate
	index *hd.RenderIndex
	scene *hdtest.SceneDelegate
}

func newFixture(t *testing.T, opts ...hd.Option) *fixture {
	t.Helper()
	rd := newFakeDelegate()
	index, err := hd.NewRenderIndex(rd, append([]hd.Option{hd.WithWorkers(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(index.Close)
	return &fixture{t: t, rd: rd, index: index, scene: hdtest.NewSceneDelegate(index, sdfpath.AbsoluteRoot())}
}

func (f *fixture) addMeshes(paths ...string) {
	f.t.Helper()
	topo, points := hdtest.Quad()
	for _, p := range paths {
		require.NoError(f.t, f.scene.AddMesh(sdfpath.MustParse(p), topo, points))
	}
}

func (f *fixture) task(name string, col hd.Collection) *passTask {
	return &passTask{
		id:   sdfpath.MustParse("/tasks/" + name),
		pass: hd.NewRenderPass(f.index, col, nil),
	}
}

func (f *fixture) sync(tasks ...hd.Task) {
	f.t.Helper()
	require.NoError(f.t, f.index.SyncAll(context.Background(), tasks, nil))
}

func (f *fixture) bits(path string) dirty.Bits {
	return f.index.ChangeTracker().RprimDirtyBits(sdfpath.MustParse(path))
}

func (f *fixture) prim(path string) *fakeRprim {
	return f.rd.prim(sdfpath.MustParse(path))
}

func worldCollection(repr string) hd.Collection {
	return hd.NewCollection("geometry", hd.NewReprSelector(repr), sdfpath.MustParse("/World"))
}
