// Package hdtest provides an in-memory scene delegate that populates a
// render index and records scene edits as dirty bits, for tests and
// demos.
package hdtest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

// Primvar is one authored primvar.
type Primvar struct {
	Interpolation hd.Interpolation
	Role          string
	Value         any
}

type prim struct {
	typeID       string
	mesh         hd.MeshTopology
	curves       hd.BasisCurvesTopology
	extent       hd.Range3
	transform    hd.Matrix
	visible      bool
	doubleSided  bool
	cullStyle    hd.CullStyle
	displayStyle hd.DisplayStyle
	renderTag    string
	material     sdfpath.Path
	instancer    sdfpath.Path
	primvars     map[string]Primvar
	values       map[string]any
	// instancers only
	parent    sdfpath.Path
	instances map[sdfpath.Path][]int32
}

func newPrim(typeID string) *prim {
	return &prim{
		typeID:    typeID,
		transform: hd.Identity(),
		visible:   true,
		cullStyle: hd.CullStyleDontCare,
		primvars:  make(map[string]Primvar),
		values:    make(map[string]any),
		instances: make(map[sdfpath.Path][]int32),
	}
}

// PrimOption sets an authored value at insertion.
type PrimOption func(*prim)

// WithTransform sets the prim transform.
func WithTransform(m hd.Matrix) PrimOption { return func(p *prim) { p.transform = m } }

// WithVisible sets the prim visibility.
func WithVisible(v bool) PrimOption { return func(p *prim) { p.visible = v } }

// WithRenderTag sets the prim render tag.
func WithRenderTag(tag string) PrimOption { return func(p *prim) { p.renderTag = tag } }

// WithMaterial binds a material.
func WithMaterial(id sdfpath.Path) PrimOption { return func(p *prim) { p.material = id } }

// WithInstancer draws the prim through an instancer.
func WithInstancer(id sdfpath.Path) PrimOption { return func(p *prim) { p.instancer = id } }

// WithDisplayStyle sets the display style.
func WithDisplayStyle(ds hd.DisplayStyle) PrimOption {
	return func(p *prim) { p.displayStyle = ds }
}

// WithDoubleSided sets double-sidedness.
func WithDoubleSided(v bool) PrimOption { return func(p *prim) { p.doubleSided = v } }

// WithPrimvar authors a primvar.
func WithPrimvar(name string, pv Primvar) PrimOption {
	return func(p *prim) { p.primvars[name] = pv }
}

// WithValue authors a named value returned by Get.
func WithValue(key string, v any) PrimOption { return func(p *prim) { p.values[key] = v } }

// SceneDelegate is an in-memory hd.SceneDelegate. Add* methods insert
// primitives into the bound render index; Set* methods edit authored data
// and mark the matching dirty bits.
//
// SceneDelegate is safe for concurrent use.
type SceneDelegate struct {
	id    sdfpath.Path
	index *hd.RenderIndex

	mu    sync.RWMutex
	prims map[sdfpath.Path]*prim
	errs  map[sdfpath.Path]error

	reads atomic.Int64
}

var _ hd.SceneDelegate = (*SceneDelegate)(nil)

// NewSceneDelegate returns an empty delegate populating index. id is the
// delegate's root path.
func NewSceneDelegate(index *hd.RenderIndex, id sdfpath.Path) *SceneDelegate {
	return &SceneDelegate{
		id:    id,
		index: index,
		prims: make(map[sdfpath.Path]*prim),
		errs:  make(map[sdfpath.Path]error),
	}
}

// ID returns the delegate's root path.
func (d *SceneDelegate) ID() sdfpath.Path { return d.id }

// Index returns the populated render index.
func (d *SceneDelegate) Index() *hd.RenderIndex { return d.index }

// Reads returns the number of reads served so far.
func (d *SceneDelegate) Reads() int64 { return d.reads.Load() }

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

func (d *SceneDelegate) add(id sdfpath.Path, p *prim, opts []PrimOption) {
	for _, opt := range opts {
		opt(p)
	}
	d.mu.Lock()
	d.prims[id] = p
	d.mu.Unlock()
}

func (d *SceneDelegate) forget(id sdfpath.Path) {
	d.mu.Lock()
	delete(d.prims, id)
	d.mu.Unlock()
}

// AddMesh inserts a mesh with the given topology and points.
func (d *SceneDelegate) AddMesh(id sdfpath.Path, topo hd.MeshTopology, points []hd.Vec3, opts ...PrimOption) error {
	p := newPrim(hd.TypeMesh)
	p.mesh = topo
	p.primvars["points"] = Primvar{Interpolation: hd.InterpolationVertex, Role: "point", Value: points}
	p.extent = extentOf(points)
	return d.insertRprim(id, p, opts)
}

// AddBasisCurves inserts basis curves with the given topology and points.
func (d *SceneDelegate) AddBasisCurves(id sdfpath.Path, topo hd.BasisCurvesTopology, points []hd.Vec3, opts ...PrimOption) error {
	p := newPrim(hd.TypeBasisCurves)
	p.curves = topo
	p.primvars["points"] = Primvar{Interpolation: hd.InterpolationVertex, Role: "point", Value: points}
	p.extent = extentOf(points)
	return d.insertRprim(id, p, opts)
}

// AddPoints inserts a points prim.
func (d *SceneDelegate) AddPoints(id sdfpath.Path, points []hd.Vec3, opts ...PrimOption) error {
	p := newPrim(hd.TypePoints)
	p.primvars["points"] = Primvar{Interpolation: hd.InterpolationVertex, Role: "point", Value: points}
	p.extent = extentOf(points)
	return d.insertRprim(id, p, opts)
}

func (d *SceneDelegate) insertRprim(id sdfpath.Path, p *prim, opts []PrimOption) error {
	d.add(id, p, opts)
	if err := d.index.InsertRprim(p.typeID, d, id, p.instancer); err != nil {
		d.forget(id)
		return err
	}
	return nil
}

// AddMaterial inserts a material sprim.
func (d *SceneDelegate) AddMaterial(id sdfpath.Path, opts ...PrimOption) error {
	d.add(id, newPrim(hd.TypeMaterial), opts)
	if err := d.index.InsertSprim(hd.TypeMaterial, d, id); err != nil {
		d.forget(id)
		return err
	}
	return nil
}

// AddRenderBuffer inserts a render buffer bprim of the given size.
func (d *SceneDelegate) AddRenderBuffer(id sdfpath.Path, width, height int, opts ...PrimOption) error {
	p := newPrim(hd.TypeRenderBuffer)
	p.values["dimensions"] = [2]int{width, height}
	d.add(id, p, opts)
	if err := d.index.InsertBprim(hd.TypeRenderBuffer, d, id); err != nil {
		d.forget(id)
		return err
	}
	return nil
}

// AddInstancer inserts an instancer nested in parent, which may be empty.
func (d *SceneDelegate) AddInstancer(id, parent sdfpath.Path, opts ...PrimOption) error {
	p := newPrim("instancer")
	p.parent = parent
	d.add(id, p, opts)
	if err := d.index.InsertInstancer(d, id, parent); err != nil {
		d.forget(id)
		return err
	}
	return nil
}

// AddTask inserts a task with its authored parameters.
func (d *SceneDelegate) AddTask(task hd.Task, params map[string]any) error {
	p := newPrim("task")
	for k, v := range params {
		p.values[k] = v
	}
	d.add(task.ID(), p, nil)
	if err := d.index.InsertTask(d, task); err != nil {
		d.forget(task.ID())
		return err
	}
	return nil
}

// Remove removes a primitive of any kind from the delegate and the index.
func (d *SceneDelegate) Remove(id sdfpath.Path) error {
	d.mu.Lock()
	p, ok := d.prims[id]
	delete(d.prims, id)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", hd.ErrUnknownPrim, id)
	}
	switch p.typeID {
	case hd.TypeMesh, hd.TypeBasisCurves, hd.TypePoints:
		return d.index.RemoveRprim(id)
	case hd.TypeMaterial, hd.TypeCamera:
		return d.index.RemoveSprim(id)
	case hd.TypeRenderBuffer:
		return d.index.RemoveBprim(id)
	case "instancer":
		return d.index.RemoveInstancer(id)
	case "task":
		return d.index.RemoveTask(id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Edits
// ---------------------------------------------------------------------------

func (d *SceneDelegate) edit(id sdfpath.Path, fn func(p *prim)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.prims[id]
	if !ok {
		return fmt.Errorf("%w: %s", hd.ErrUnknownPrim, id)
	}
	fn(p)
	return nil
}

func (d *SceneDelegate) editRprim(id sdfpath.Path, bits dirty.Bits, fn func(p *prim)) error {
	if err := d.edit(id, fn); err != nil {
		return err
	}
	d.index.ChangeTracker().MarkRprimDirty(id, bits)
	return nil
}

// SetPoints replaces the points of an rprim.
func (d *SceneDelegate) SetPoints(id sdfpath.Path, points []hd.Vec3) error {
	return d.editRprim(id, dirty.DirtyPoints|dirty.DirtyExtent, func(p *prim) {
		pv := p.primvars["points"]
		pv.Value = points
		p.primvars["points"] = pv
		p.extent = extentOf(points)
	})
}

// SetMeshTopology replaces the topology of a mesh.
func (d *SceneDelegate) SetMeshTopology(id sdfpath.Path, topo hd.MeshTopology) error {
	return d.editRprim(id, dirty.DirtyTopology, func(p *prim) { p.mesh = topo })
}

// SetCurvesTopology replaces the topology of basis curves.
func (d *SceneDelegate) SetCurvesTopology(id sdfpath.Path, topo hd.BasisCurvesTopology) error {
	return d.editRprim(id, dirty.DirtyTopology, func(p *prim) { p.curves = topo })
}

// SetTransform replaces the transform of an rprim.
func (d *SceneDelegate) SetTransform(id sdfpath.Path, m hd.Matrix) error {
	return d.editRprim(id, dirty.DirtyTransform, func(p *prim) { p.transform = m })
}

// SetVisible changes the visibility of an rprim.
func (d *SceneDelegate) SetVisible(id sdfpath.Path, v bool) error {
	return d.editRprim(id, dirty.DirtyVisibility, func(p *prim) { p.visible = v })
}

// SetRenderTag changes the render tag of an rprim.
func (d *SceneDelegate) SetRenderTag(id sdfpath.Path, tag string) error {
	return d.editRprim(id, dirty.DirtyRenderTag, func(p *prim) { p.renderTag = tag })
}

// SetMaterial rebinds the material of an rprim.
func (d *SceneDelegate) SetMaterial(id, material sdfpath.Path) error {
	return d.editRprim(id, dirty.DirtyMaterialID, func(p *prim) { p.material = material })
}

// SetDisplayStyle changes the display style of an rprim.
func (d *SceneDelegate) SetDisplayStyle(id sdfpath.Path, ds hd.DisplayStyle) error {
	return d.editRprim(id, dirty.DirtyDisplayStyle, func(p *prim) { p.displayStyle = ds })
}

// SetPrimvar authors a primvar on an rprim.
func (d *SceneDelegate) SetPrimvar(id sdfpath.Path, name string, pv Primvar) error {
	return d.editRprim(id, dirty.DirtyPrimvar, func(p *prim) { p.primvars[name] = pv })
}

// MarkDirty marks bits on an rprim without editing data.
func (d *SceneDelegate) MarkDirty(id sdfpath.Path, bits dirty.Bits) {
	d.index.ChangeTracker().MarkRprimDirty(id, bits)
}

// SetInstanceIndices sets the instances of prototype drawn by instancer.
func (d *SceneDelegate) SetInstanceIndices(instancer, prototype sdfpath.Path, indices []int32) error {
	if err := d.edit(instancer, func(p *prim) { p.instances[prototype] = indices }); err != nil {
		return err
	}
	d.index.ChangeTracker().MarkInstancerDirty(instancer, dirty.InstancerDirtyInstanceIndex)
	return nil
}

// SetTaskParam changes a task parameter and marks the task dirty with bits.
func (d *SceneDelegate) SetTaskParam(id sdfpath.Path, key string, v any, bits dirty.Bits) error {
	if err := d.edit(id, func(p *prim) { p.values[key] = v }); err != nil {
		return err
	}
	d.index.ChangeTracker().Tasks().MarkDirty(id, bits)
	return nil
}

// SetValue authors a named value returned by Get without marking bits.
func (d *SceneDelegate) SetValue(id sdfpath.Path, key string, v any) error {
	return d.edit(id, func(p *prim) { p.values[key] = v })
}

// FailReads makes every read of id return err until cleared with a nil
// err.
func (d *SceneDelegate) FailReads(id sdfpath.Path, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, id)
		return
	}
	d.errs[id] = err
}

// ---------------------------------------------------------------------------
// hd.SceneDelegate
// ---------------------------------------------------------------------------

// read returns the prim data for id under the read lock. A missing prim
// yields a nil prim and no error.
func (d *SceneDelegate) read(id sdfpath.Path, fn func(p *prim)) error {
	d.reads.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.errs[id]; err != nil {
		return err
	}
	if p, ok := d.prims[id]; ok {
		fn(p)
	}
	return nil
}

// Get returns an authored value, a primvar value, or nil.
func (d *SceneDelegate) Get(id sdfpath.Path, key string) (any, error) {
	var v any
	err := d.read(id, func(p *prim) {
		if pv, ok := p.primvars[key]; ok {
			v = pv.Value
			return
		}
		v = p.values[key]
	})
	return v, err
}

// MeshTopology returns the topology of a mesh.
func (d *SceneDelegate) MeshTopology(id sdfpath.Path) (hd.MeshTopology, error) {
	var t hd.MeshTopology
	err := d.read(id, func(p *prim) { t = p.mesh })
	return t, err
}

// BasisCurvesTopology returns the topology of basis curves.
func (d *SceneDelegate) BasisCurvesTopology(id sdfpath.Path) (hd.BasisCurvesTopology, error) {
	var t hd.BasisCurvesTopology
	err := d.read(id, func(p *prim) { t = p.curves })
	return t, err
}

// Extent returns the bounds of the authored points.
func (d *SceneDelegate) Extent(id sdfpath.Path) (hd.Range3, error) {
	var r hd.Range3
	err := d.read(id, func(p *prim) { r = p.extent })
	return r, err
}

// Transform returns the prim transform.
func (d *SceneDelegate) Transform(id sdfpath.Path) (hd.Matrix, error) {
	m := hd.Identity()
	err := d.read(id, func(p *prim) { m = p.transform })
	return m, err
}

// Visible returns the prim visibility.
func (d *SceneDelegate) Visible(id sdfpath.Path) (bool, error) {
	v := true
	err := d.read(id, func(p *prim) { v = p.visible })
	return v, err
}

// DoubleSided reports double-sidedness.
func (d *SceneDelegate) DoubleSided(id sdfpath.Path) (bool, error) {
	var v bool
	err := d.read(id, func(p *prim) { v = p.doubleSided })
	return v, err
}

// CullStyle returns the cull style.
func (d *SceneDelegate) CullStyle(id sdfpath.Path) (hd.CullStyle, error) {
	v := hd.CullStyleDontCare
	err := d.read(id, func(p *prim) { v = p.cullStyle })
	return v, err
}

// DisplayStyle returns the display style.
func (d *SceneDelegate) DisplayStyle(id sdfpath.Path) (hd.DisplayStyle, error) {
	var v hd.DisplayStyle
	err := d.read(id, func(p *prim) { v = p.displayStyle })
	return v, err
}

// RenderTag returns the render tag, "" when unauthored.
func (d *SceneDelegate) RenderTag(id sdfpath.Path) (string, error) {
	var v string
	err := d.read(id, func(p *prim) { v = p.renderTag })
	return v, err
}

// MaterialID returns the bound material.
func (d *SceneDelegate) MaterialID(id sdfpath.Path) (sdfpath.Path, error) {
	var v sdfpath.Path
	err := d.read(id, func(p *prim) { v = p.material })
	return v, err
}

// PrimvarDescriptors lists the primvars authored with interp, by name.
func (d *SceneDelegate) PrimvarDescriptors(id sdfpath.Path, interp hd.Interpolation) ([]hd.PrimvarDescriptor, error) {
	var out []hd.PrimvarDescriptor
	err := d.read(id, func(p *prim) {
		for name, pv := range p.primvars {
			if pv.Interpolation == interp {
				out = append(out, hd.PrimvarDescriptor{Name: name, Interpolation: interp, Role: pv.Role})
			}
		}
	})
	sortDescriptors(out)
	return out, err
}

// ExtComputationPrimvarDescriptors returns no descriptors; the delegate
// has no computations.
func (d *SceneDelegate) ExtComputationPrimvarDescriptors(id sdfpath.Path, _ hd.Interpolation) ([]hd.ExtComputationPrimvarDescriptor, error) {
	return nil, d.read(id, func(*prim) {})
}

// InstanceIndices returns the instances of prototype drawn by instancer.
func (d *SceneDelegate) InstanceIndices(instancer, prototype sdfpath.Path) ([]int32, error) {
	var v []int32
	err := d.read(instancer, func(p *prim) { v = p.instances[prototype] })
	return v, err
}

// InstancerTransform returns the transform of an instancer.
func (d *SceneDelegate) InstancerTransform(instancer sdfpath.Path) (hd.Matrix, error) {
	return d.Transform(instancer)
}

func extentOf(points []hd.Vec3) hd.Range3 {
	var r hd.Range3
	for _, p := range points {
		r = r.ExtendPoint(p)
	}
	return r
}
