package reference

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

// geometry holds the state shared by the mesh, curves and points prims:
// the primvar ranges, the shared index ranges and the revisions that tell
// each repr whether its draw items are current.
//
// One Sync call per repr is made with a single copy of the dirty bits, so
// the first call clears the scene bits the later calls would need. Shared
// data bumps dataRev when it changes and each repr rebuilds its items
// until its own revision catches up.
type geometry struct {
	hd.RprimBase

	config    hd.ReprConfig
	indexKind func(hd.GeomStyle) IndexKind
	kindBit   func(IndexKind) dirty.Bits

	constant primvarRange
	vertex   primvarRange

	indices map[IndexKind]*instance.Instance[*BufferArrayRange]

	dataRev  uint64
	reprRevs map[string]uint64
}

func newGeometry(base hd.RprimBase, config hd.ReprConfig, indexKind func(hd.GeomStyle) IndexKind, kindBit func(IndexKind) dirty.Bits) geometry {
	return geometry{
		RprimBase: base,
		config:    config,
		constant: primvarRange{
			role:    "constant",
			usage:   gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			interps: []hd.Interpolation{hd.InterpolationConstant},
		},
		vertex: primvarRange{
			role:     "vertex",
			usage:    gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
			interps:  []hd.Interpolation{hd.InterpolationVertex, hd.InterpolationVarying},
			required: "points",
		},
		indexKind: indexKind,
		kindBit:   kindBit,
		indices:   make(map[IndexKind]*instance.Instance[*BufferArrayRange]),
		reprRevs:  make(map[string]uint64),
	}
}

// initialDirtyBits is the mask every geometry prim starts from.
const initialDirtyBits = dirty.InitRepr | dirty.DirtyExtent | dirty.DirtyTransform |
	dirty.DirtyVisibility | dirty.DirtyPoints | dirty.DirtyPrimvar | dirty.DirtyMaterialID |
	dirty.DirtyRenderTag | dirty.DirtyInstancer | dirty.DirtyInstanceIndex |
	dirty.DirtyDisplayStyle | dirty.DirtyDoubleSided | dirty.DirtyCullStyle |
	dirty.DirtyWidths | dirty.DirtyNormals | dirty.NewRepr

// upToDate reports whether Sync has nothing to do for repr.
func (g *geometry) upToDate(bits dirty.Bits, repr string) bool {
	if bits.Scene() != dirty.Clean || bits.Custom() != dirty.Clean {
		return false
	}
	if repr == "" {
		return true
	}
	rev, ok := g.reprRevs[repr]
	return ok && rev == g.dataRev
}

// InitRepr creates one draw item per valid descriptor of repr.
func (g *geometry) InitRepr(repr string, bits *dirty.Bits) {
	if g.HasRepr(repr) {
		return
	}
	descs, _ := g.config.Lookup(repr)
	items := make([]*hd.DrawItem, 0, len(descs))
	for _, d := range descs {
		if d.GeomStyle == hd.GeomStyleInvalid {
			continue
		}
		items = append(items, &hd.DrawItem{Shared: g.SharedData(), Desc: d})
		*bits |= g.kindBit(g.indexKind(d.GeomStyle))
	}
	g.AddRepr(repr, items)
	*bits |= dirty.NewRepr
}

// syncBase pulls the state every rprim shares.
func (g *geometry) syncBase(sc *hd.SyncContext, bits dirty.Bits) {
	g.UpdateVisibility(sc, bits)
	g.UpdateRenderTag(sc, bits)
	g.UpdateMaterialID(sc, bits)
	g.UpdateTransform(sc, bits)
	g.UpdateExtent(sc, bits)
	g.UpdateInstancer(sc, bits)
	if bits&(dirty.DirtyMaterialID|dirty.DirtyVisibility|dirty.DirtyInstancer) != 0 {
		g.dataRev++
	}
}

// primvarRange is one buffer range of a prim holding the primvars of a
// set of interpolations.
type primvarRange struct {
	role     string
	usage    gputypes.BufferUsage
	interps  []hd.Interpolation
	required string

	rng   *BufferArrayRange
	specs []BufferSpec
	names []string
	read  bool
}

// syncConstantPrimvars pulls the constant primvars. Mesh and curves call
// it before reading their topology.
func (g *geometry) syncConstantPrimvars(sc *hd.SyncContext, reg *ResourceRegistry, bits dirty.Bits) {
	g.syncPrimvarRange(sc, reg, bits, &g.constant)
}

// syncVertexPrimvars pulls the vertex and varying primvars. points is
// required and a prim without it reports a coding error.
func (g *geometry) syncVertexPrimvars(sc *hd.SyncContext, reg *ResourceRegistry, bits dirty.Bits) {
	g.syncPrimvarRange(sc, reg, bits, &g.vertex)
}

// syncPrimvarRange pulls the dirty primvars of pr into its range. A change
// of the authored set reallocates the range and pulls every primvar again.
// Empty arrays are skipped and a range left without primvars is released.
func (g *geometry) syncPrimvarRange(sc *hd.SyncContext, reg *ResourceRegistry, bits dirty.Bits, pr *primvarRange) {
	if !bits.IsAnyPrimvarDirty() {
		return
	}
	id := g.ID()
	names := pr.names
	if bits&dirty.DirtyPrimvar != 0 || !pr.read {
		names = nil
		if pr.required != "" {
			names = append(names, pr.required)
		}
		for _, interp := range pr.interps {
			descs, err := sc.Delegate().PrimvarDescriptors(id, interp)
			if err != nil {
				sc.Fail(err)
				return
			}
			for _, d := range descs {
				if !slices.Contains(names, d.Name) {
					names = append(names, d.Name)
				}
			}
		}
		slices.Sort(names)
	}

	var (
		sources []BufferSource
		specs   []BufferSpec
		values  = make(map[string]any, len(names))
	)
	for _, name := range names {
		v, err := sc.Delegate().Get(id, name)
		if err != nil {
			sc.Fail(err)
			return
		}
		n := 0
		if v != nil {
			if n, err = sourceLen(v); err != nil {
				sc.Warning("unsupported primvar type, skipped", "primvar", name, "type", fmt.Sprintf("%T", v))
				continue
			}
		}
		if n == 0 {
			if name == pr.required {
				sc.CodingError("primvar missing or empty", "primvar", name)
			}
			continue
		}
		format, _ := formatOf(v)
		values[name] = v
		specs = append(specs, BufferSpec{Name: name, Format: format})
		if bits.IsPrimvarDirty(name) {
			sources = append(sources, BufferSource{Name: name, Data: v})
		}
	}
	pr.names = names
	pr.read = true

	if len(specs) == 0 {
		if pr.rng != nil {
			pr.rng.Release()
			pr.rng = nil
			pr.specs = nil
			delete(g.SharedData().BufferArrays, pr.role)
			g.dataRev++
		}
		return
	}
	if pr.rng == nil || !slices.Equal(specs, pr.specs) {
		if pr.rng != nil {
			pr.rng.Release()
		}
		pr.rng = reg.AllocateBufferArrayRange(pr.role, pr.usage, specs...)
		pr.specs = specs
		g.SharedData().BufferArrays[pr.role] = pr.rng
		// A new range starts empty.
		sources = sources[:0]
		for _, s := range specs {
			sources = append(sources, BufferSource{Name: s.Name, Data: values[s.Name]})
		}
	}
	if len(sources) > 0 {
		reg.AddSources(pr.rng, sources...)
		g.dataRev++
	}
}

// release drops the range.
func (pr *primvarRange) release() {
	if pr.rng != nil {
		pr.rng.Release()
		pr.rng = nil
	}
	pr.specs = nil
}

// dropIndices releases the index ranges whose kind bit is set.
func (g *geometry) dropIndices(bits dirty.Bits) {
	for kind, inst := range g.indices {
		if bits&g.kindBit(kind) != 0 {
			inst.Release()
			delete(g.indices, kind)
		}
	}
}

// indexRange returns the shared index range of kind, registering it on
// first use.
func (g *geometry) indexRange(sc *hd.SyncContext, reg *ResourceRegistry, key uint64, kind IndexKind, build func() []int32) *BufferArrayRange {
	if inst, ok := g.indices[kind]; ok {
		return inst.Get()
	}
	inst, err := reg.RegisterIndexRange(sc.Context(), key, kind, build)
	if err != nil {
		sc.Fail(err)
		return nil
	}
	g.indices[kind] = inst
	return inst.Get()
}

// fillRepr points the draw items of repr at the current shared data.
func (g *geometry) fillRepr(sc *hd.SyncContext, repr string, topology any, index func(IndexKind) *BufferArrayRange) {
	r := g.Repr(repr)
	if r == nil {
		return
	}
	if _, ok := g.config.Lookup(repr); !ok {
		sc.CodingError("unknown repr", "repr", repr)
		return
	}
	for _, item := range r.Items {
		kind := g.indexKind(item.Desc.GeomStyle)
		item.Topology = topology
		item.IndexRange = nil
		if rng := index(kind); rng != nil {
			item.IndexRange = rng
		}
		item.Primitive = kind.Primitive()
		item.IndexFormat = gputypes.IndexFormatUint32
		item.MaterialID = g.MaterialID()
		item.MaterialTag = materialTag(sc, g.MaterialID())
		item.Primvars = g.primvarNames()
	}
	g.reprRevs[repr] = g.dataRev
}

// primvarNames returns the sorted names of the primvars held by the
// prim's ranges.
func (g *geometry) primvarNames() []string {
	names := make([]string, 0, len(g.constant.specs)+len(g.vertex.specs))
	for _, s := range g.constant.specs {
		names = append(names, s.Name)
	}
	for _, s := range g.vertex.specs {
		names = append(names, s.Name)
	}
	slices.Sort(names)
	return names
}

// Finalize releases the prim's shared resources.
func (g *geometry) Finalize(hd.RenderParam) {
	for kind, inst := range g.indices {
		inst.Release()
		delete(g.indices, kind)
	}
	g.constant.release()
	g.vertex.release()
}

// materialTag returns the tag of the bound material, DefaultMaterialTag
// when none is bound or it is not a reference material.
func materialTag(sc *hd.SyncContext, id sdfpath.Path) string {
	if id.IsEmpty() {
		return DefaultMaterialTag
	}
	if s, ok := sc.Sprim(id); ok {
		if m, ok := s.(*Material); ok {
			return m.Tag()
		}
	}
	return DefaultMaterialTag
}

// registryFor returns the registry of sc's render param, reporting a
// coding error when there is none.
func registryFor(sc *hd.SyncContext) *ResourceRegistry {
	reg := registryOf(sc.RenderParam())
	if reg == nil {
		sc.CodingError("render param carries no resource registry")
	}
	return reg
}
