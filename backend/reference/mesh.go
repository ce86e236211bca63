package reference

import (
	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

var (
	meshBits             dirty.CustomAllocator
	meshIndicesBit       = meshBits.Next("indices")
	meshEdgeIndicesBit   = meshBits.Next("edgeIndices")
	meshPointsIndicesBit = meshBits.Next("pointsIndices")

	meshIndexBits = meshIndicesBit | meshEdgeIndicesBit | meshPointsIndicesBit
)

// MeshReprs is the representation table of meshes.
var MeshReprs = hd.ReprConfig{
	hd.ReprHull:              {{GeomStyle: hd.GeomStyleHull, FlatShading: true}},
	hd.ReprSmoothHull:        {{GeomStyle: hd.GeomStyleHull}},
	hd.ReprWire:              {{GeomStyle: hd.GeomStyleHullEdgeOnly}},
	hd.ReprWireOnSurf:        {{GeomStyle: hd.GeomStyleHullEdgeOnSurf}},
	hd.ReprRefined:           {{GeomStyle: hd.GeomStyleSurf}},
	hd.ReprRefinedWire:       {{GeomStyle: hd.GeomStyleEdgeOnly}},
	hd.ReprRefinedWireOnSurf: {{GeomStyle: hd.GeomStyleEdgeOnSurf}},
	hd.ReprPoints:            {{GeomStyle: hd.GeomStylePoints}},
}

// meshIndexKind maps a geometry style to the index buffer it draws. The
// reference backend does not subdivide, so refined styles draw the hull.
func meshIndexKind(s hd.GeomStyle) IndexKind {
	switch s {
	case hd.GeomStyleEdgeOnly, hd.GeomStyleHullEdgeOnly, hd.GeomStyleWire:
		return IndexEdges
	case hd.GeomStylePoints:
		return IndexPoints
	}
	return IndexTriangles
}

func meshKindBit(k IndexKind) dirty.Bits {
	switch k {
	case IndexEdges:
		return meshEdgeIndicesBit
	case IndexPoints:
		return meshPointsIndicesBit
	}
	return meshIndicesBit
}

// Mesh is a polygonal mesh rprim.
type Mesh struct {
	geometry

	topo         *instance.Instance[*MeshTopology]
	displayStyle hd.DisplayStyle
	doubleSided  bool
	cullStyle    hd.CullStyle
}

var _ hd.Rprim = (*Mesh)(nil)

func newMesh(id, instancerID sdfpath.Path) *Mesh {
	return &Mesh{
		geometry:  newGeometry(hd.NewRprimBase(id, instancerID), MeshReprs, meshIndexKind, meshKindBit),
		cullStyle: hd.CullStyleDontCare,
	}
}

// GetInitialDirtyBitsMask returns every bit a mesh reads.
func (m *Mesh) GetInitialDirtyBitsMask() dirty.Bits {
	return initialDirtyBits | dirty.DirtyTopology | dirty.DirtySubdivTags
}

// PropagateDirtyBits marks every index buffer dirty when the topology
// changed.
func (m *Mesh) PropagateDirtyBits(bits dirty.Bits) dirty.Bits {
	if bits.IsTopologyDirty() {
		bits |= meshIndexBits
	}
	return bits
}

// Topology returns the shared topology, nil before the first sync.
func (m *Mesh) Topology() *MeshTopology {
	if m.topo == nil {
		return nil
	}
	return m.topo.Get()
}

// DisplayStyle returns the display style as of the last sync.
func (m *Mesh) DisplayStyle() hd.DisplayStyle { return m.displayStyle }

// DoubleSided reports double-sidedness as of the last sync.
func (m *Mesh) DoubleSided() bool { return m.doubleSided }

// Sync pulls the dirty mesh data and updates the draw items of repr.
func (m *Mesh) Sync(sc *hd.SyncContext, bits *dirty.Bits, repr string) {
	if m.upToDate(*bits, repr) {
		return
	}
	reg := registryFor(sc)
	if reg == nil {
		return
	}
	b := *bits
	id := m.ID()

	m.syncBase(sc, b)
	if b.IsDisplayStyleDirty() {
		ds, err := sc.Delegate().DisplayStyle(id)
		if err != nil {
			sc.Fail(err)
		} else {
			m.displayStyle = ds
			m.dataRev++
		}
	}
	if b&dirty.DirtyDoubleSided != 0 {
		v, err := sc.Delegate().DoubleSided(id)
		if err != nil {
			sc.Fail(err)
		} else {
			m.doubleSided = v
		}
	}
	if b&dirty.DirtyCullStyle != 0 {
		v, err := sc.Delegate().CullStyle(id)
		if err != nil {
			sc.Fail(err)
		} else {
			m.cullStyle = v
		}
	}
	m.syncConstantPrimvars(sc, reg, b)
	if b.IsTopologyDirty() || (m.topo != nil && m.topo.Get().RefineLevel != m.displayStyle.RefineLevel) {
		m.syncTopology(sc, reg)
	}
	m.dropIndices(b)
	m.syncVertexPrimvars(sc, reg, b)

	if repr != "" && m.topo != nil {
		topo := m.topo.Get()
		m.fillRepr(sc, repr, topo, func(kind IndexKind) *BufferArrayRange {
			return m.indexRange(sc, reg, m.topo.Hash(), kind, func() []int32 { return topo.Indices(kind) })
		})
		m.applyDisplayStyle(sc, repr)
	}
	*bits = b.ClearScene() &^ meshIndexBits
}

func (m *Mesh) syncTopology(sc *hd.SyncContext, reg *ResourceRegistry) {
	t, err := sc.Delegate().MeshTopology(m.ID())
	if err != nil {
		sc.Fail(err)
		return
	}
	if len(t.FaceVertexCounts) == 0 && m.hasPoints(sc) {
		sc.CodingError("mesh has points but no faces")
	}
	t.RefineLevel = m.displayStyle.RefineLevel
	inst, err := reg.RegisterMeshTopology(sc.Context(), sc, t)
	if err != nil {
		sc.CodingError("mesh topology not registered", "err", err)
		return
	}
	if m.topo != nil {
		m.topo.Release()
	}
	m.topo = inst
	// Index ranges derive from the topology.
	m.dropIndices(meshIndexBits)
	m.dataRev++
}

func (m *Mesh) hasPoints(sc *hd.SyncContext) bool {
	v, err := sc.Delegate().Get(m.ID(), "points")
	if err != nil {
		return false
	}
	n, _ := sourceLen(v)
	return n > 0
}

// applyDisplayStyle folds the prim's display options into repr's items.
func (m *Mesh) applyDisplayStyle(sc *hd.SyncContext, repr string) {
	r := m.Repr(repr)
	if r == nil {
		return
	}
	descs, _ := MeshReprs.Lookup(repr)
	valid := 0
	for _, d := range descs {
		if d.GeomStyle == hd.GeomStyleInvalid {
			continue
		}
		if valid >= len(r.Items) {
			break
		}
		item := r.Items[valid]
		valid++
		item.Desc.FlatShading = d.FlatShading || m.displayStyle.FlatShading
		item.Desc.ForceRefine = d.ForceRefine || sc.ForceRefine()
		item.Desc.CullStyle = d.CullStyle
		if item.Desc.CullStyle == hd.CullStyleDontCare {
			item.Desc.CullStyle = m.cullStyle
		}
		if m.doubleSided && item.Desc.CullStyle == hd.CullStyleBackUnlessDoubleSided {
			item.Desc.CullStyle = hd.CullStyleNothing
		}
	}
}

// Finalize releases the topology and the prim's buffers.
func (m *Mesh) Finalize(param hd.RenderParam) {
	if m.topo != nil {
		m.topo.Release()
		m.topo = nil
	}
	m.geometry.Finalize(param)
}
