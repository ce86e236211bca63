package reference

import (
	"slices"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

var (
	curvesBits             dirty.CustomAllocator
	curvesIndicesBit       = curvesBits.Next("indices")
	curvesPointsIndicesBit = curvesBits.Next("pointsIndices")

	curvesIndexBits = curvesIndicesBit | curvesPointsIndicesBit
)

// CurvesReprs is the representation table of basis curves. Curves are
// always drawn as line segments.
var CurvesReprs = hd.ReprConfig{
	hd.ReprHull:       {{GeomStyle: hd.GeomStyleWire}},
	hd.ReprSmoothHull: {{GeomStyle: hd.GeomStyleWire}},
	hd.ReprWire:       {{GeomStyle: hd.GeomStyleWire}},
	hd.ReprRefined:    {{GeomStyle: hd.GeomStyleWire, ForceRefine: true}},
	hd.ReprPoints:     {{GeomStyle: hd.GeomStylePoints}},
}

var cubicBases = []string{"bezier", "bspline", "catmullRom"}

func curvesIndexKind(s hd.GeomStyle) IndexKind {
	if s == hd.GeomStylePoints {
		return IndexPoints
	}
	return IndexEdges
}

func curvesKindBit(k IndexKind) dirty.Bits {
	if k == IndexPoints {
		return curvesPointsIndicesBit
	}
	return curvesIndicesBit
}

// BasisCurves is a curves rprim. It draws with slot 1 of a collection's
// repr selector.
type BasisCurves struct {
	geometry

	topo *instance.Instance[*CurvesTopology]
}

var (
	_ hd.Rprim            = (*BasisCurves)(nil)
	_ hd.ReprSlotSelector = (*BasisCurves)(nil)
)

func newBasisCurves(id, instancerID sdfpath.Path) *BasisCurves {
	return &BasisCurves{
		geometry: newGeometry(hd.NewRprimBase(id, instancerID), CurvesReprs, curvesIndexKind, curvesKindBit),
	}
}

// ReprSlot returns the repr selector slot used by curves.
func (c *BasisCurves) ReprSlot() int { return 1 }

// GetInitialDirtyBitsMask returns every bit a curves prim reads.
func (c *BasisCurves) GetInitialDirtyBitsMask() dirty.Bits {
	return initialDirtyBits | dirty.DirtyTopology
}

// PropagateDirtyBits marks the index buffers dirty when the topology
// changed.
func (c *BasisCurves) PropagateDirtyBits(bits dirty.Bits) dirty.Bits {
	if bits.IsTopologyDirty() {
		bits |= curvesIndexBits
	}
	return bits
}

// Topology returns the shared topology, nil before the first sync.
func (c *BasisCurves) Topology() *CurvesTopology {
	if c.topo == nil {
		return nil
	}
	return c.topo.Get()
}

// Sync pulls the dirty curves data and updates the draw items of repr.
func (c *BasisCurves) Sync(sc *hd.SyncContext, bits *dirty.Bits, repr string) {
	if c.upToDate(*bits, repr) {
		return
	}
	reg := registryFor(sc)
	if reg == nil {
		return
	}
	b := *bits
	c.syncBase(sc, b)
	c.syncConstantPrimvars(sc, reg, b)
	if b.IsTopologyDirty() {
		c.syncTopology(sc, reg)
	}
	c.dropIndices(b)
	c.syncVertexPrimvars(sc, reg, b)

	if repr != "" && c.topo != nil {
		topo := c.topo.Get()
		c.fillRepr(sc, repr, topo, func(kind IndexKind) *BufferArrayRange {
			return c.indexRange(sc, reg, c.topo.Hash(), kind, func() []int32 { return topo.Indices(kind) })
		})
	}
	*bits = b.ClearScene() &^ curvesIndexBits
}

func (c *BasisCurves) syncTopology(sc *hd.SyncContext, reg *ResourceRegistry) {
	t, err := sc.Delegate().BasisCurvesTopology(c.ID())
	if err != nil {
		sc.Fail(err)
		return
	}
	switch t.CurveType {
	case "linear":
	case "cubic":
		if !slices.Contains(cubicBases, t.Basis) {
			sc.Warning("unknown curve basis, drawing linear", "basis", t.Basis)
			t.CurveType, t.Basis = "linear", ""
		}
	default:
		sc.Warning("unknown curve type, drawing linear", "type", t.CurveType)
		t.CurveType, t.Basis = "linear", ""
	}
	inst, err := reg.RegisterCurvesTopology(sc.Context(), sc, t)
	if err != nil {
		sc.CodingError("curves topology not registered", "err", err)
		return
	}
	if c.topo != nil {
		c.topo.Release()
	}
	c.topo = inst
	c.dropIndices(curvesIndexBits)
	c.dataRev++
}

// Finalize releases the topology and the prim's buffers.
func (c *BasisCurves) Finalize(param hd.RenderParam) {
	if c.topo != nil {
		c.topo.Release()
		c.topo = nil
	}
	c.geometry.Finalize(param)
}
