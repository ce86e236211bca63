package reference

import (
	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
	"github.com/gogpu/hydra/sdfpath"
)

var (
	pointsBits       dirty.CustomAllocator
	pointsIndicesBit = pointsBits.Next("indices")
)

// PointsReprs is the representation table of points prims. Every repr
// draws points.
var PointsReprs = hd.ReprConfig{
	hd.ReprHull:       {{GeomStyle: hd.GeomStylePoints}},
	hd.ReprSmoothHull: {{GeomStyle: hd.GeomStylePoints}},
	hd.ReprWire:       {{GeomStyle: hd.GeomStylePoints}},
	hd.ReprRefined:    {{GeomStyle: hd.GeomStylePoints}},
	hd.ReprPoints:     {{GeomStyle: hd.GeomStylePoints}},
}

// Points is a points rprim. It draws with slot 2 of a collection's repr
// selector.
type Points struct {
	geometry

	count int
}

var (
	_ hd.Rprim            = (*Points)(nil)
	_ hd.ReprSlotSelector = (*Points)(nil)
)

func newPoints(id, instancerID sdfpath.Path) *Points {
	return &Points{
		geometry: newGeometry(hd.NewRprimBase(id, instancerID), PointsReprs,
			func(hd.GeomStyle) IndexKind { return IndexPoints },
			func(IndexKind) dirty.Bits { return pointsIndicesBit }),
	}
}

// ReprSlot returns the repr selector slot used by points.
func (p *Points) ReprSlot() int { return 2 }

// GetInitialDirtyBitsMask returns every bit a points prim reads.
func (p *Points) GetInitialDirtyBitsMask() dirty.Bits { return initialDirtyBits }

// PropagateDirtyBits marks the index buffer dirty when the points
// changed, since their count may have.
func (p *Points) PropagateDirtyBits(bits dirty.Bits) dirty.Bits {
	if bits&dirty.DirtyPoints != 0 {
		bits |= pointsIndicesBit
	}
	return bits
}

// Count returns the number of points as of the last sync.
func (p *Points) Count() int { return p.count }

// Sync pulls the dirty points data and updates the draw items of repr.
func (p *Points) Sync(sc *hd.SyncContext, bits *dirty.Bits, repr string) {
	if p.upToDate(*bits, repr) {
		return
	}
	reg := registryFor(sc)
	if reg == nil {
		return
	}
	b := *bits
	p.syncBase(sc, b)
	p.syncConstantPrimvars(sc, reg, b)
	p.syncVertexPrimvars(sc, reg, b)
	if b&dirty.DirtyPoints != 0 {
		n := 0
		if v, err := sc.Delegate().Get(p.ID(), "points"); err != nil {
			sc.Fail(err)
		} else if pts, ok := v.([]hd.Vec3); ok {
			n = len(pts)
		}
		if n != p.count {
			p.count = n
			p.dropIndices(pointsIndicesBit)
			p.dataRev++
		}
	}

	if repr != "" {
		n := p.count
		key := instance.NewHasher().String("points").Int(n).Sum64()
		p.fillRepr(sc, repr, nil, func(kind IndexKind) *BufferArrayRange {
			return p.indexRange(sc, reg, key, kind, func() []int32 { return pointIndices(n) })
		})
	}
	*bits = b.ClearScene() &^ pointsIndicesBit
}
