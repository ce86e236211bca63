package hd

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/sdfpath"
)

// GeomStyle selects how one draw item of a representation is drawn.
type GeomStyle int

// Geometry styles. GeomStyleInvalid contributes no draw item.
const (
	GeomStyleInvalid GeomStyle = iota
	GeomStyleSurf
	GeomStyleEdgeOnly
	GeomStyleEdgeOnSurf
	GeomStyleHull
	GeomStyleHullEdgeOnly
	GeomStyleHullEdgeOnSurf
	GeomStylePoints
	GeomStyleWire
	GeomStylePatches
)

func (g GeomStyle) String() string {
	switch g {
	case GeomStyleInvalid:
		return "invalid"
	case GeomStyleSurf:
		return "surf"
	case GeomStyleEdgeOnly:
		return "edgeOnly"
	case GeomStyleEdgeOnSurf:
		return "edgeOnSurf"
	case GeomStyleHull:
		return "hull"
	case GeomStyleHullEdgeOnly:
		return "hullEdgeOnly"
	case GeomStyleHullEdgeOnSurf:
		return "hullEdgeOnSurf"
	case GeomStylePoints:
		return "points"
	case GeomStyleWire:
		return "wire"
	case GeomStylePatches:
		return "patches"
	}
	return "unknown"
}

// ReprDesc describes one draw item of a representation.
type ReprDesc struct {
	GeomStyle   GeomStyle
	CullStyle   CullStyle
	FlatShading bool
	// ForceRefine requests the refined topology even at refine level 0.
	ForceRefine bool
}

// ReprConfig maps representation names to their draw item descriptors
// for one primitive type.
type ReprConfig map[string][]ReprDesc

// Lookup returns the descriptors of a representation.
func (c ReprConfig) Lookup(repr string) ([]ReprDesc, bool) {
	d, ok := c[repr]
	return d, ok
}

// BufferArrayRange is a backend allocation holding one or more named
// buffers for a primitive.
type BufferArrayRange interface {
	// IsValid reports whether the range still refers to live storage.
	IsValid() bool
	// NumElements returns the element count of the range.
	NumElements() int
	// Descriptor returns the GPU buffer descriptor backing the range.
	Descriptor() gputypes.BufferDescriptor
}

// RprimSharedData is the state shared by every draw item of an rprim.
type RprimSharedData struct {
	RprimID   sdfpath.Path
	Bounds    Range3
	Transform Matrix
	Visible   bool

	// InstancerLevels counts the nested instancers above the prim.
	InstancerLevels int

	// BufferArrays holds the prim's buffer ranges by role
	// ("constant", "vertex", "varying", "element", "instance").
	BufferArrays map[string]BufferArrayRange
}

// DrawItem is the unit a render pass draws for one representation
// descriptor of an rprim.
type DrawItem struct {
	Shared *RprimSharedData
	Desc   ReprDesc

	// Topology is the backend's shared topology object.
	Topology any
	// IndexRange holds the index buffer for Desc's geometry style.
	IndexRange BufferArrayRange

	Primitive   gputypes.PrimitiveTopology
	IndexFormat gputypes.IndexFormat

	MaterialID  sdfpath.Path
	MaterialTag string

	// Primvars lists the names of primvars bound to the draw item.
	Primvars []string
}

// Visible reports whether the draw item should be drawn.
func (d *DrawItem) Visible() bool { return d.Shared != nil && d.Shared.Visible }

// Repr is the set of draw items an rprim created for one representation.
type Repr struct {
	Name  string
	Items []*DrawItem
}

// Representation names shared by the backends.
const (
	ReprHull              = "hull"
	ReprSmoothHull        = "smoothHull"
	ReprRefined           = "refined"
	ReprWire              = "wire"
	ReprWireOnSurf        = "wireOnSurf"
	ReprRefinedWire       = "refinedWire"
	ReprRefinedWireOnSurf = "refinedWireOnSurf"
	ReprPoints            = "points"
)

// ReprSlotSelector is implemented by rprims that draw with a slot of the
// ReprSelector other than slot 0: curves use slot 1 and points slot 2.
type ReprSlotSelector interface {
	ReprSlot() int
}

// ReprFor returns the repr token prim draws with under sel, "" when the
// slot is empty.
func ReprFor(prim Rprim, sel ReprSelector) string {
	slot := 0
	if s, ok := prim.(ReprSlotSelector); ok {
		slot = s.ReprSlot()
	}
	return sel.At(slot)
}
