package hd

import "github.com/gogpu/hydra/sdfpath"

// Well-known primitive type ids.
const (
	TypeMesh         = "mesh"
	TypeBasisCurves  = "basisCurves"
	TypePoints       = "points"
	TypeMaterial     = "material"
	TypeCamera       = "camera"
	TypeRenderBuffer = "renderBuffer"
)

// Well-known render tags.
const (
	RenderTagGeometry = "geometry"
	RenderTagGuide    = "guide"
	RenderTagProxy    = "proxy"
	RenderTagRender   = "render"
	RenderTagHidden   = "hidden"
)

// Matrix is a row-major 4x4 transform.
type Matrix [16]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Vec3 is a single-precision 3-vector.
type Vec3 [3]float32

// Range3 is an axis-aligned bounding box. The zero value is empty.
type Range3 struct {
	Min, Max Vec3
	valid    bool
}

// NewRange3 returns the box spanning min and max.
func NewRange3(min, max Vec3) Range3 {
	return Range3{Min: min, Max: max, valid: true}
}

// IsEmpty reports whether r contains no point.
func (r Range3) IsEmpty() bool { return !r.valid }

// Union returns the smallest box containing r and o.
func (r Range3) Union(o Range3) Range3 {
	if !r.valid {
		return o
	}
	if !o.valid {
		return r
	}
	out := r
	for i := 0; i < 3; i++ {
		out.Min[i] = min(r.Min[i], o.Min[i])
		out.Max[i] = max(r.Max[i], o.Max[i])
	}
	return out
}

// ExtendPoint returns r grown to contain p.
func (r Range3) ExtendPoint(p Vec3) Range3 {
	return r.Union(NewRange3(p, p))
}

// DisplayStyle carries per-prim display options.
type DisplayStyle struct {
	RefineLevel       int
	FlatShading       bool
	DisplacementOn    bool
	OcclusionDisabled bool
}

// CullStyle selects face culling.
type CullStyle int

// Cull styles.
const (
	CullStyleDontCare CullStyle = iota
	CullStyleNothing
	CullStyleBack
	CullStyleFront
	CullStyleBackUnlessDoubleSided
)

// Interpolation is the rate at which a primvar varies over a primitive.
type Interpolation int

// Interpolation modes.
const (
	InterpolationConstant Interpolation = iota
	InterpolationUniform
	InterpolationVarying
	InterpolationVertex
	InterpolationFaceVarying
	InterpolationInstance

	interpolationCount
)

// Interpolations lists every interpolation mode in order.
func Interpolations() []Interpolation {
	out := make([]Interpolation, interpolationCount)
	for i := range out {
		out[i] = Interpolation(i)
	}
	return out
}

func (i Interpolation) String() string {
	switch i {
	case InterpolationConstant:
		return "constant"
	case InterpolationUniform:
		return "uniform"
	case InterpolationVarying:
		return "varying"
	case InterpolationVertex:
		return "vertex"
	case InterpolationFaceVarying:
		return "faceVarying"
	case InterpolationInstance:
		return "instance"
	}
	return "unknown"
}

// PrimvarDescriptor describes one authored primvar.
type PrimvarDescriptor struct {
	Name          string
	Interpolation Interpolation
	Role          string
	Indexed       bool
}

// ExtComputationPrimvarDescriptor describes a primvar produced by an
// external computation rather than read directly.
type ExtComputationPrimvarDescriptor struct {
	PrimvarDescriptor
	SourceComputation sdfpath.Path
	SourceOutput      string
}

// MeshTopology is the connectivity of a polygonal mesh.
type MeshTopology struct {
	Scheme            string
	Orientation       string
	FaceVertexCounts  []int32
	FaceVertexIndices []int32
	HoleIndices       []int32
	RefineLevel       int
}

// NumPoints returns one more than the largest referenced vertex index.
func (t *MeshTopology) NumPoints() int {
	n := int32(-1)
	for _, i := range t.FaceVertexIndices {
		n = max(n, i)
	}
	return int(n + 1)
}

// NumFaces returns the number of faces.
func (t *MeshTopology) NumFaces() int { return len(t.FaceVertexCounts) }

// BasisCurvesTopology is the connectivity of a set of curves.
type BasisCurvesTopology struct {
	CurveType         string // "linear" or "cubic"
	Basis             string // "bezier", "bspline", "catmullRom" for cubic curves
	Wrap              string // "nonperiodic", "periodic", "pinned"
	CurveVertexCounts []int32
	CurveIndices      []int32
}

// NumPoints returns the number of control points referenced.
func (t *BasisCurvesTopology) NumPoints() int {
	if len(t.CurveIndices) > 0 {
		n := int32(-1)
		for _, i := range t.CurveIndices {
			n = max(n, i)
		}
		return int(n + 1)
	}
	total := 0
	for _, c := range t.CurveVertexCounts {
		total += int(c)
	}
	return total
}
