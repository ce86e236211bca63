package reference

import (
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
)

// IndexKind selects which index buffer is derived from a topology.
type IndexKind string

// Index kinds.
const (
	IndexTriangles IndexKind = "triangles"
	IndexEdges     IndexKind = "edges"
	IndexPoints    IndexKind = "points"
)

// Primitive returns the primitive topology the kind is drawn with.
func (k IndexKind) Primitive() gputypes.PrimitiveTopology {
	switch k {
	case IndexEdges:
		return gputypes.PrimitiveTopologyLineList
	case IndexPoints:
		return gputypes.PrimitiveTopologyPointList
	}
	return gputypes.PrimitiveTopologyTriangleList
}

// MeshTopology is a mesh topology shared by every mesh with equal
// connectivity.
type MeshTopology struct {
	hd.MeshTopology
	hash uint64
}

func newMeshTopology(t hd.MeshTopology) *MeshTopology {
	t.FaceVertexCounts = slices.Clone(t.FaceVertexCounts)
	t.FaceVertexIndices = slices.Clone(t.FaceVertexIndices)
	t.HoleIndices = slices.Clone(t.HoleIndices)
	return &MeshTopology{MeshTopology: t, hash: hashMeshTopology(t)}
}

// Hash returns the content hash of the topology.
func (t *MeshTopology) Hash() uint64 { return t.hash }

func hashMeshTopology(t hd.MeshTopology) uint64 {
	return instance.NewHasher().
		String("mesh").
		String(t.Scheme).
		String(t.Orientation).
		Int32s(t.FaceVertexCounts).
		Int32s(t.FaceVertexIndices).
		Int32s(t.HoleIndices).
		Int(t.RefineLevel).
		Sum64()
}

// equalMeshTopology reports whether a and b describe the same
// connectivity.
func equalMeshTopology(a, b hd.MeshTopology) bool {
	return a.Scheme == b.Scheme &&
		a.Orientation == b.Orientation &&
		a.RefineLevel == b.RefineLevel &&
		slices.Equal(a.FaceVertexCounts, b.FaceVertexCounts) &&
		slices.Equal(a.FaceVertexIndices, b.FaceVertexIndices) &&
		slices.Equal(a.HoleIndices, b.HoleIndices)
}

// Indices builds the index buffer of kind. Faces with fewer than three
// vertices and hole faces produce no triangles.
func (t *MeshTopology) Indices(kind IndexKind) []int32 {
	switch kind {
	case IndexEdges:
		return t.edgeIndices()
	case IndexPoints:
		return pointIndices(t.NumPoints())
	}
	return t.triangleIndices()
}

func (t *MeshTopology) triangleIndices() []int32 {
	flip := t.Orientation == "leftHanded"
	out := make([]int32, 0, len(t.FaceVertexIndices)*3)
	base := 0
	for face, n := range t.FaceVertexCounts {
		verts := t.faceVertices(base, int(n))
		base += int(n)
		if len(verts) < 3 || slices.Contains(t.HoleIndices, int32(face)) {
			continue
		}
		for i := 1; i+1 < len(verts); i++ {
			if flip {
				out = append(out, verts[0], verts[i+1], verts[i])
			} else {
				out = append(out, verts[0], verts[i], verts[i+1])
			}
		}
	}
	return out
}

func (t *MeshTopology) edgeIndices() []int32 {
	out := make([]int32, 0, len(t.FaceVertexIndices)*2)
	base := 0
	for _, n := range t.FaceVertexCounts {
		verts := t.faceVertices(base, int(n))
		base += int(n)
		if len(verts) < 2 {
			continue
		}
		for i := range verts {
			out = append(out, verts[i], verts[(i+1)%len(verts)])
		}
	}
	return out
}

// faceVertices returns the vertex indices of one face, clipped to the
// authored index array.
func (t *MeshTopology) faceVertices(base, n int) []int32 {
	if base >= len(t.FaceVertexIndices) || n <= 0 {
		return nil
	}
	return t.FaceVertexIndices[base:min(base+n, len(t.FaceVertexIndices))]
}

// CurvesTopology is a basis curves topology shared by every curves prim
// with equal connectivity.
type CurvesTopology struct {
	hd.BasisCurvesTopology
	hash uint64
}

func newCurvesTopology(t hd.BasisCurvesTopology) *CurvesTopology {
	t.CurveVertexCounts = slices.Clone(t.CurveVertexCounts)
	t.CurveIndices = slices.Clone(t.CurveIndices)
	return &CurvesTopology{BasisCurvesTopology: t, hash: hashCurvesTopology(t)}
}

// Hash returns the content hash of the topology.
func (t *CurvesTopology) Hash() uint64 { return t.hash }

func hashCurvesTopology(t hd.BasisCurvesTopology) uint64 {
	return instance.NewHasher().
		String("curves").
		String(t.CurveType).
		String(t.Basis).
		String(t.Wrap).
		Int32s(t.CurveVertexCounts).
		Int32s(t.CurveIndices).
		Sum64()
}

func equalCurvesTopology(a, b hd.BasisCurvesTopology) bool {
	return a.CurveType == b.CurveType &&
		a.Basis == b.Basis &&
		a.Wrap == b.Wrap &&
		slices.Equal(a.CurveVertexCounts, b.CurveVertexCounts) &&
		slices.Equal(a.CurveIndices, b.CurveIndices)
}

// Indices builds the index buffer of kind. Curves are drawn as line
// segments between consecutive control points; periodic curves close.
func (t *CurvesTopology) Indices(kind IndexKind) []int32 {
	if kind == IndexPoints {
		return pointIndices(t.NumPoints())
	}
	periodic := t.Wrap == "periodic"
	var out []int32
	vertex := int32(0)
	for _, n := range t.CurveVertexCounts {
		for i := int32(0); i+1 < n; i++ {
			out = append(out, t.vertex(vertex+i), t.vertex(vertex+i+1))
		}
		if periodic && n > 2 {
			out = append(out, t.vertex(vertex+n-1), t.vertex(vertex))
		}
		vertex += n
	}
	return out
}

func (t *CurvesTopology) vertex(i int32) int32 {
	if len(t.CurveIndices) == 0 {
		return i
	}
	if int(i) < len(t.CurveIndices) {
		return t.CurveIndices[i]
	}
	return 0
}

func pointIndices(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}
