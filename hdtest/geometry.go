package hdtest

import (
	"cmp"
	"slices"

	"github.com/gogpu/hydra/hd"
)

// Cube returns the topology and points of a unit cube made of six quads.
func Cube() (hd.MeshTopology, []hd.Vec3) {
	topo := hd.MeshTopology{
		Scheme:           "catmullClark",
		Orientation:      "rightHanded",
		FaceVertexCounts: []int32{4, 4, 4, 4, 4, 4},
		FaceVertexIndices: []int32{
			0, 1, 3, 2,
			2, 3, 5, 4,
			4, 5, 7, 6,
			6, 7, 1, 0,
			1, 7, 5, 3,
			6, 0, 2, 4,
		},
	}
	points := []hd.Vec3{
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5},
		{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5},
		{-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5},
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5},
	}
	return topo, points
}

// Quad returns a single unit quad in the XY plane.
func Quad() (hd.MeshTopology, []hd.Vec3) {
	topo := hd.MeshTopology{
		Scheme:            "none",
		Orientation:       "rightHanded",
		FaceVertexCounts:  []int32{4},
		FaceVertexIndices: []int32{0, 1, 2, 3},
	}
	points := []hd.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	return topo, points
}

// LinearCurves returns n linear curves of two segments each.
func LinearCurves(n int) (hd.BasisCurvesTopology, []hd.Vec3) {
	topo := hd.BasisCurvesTopology{CurveType: "linear", Wrap: "nonperiodic"}
	var points []hd.Vec3
	for i := range n {
		topo.CurveVertexCounts = append(topo.CurveVertexCounts, 3)
		x := float32(i)
		points = append(points, hd.Vec3{x, 0, 0}, hd.Vec3{x, 1, 0}, hd.Vec3{x, 2, 0})
	}
	return topo, points
}

func sortDescriptors(ds []hd.PrimvarDescriptor) {
	slices.SortFunc(ds, func(a, b hd.PrimvarDescriptor) int { return cmp.Compare(a.Name, b.Name) })
}
