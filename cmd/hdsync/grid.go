package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdtest"
	"github.com/gogpu/hydra/sdfpath"
)

// grid lays out meshes on a square grid. Prims alternate between a few
// shared topologies so the resource registry deduplicates them.
type grid struct {
	scene *hdtest.SceneDelegate
	rng   *rand.Rand
	ids   []sdfpath.Path
	kinds []int
}

type shape struct {
	topo   hd.MeshTopology
	points []hd.Vec3
}

var shapes = func() []shape {
	quad, quadPoints := hdtest.Quad()
	cube, cubePoints := hdtest.Cube()
	tri := hd.MeshTopology{
		Scheme:            "none",
		Orientation:       "rightHanded",
		FaceVertexCounts:  []int32{3},
		FaceVertexIndices: []int32{0, 1, 2},
	}
	return []shape{
		{quad, quadPoints},
		{cube, cubePoints},
		{tri, []hd.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}},
	}
}()

func newGrid(scene *hdtest.SceneDelegate, rng *rand.Rand) *grid {
	return &grid{scene: scene, rng: rng}
}

func (g *grid) populate(n int) error {
	side := 1
	for side*side < n {
		side++
	}
	for i := 0; i < n; i++ {
		id := sdfpath.MustParse(fmt.Sprintf("/World/row%d/prim%d", i/side, i%side))
		s := i % len(shapes)
		m := hd.Identity()
		m[12], m[13] = float64(i%side), float64(i/side)
		if err := g.scene.AddMesh(id, shapes[s].topo, shapes[s].points, hdtest.WithTransform(m)); err != nil {
			return err
		}
		g.ids = append(g.ids, id)
		g.kinds = append(g.kinds, s)
	}
	return nil
}

// edit changes a random rate-sized subset of prims and returns how many
// edits were made.
func (g *grid) edit(rate float64) (int, error) {
	n := int(rate * float64(len(g.ids)))
	for e := 0; e < n; e++ {
		i := g.rng.IntN(len(g.ids))
		id := g.ids[i]
		var err error
		switch g.rng.IntN(4) {
		case 0:
			pts := append([]hd.Vec3(nil), shapes[g.kinds[i]].points...)
			for j := range pts {
				pts[j][2] = g.rng.Float32()
			}
			err = g.scene.SetPoints(id, pts)
		case 1:
			m := hd.Identity()
			m[14] = g.rng.Float64()
			err = g.scene.SetTransform(id, m)
		case 2:
			err = g.scene.SetVisible(id, g.rng.IntN(2) == 0)
		default:
			s := (g.kinds[i] + 1) % len(shapes)
			g.kinds[i] = s
			if err = g.scene.SetMeshTopology(id, shapes[s].topo); err == nil {
				err = g.scene.SetPoints(id, shapes[s].points)
			}
		}
		if err != nil {
			return e, err
		}
	}
	return n, nil
}
