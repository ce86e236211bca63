// Package hydra is the change-tracking and synchronization core of a
// retained-mode render graph.
//
// # Overview
//
// A scene delegate describes primitives (meshes, curves, points, lights,
// render buffers) by path. A render index owns one backend object per
// primitive and keeps them consistent with the delegate incrementally:
// edits are recorded as dirty bits in a change tracker, each frame every
// render pass asks its dirty list which primitives of its collection need
// work, and the index syncs only those.
//
//	rd := reference.New()
//	index, err := hd.NewRenderIndex(rd, hd.WithWorkers(4))
//	if err != nil {
//		return err
//	}
//	defer index.Close()
//
//	scene := hdtest.NewSceneDelegate(index, sdfpath.AbsoluteRoot())
//	topo, points := hdtest.Quad()
//	_ = scene.AddMesh(sdfpath.MustParse("/World/quad"), topo, points)
//
//	col := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprSmoothHull), sdfpath.MustParse("/World"))
//	task := hdx.NewRenderTask(index, sdfpath.MustParse("/tasks/render"), hdx.WithCollection(col))
//	err = hd.NewEngine().Execute(ctx, index, []hd.Task{task}, nil)
//
// # Packages
//
//   - sdfpath: primitive identifiers and sorted id containers
//   - dirty: the dirty-bit vocabulary
//   - tracker: the change tracker
//   - instance: content-hash keyed, build-once resource sharing
//   - hd: render index, dirty lists, collections, prim contracts, engine
//   - hdx: render tasks
//   - backend/reference: a CPU reference render delegate
//   - trace: aggregate call trees for profiling sync phases
//   - config: runtime configuration
//   - hdtest: an in-memory scene delegate for tests and tools
//
// # Logging
//
// The module is silent by default. Call SetLogger to route diagnostics to
// a slog handler.
package hydra

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"
)
