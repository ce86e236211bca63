// Package hd is the render index and its synchronization machinery.
//
// A RenderIndex owns one backend object per primitive, created through a
// RenderDelegate, and a change tracker recording which of them are out of
// date. Render passes select primitives with a Collection and keep a
// DirtyList of the members that need work. Each frame the Engine runs
//
//	SyncAll -> Prepare -> CommitResources -> Execute
//
// where SyncAll pulls fresh data from the scene delegates for exactly the
// dirty members of the enqueued collections, fanning the per-primitive
// work out over a worker pool.
//
// # Primitive kinds
//
//   - Rprim: renderable geometry with draw items per representation
//   - Sprim: state (materials, cameras, lights)
//   - Bprim: buffers (render targets)
//   - Instancer: instancing data shared by rprims
//   - Task: frame orchestration (render tasks)
//
// # Errors
//
// Contract violations inside a backend are reported to the index's
// Diagnostics and never abort a frame. Scene delegate read errors leave the
// affected primitive dirty so it is retried on the next frame.
package hd
