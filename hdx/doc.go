// Package hdx provides the standard render tasks.
//
// A RenderTask draws one collection through a render pass created by the
// index's render delegate. It reads its collection, render tags and pass
// parameters from the scene delegate whenever the task is marked dirty:
//
//	scene.AddTask(task, map[string]any{
//		hdx.KeyCollection: hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprSmoothHull), root),
//		hdx.KeyRenderTags: []string{hd.RenderTagGeometry},
//	})
//
// OITRenderTask is a RenderTask that also sizes order-independent
// transparency buffers to the viewport and shares them with later tasks
// through the task context.
package hdx
