// Package reference is a CPU render delegate for the hd render index.
//
// It implements meshes, basis curves and points with real draw items,
// shares topologies and index buffers between prims through a
// content-hashed ResourceRegistry, and applies buffer data on commit. It
// issues no GPU commands: executing a render pass counts the draw items it
// would submit. Use it to exercise scene delegates and tasks without a
// device, and as the model for GPU backends.
//
// Register it with a plugin registry:
//
//	plugins := hd.NewPluginRegistry(reference.PluginName)
//	reference.Register(plugins)
//	rd, err := plugins.CreateRenderDelegate("", map[string]any{"safeMode": true})
package reference
