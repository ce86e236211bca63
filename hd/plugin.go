package hd

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/hydra"
)

// RenderDelegateFactory creates a render delegate configured with the
// given initial settings.
type RenderDelegateFactory func(settings map[string]any) (RenderDelegate, error)

// PluginRegistry maps renderer plugin names to render delegate factories.
// When no name is given, the highest-priority registered plugin is used.
//
// A PluginRegistry is an explicit object; applications create one and
// register the plugins they link in.
//
// PluginRegistry is safe for concurrent use.
type PluginRegistry struct {
	factories *gpucontext.Registry[RenderDelegateFactory]
	priority  []string
	log       *slog.Logger
}

// NewPluginRegistry creates an empty registry preferring the named
// plugins in order.
func NewPluginRegistry(priority ...string) *PluginRegistry {
	return &PluginRegistry{
		factories: gpucontext.NewRegistry[RenderDelegateFactory](gpucontext.WithPriority(priority...)),
		priority:  slices.Clone(priority),
		log:       hydra.Logger(),
	}
}

// Register adds or replaces the factory for name.
func (r *PluginRegistry) Register(name string, f RenderDelegateFactory) {
	r.factories.Register(name, func() RenderDelegateFactory { return f })
}

// Unregister removes the factory for name.
func (r *PluginRegistry) Unregister(name string) { r.factories.Unregister(name) }

// Has reports whether name is registered.
func (r *PluginRegistry) Has(name string) bool { return r.factories.Has(name) }

// Available returns the registered plugin names in sorted order.
func (r *PluginRegistry) Available() []string {
	names := r.factories.Available()
	slices.Sort(names)
	return names
}

// DefaultPluginID returns the name CreateRenderDelegate uses when given
// an empty name: the first registered plugin of the priority list, else
// the alphabetically first registered plugin, else "".
func (r *PluginRegistry) DefaultPluginID() string {
	best := r.factories.BestName()
	if best == "" || slices.Contains(r.priority, best) {
		return best
	}
	// BestName falls back to map order when no prioritized plugin is
	// registered; pick a stable name instead.
	return r.Available()[0]
}

// CreateRenderDelegate creates a render delegate from the named plugin,
// or from the default plugin when name is empty.
func (r *PluginRegistry) CreateRenderDelegate(name string, settings map[string]any) (RenderDelegate, error) {
	if name == "" {
		name = r.DefaultPluginID()
	}
	if name == "" || !r.factories.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	rd, err := r.factories.Get(name)(settings)
	if err != nil {
		return nil, fmt.Errorf("hd: create render delegate %q: %w", name, err)
	}
	r.log.Info("hd: render delegate created", "plugin", name)
	return rd, nil
}
