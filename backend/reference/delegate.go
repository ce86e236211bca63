package reference

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
	"github.com/gogpu/hydra/tracker"
)

// PluginName is the name the reference delegate registers under.
const PluginName = "reference"

// Render setting keys understood by the reference delegate.
const (
	SettingSafeMode             = "safeMode"
	SettingEnableSceneMaterials = "enableSceneMaterials"
	SettingDrawBounds           = "drawBounds"
)

// SettingDescriptors lists the delegate's settings and their defaults.
func SettingDescriptors() []hd.SettingDescriptor {
	return []hd.SettingDescriptor{
		{Name: "Safe mode", Key: SettingSafeMode, DefaultValue: false},
		{Name: "Enable scene materials", Key: SettingEnableSceneMaterials, DefaultValue: true},
		{Name: "Draw bounds", Key: SettingDrawBounds, DefaultValue: false},
	}
}

// RenderParam is the state the delegate hands to every prim Sync.
type RenderParam struct {
	Registry *ResourceRegistry

	draws     atomic.Int64
	committed atomic.Uint64
}

// Draws returns the number of draw items executed so far.
func (p *RenderParam) Draws() int64 { return p.draws.Load() }

// CommittedRevision returns the scene revision of the last commit.
func (p *RenderParam) CommittedRevision() uint64 { return p.committed.Load() }

// Option configures a Delegate.
type Option func(*Delegate)

// WithLogger sets the delegate logger. The default is hydra.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(d *Delegate) {
		d.log = l
	}
}

// WithSafeMode content-checks every shared-resource hash hit.
func WithSafeMode(on bool) Option {
	return func(d *Delegate) {
		d.safeMode = on
	}
}

// Delegate is a CPU render delegate. It builds real draw items and
// shares topologies and index buffers through a ResourceRegistry, but
// issues no GPU commands; Execute only counts draws.
type Delegate struct {
	hd.Settings

	log      *slog.Logger
	safeMode bool
	registry *ResourceRegistry
	param    *RenderParam
}

var (
	_ hd.RenderDelegate   = (*Delegate)(nil)
	_ hd.MetricsRegistrar = (*Delegate)(nil)
)

// New creates a reference delegate.
func New(opts ...Option) *Delegate {
	d := &Delegate{log: hydra.Logger()}
	for _, opt := range opts {
		opt(d)
	}
	d.log = hydra.LoggerOr(d.log, nil)
	d.PopulateDefaults(SettingDescriptors())
	d.registry = NewResourceRegistry(d.log, d.safeMode)
	d.param = &RenderParam{Registry: d.registry}
	return d
}

// Factory creates a reference delegate from plugin settings. A boolean
// safeMode setting enables safe mode.
func Factory(settings map[string]any) (hd.RenderDelegate, error) {
	var opts []Option
	if v, ok := settings[SettingSafeMode]; ok {
		on, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("reference: setting %s is %T, want bool", SettingSafeMode, v)
		}
		opts = append(opts, WithSafeMode(on))
	}
	d := New(opts...)
	for k, v := range settings {
		d.SetRenderSetting(k, v)
	}
	return d, nil
}

// Register adds the delegate's factory to r.
func Register(r *hd.PluginRegistry) { r.Register(PluginName, Factory) }

// SupportedRprimTypes returns the rprim types the delegate creates.
func (d *Delegate) SupportedRprimTypes() []string {
	return []string{hd.TypeMesh, hd.TypeBasisCurves, hd.TypePoints}
}

// SupportedSprimTypes returns the sprim types the delegate creates.
func (d *Delegate) SupportedSprimTypes() []string {
	return []string{hd.TypeMaterial, hd.TypeCamera}
}

// SupportedBprimTypes returns the bprim types the delegate creates.
func (d *Delegate) SupportedBprimTypes() []string {
	return []string{hd.TypeRenderBuffer}
}

// CreateRprim creates a mesh, curves or points prim.
func (d *Delegate) CreateRprim(typeID string, id, instancerID sdfpath.Path) (hd.Rprim, error) {
	switch typeID {
	case hd.TypeMesh:
		return newMesh(id, instancerID), nil
	case hd.TypeBasisCurves:
		return newBasisCurves(id, instancerID), nil
	case hd.TypePoints:
		return newPoints(id, instancerID), nil
	}
	return nil, fmt.Errorf("%w: rprim %q", hd.ErrUnsupportedType, typeID)
}

// CreateSprim creates a material or camera.
func (d *Delegate) CreateSprim(typeID string, id sdfpath.Path) (hd.Sprim, error) {
	switch typeID {
	case hd.TypeMaterial:
		return newMaterial(id), nil
	case hd.TypeCamera:
		return newCamera(id), nil
	}
	return nil, fmt.Errorf("%w: sprim %q", hd.ErrUnsupportedType, typeID)
}

// CreateBprim creates a render buffer.
func (d *Delegate) CreateBprim(typeID string, id sdfpath.Path) (hd.Bprim, error) {
	if typeID == hd.TypeRenderBuffer {
		return newRenderBuffer(id), nil
	}
	return nil, fmt.Errorf("%w: bprim %q", hd.ErrUnsupportedType, typeID)
}

// CreateInstancer creates an instancer.
func (d *Delegate) CreateInstancer(_ hd.SceneDelegate, id, parentID sdfpath.Path) (hd.Instancer, error) {
	return newInstancer(id, parentID), nil
}

// CreateRenderPass creates a pass drawing col.
func (d *Delegate) CreateRenderPass(index *hd.RenderIndex, col hd.Collection) *hd.RenderPass {
	return hd.NewRenderPass(index, col, &passBackend{param: d.param, log: d.log})
}

// CreateRenderPassState returns a default pass state.
func (d *Delegate) CreateRenderPassState() *hd.RenderPassState { return hd.NewRenderPassState() }

// ResourceRegistry returns the shared-resource registry.
func (d *Delegate) ResourceRegistry() hd.ResourceRegistry { return d.registry }

// Registry returns the concrete shared-resource registry.
func (d *Delegate) Registry() *ResourceRegistry { return d.registry }

// RenderParam returns the *RenderParam handed to prims.
func (d *Delegate) RenderParam() hd.RenderParam { return d.param }

// Param returns the concrete render param.
func (d *Delegate) Param() *RenderParam { return d.param }

// CommitResources applies the buffer sources queued during sync.
func (d *Delegate) CommitResources(ctx context.Context, t *tracker.Tracker) error {
	if err := d.registry.Commit(ctx); err != nil {
		return err
	}
	d.param.committed.Store(t.SceneRevision())
	return nil
}

// RegisterMetrics exports the shared-resource registry counters.
func (d *Delegate) RegisterMetrics(m *hd.Metrics) {
	d.registry.registerMetrics(m)
}

// registryOf returns the registry carried by a render param, or nil.
func registryOf(param hd.RenderParam) *ResourceRegistry {
	if p, ok := param.(*RenderParam); ok {
		return p.Registry
	}
	return nil
}
