package hd

import (
	"context"

	"github.com/gogpu/hydra/sdfpath"
	"github.com/gogpu/hydra/tracker"
)

// ResourceRegistry is a backend's store of shared GPU resources.
type ResourceRegistry interface {
	// Commit resolves the buffer sources queued during sync.
	Commit(ctx context.Context) error
	// GarbageCollect frees shared resources no primitive references and
	// returns how many entries were freed.
	GarbageCollect() int
	// ResourceAllocation reports allocation statistics by name.
	ResourceAllocation() map[string]any
}

// RenderDelegate creates backend primitives and render passes.
type RenderDelegate interface {
	SupportedRprimTypes() []string
	SupportedSprimTypes() []string
	SupportedBprimTypes() []string

	CreateRprim(typeID string, id, instancerID sdfpath.Path) (Rprim, error)
	CreateSprim(typeID string, id sdfpath.Path) (Sprim, error)
	CreateBprim(typeID string, id sdfpath.Path) (Bprim, error)
	CreateInstancer(delegate SceneDelegate, id, parentID sdfpath.Path) (Instancer, error)

	CreateRenderPass(index *RenderIndex, col Collection) *RenderPass
	CreateRenderPassState() *RenderPassState

	ResourceRegistry() ResourceRegistry
	RenderParam() RenderParam

	// CommitResources runs after every Prepare of a frame and before any
	// Execute.
	CommitResources(ctx context.Context, t *tracker.Tracker) error

	SetRenderSetting(key string, value any)
	RenderSetting(key string) (any, bool)
	RenderSettingsVersion() uint64
}

// MetricsRegistrar is implemented by render delegates that export their
// own metrics. The index calls it once, on construction.
type MetricsRegistrar interface {
	RegisterMetrics(m *Metrics)
}

// AovBinding binds a render buffer to a named output.
type AovBinding struct {
	Name         string
	RenderBuffer sdfpath.Path
	ClearValue   any
}

// RenderPassState holds the per-execution state of a render pass.
type RenderPassState struct {
	Viewport    [4]int
	Camera      sdfpath.Path
	CullStyle   CullStyle
	AovBindings []AovBinding
	// AlphaThreshold discards fragments below it.
	AlphaThreshold float32
	BlendEnabled   bool
}

// NewRenderPassState returns a state with a zero viewport and blending off.
func NewRenderPassState() *RenderPassState {
	return &RenderPassState{CullStyle: CullStyleNothing, AlphaThreshold: 0.5}
}

// ViewportSize returns the viewport width and height.
func (s *RenderPassState) ViewportSize() (w, h int) {
	return s.Viewport[2], s.Viewport[3]
}
