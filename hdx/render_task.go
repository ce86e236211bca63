package hdx

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

// Keys of the task parameters read through hd.SceneDelegate.Get.
const (
	KeyParams     = "params"
	KeyCollection = "collection"
	KeyRenderTags = "renderTags"
)

// RenderTaskParams configures the render pass state of a RenderTask.
type RenderTaskParams struct {
	Viewport       [4]int
	Camera         sdfpath.Path
	CullStyle      hd.CullStyle
	AovBindings    []hd.AovBinding
	AlphaThreshold float32
	EnableBlending bool
}

// DefaultRenderTaskParams returns the parameters of a new task.
func DefaultRenderTaskParams() RenderTaskParams {
	return RenderTaskParams{CullStyle: hd.CullStyleNothing, AlphaThreshold: 0.5}
}

// RenderTaskOption configures a RenderTask.
type RenderTaskOption func(*RenderTask)

// WithCollection sets the collection drawn before the scene delegate
// provides one.
func WithCollection(col hd.Collection) RenderTaskOption {
	return func(t *RenderTask) {
		t.col = col
		t.hasCol = true
	}
}

// WithRenderTags sets the render tags drawn before the scene delegate
// provides them.
func WithRenderTags(tags ...string) RenderTaskOption {
	return func(t *RenderTask) {
		t.tags = slices.Clone(tags)
	}
}

// WithParams sets the initial pass parameters.
func WithParams(p RenderTaskParams) RenderTaskOption {
	return func(t *RenderTask) {
		t.params = p
	}
}

// RenderTask draws one collection with one render pass.
//
// A RenderTask is used by one engine at a time.
type RenderTask struct {
	id    sdfpath.Path
	index *hd.RenderIndex
	log   *slog.Logger

	col    hd.Collection
	hasCol bool
	tags   []string
	params RenderTaskParams

	pass  *hd.RenderPass
	state *hd.RenderPassState
}

// NewRenderTask creates a render task. The pass is created on the first
// Sync that knows the collection.
func NewRenderTask(index *hd.RenderIndex, id sdfpath.Path, opts ...RenderTaskOption) *RenderTask {
	t := &RenderTask{
		id:     id,
		index:  index,
		log:    index.Logger(),
		params: DefaultRenderTaskParams(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state = index.RenderDelegate().CreateRenderPassState()
	t.applyParams()
	return t
}

// ID returns the task id.
func (t *RenderTask) ID() sdfpath.Path { return t.id }

// RenderTags returns the render tags the task draws.
func (t *RenderTask) RenderTags() []string { return t.tags }

// Pass returns the render pass, nil before the first Sync with a
// collection.
func (t *RenderTask) Pass() *hd.RenderPass { return t.pass }

// State returns the task's own render pass state.
func (t *RenderTask) State() *hd.RenderPassState { return t.state }

// Params returns the current pass parameters.
func (t *RenderTask) Params() RenderTaskParams { return t.params }

// Sync pulls the parameters marked dirty in bits, then enqueues the
// pass's dirty prims. Unread parameters keep their bits.
func (t *RenderTask) Sync(tc *hd.TaskContext, delegate hd.SceneDelegate, bits *dirty.Bits) error {
	if delegate != nil && *bits != dirty.Clean {
		if err := t.pull(delegate, bits); err != nil {
			return err
		}
	}
	t.bindPass()
	if t.pass == nil {
		return nil
	}
	return t.pass.Sync(tc.Context())
}

func (t *RenderTask) pull(delegate hd.SceneDelegate, bits *dirty.Bits) error {
	if *bits&dirty.TaskDirtyCollection != 0 {
		v, err := delegate.Get(t.id, KeyCollection)
		if err != nil {
			return fmt.Errorf("hdx: %s: read collection: %w", t.id, err)
		}
		if v != nil {
			col, ok := v.(hd.Collection)
			if !ok {
				return fmt.Errorf("%w: %s: collection is %T", ErrBadParam, t.id, v)
			}
			t.col, t.hasCol = col, true
		}
		*bits &^= dirty.TaskDirtyCollection
	}
	if *bits&dirty.TaskDirtyRenderTags != 0 {
		v, err := delegate.Get(t.id, KeyRenderTags)
		if err != nil {
			return fmt.Errorf("hdx: %s: read render tags: %w", t.id, err)
		}
		if v != nil {
			tags, ok := v.([]string)
			if !ok {
				return fmt.Errorf("%w: %s: render tags are %T", ErrBadParam, t.id, v)
			}
			t.tags = slices.Clone(tags)
		}
		*bits &^= dirty.TaskDirtyRenderTags
	}
	if *bits&dirty.TaskDirtyParams != 0 {
		v, err := delegate.Get(t.id, KeyParams)
		if err != nil {
			return fmt.Errorf("hdx: %s: read params: %w", t.id, err)
		}
		if v != nil {
			p, ok := v.(RenderTaskParams)
			if !ok {
				return fmt.Errorf("%w: %s: params are %T", ErrBadParam, t.id, v)
			}
			t.params = p
			t.applyParams()
		}
		*bits &^= dirty.TaskDirtyParams
	}
	return nil
}

// bindPass creates the pass for the current collection or rebinds it.
func (t *RenderTask) bindPass() {
	if !t.hasCol {
		return
	}
	if t.pass == nil {
		t.pass = t.index.RenderDelegate().CreateRenderPass(t.index, t.col)
		t.log.Debug("hdx: render pass created", "task", t.id.String(), "collection", t.col.String())
		return
	}
	t.pass.SetRprimCollection(t.col)
}

func (t *RenderTask) applyParams() {
	t.state.Viewport = t.params.Viewport
	t.state.Camera = t.params.Camera
	t.state.CullStyle = t.params.CullStyle
	t.state.AovBindings = slices.Clone(t.params.AovBindings)
	t.state.AlphaThreshold = t.params.AlphaThreshold
	t.state.BlendEnabled = t.params.EnableBlending
}

// renderPassState returns the state shared through tc, else the task's
// own.
func (t *RenderTask) renderPassState(tc *hd.TaskContext) *hd.RenderPassState {
	if v, ok := tc.Get(hd.TaskContextRenderPassState); ok {
		if s, ok := v.(*hd.RenderPassState); ok {
			return s
		}
	}
	return t.state
}

// Prepare runs the pass's prepare step.
func (t *RenderTask) Prepare(tc *hd.TaskContext) error {
	if t.pass == nil {
		return nil
	}
	return t.pass.Prepare(tc.Context(), t.tags)
}

// Execute draws the pass.
func (t *RenderTask) Execute(tc *hd.TaskContext) error {
	if t.pass == nil {
		return nil
	}
	return t.pass.Execute(tc.Context(), t.renderPassState(tc), t.tags)
}

// Close releases the render pass.
func (t *RenderTask) Close() {
	if t.pass != nil {
		t.pass.Close()
		t.pass = nil
	}
}
