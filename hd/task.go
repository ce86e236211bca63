package hd

import (
	"context"
	"sync"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// Task is a unit of per-frame work, typically drawing one render pass.
//
// Every frame the engine calls Sync on each task, then Prepare on each,
// then commits resources, then Execute on each. Sync receives the task's
// tracked dirty bits (Clean when nothing changed) and clears what it
// resolved; it is where a render pass enqueues its dirty prims.
type Task interface {
	ID() sdfpath.Path
	Sync(tc *TaskContext, delegate SceneDelegate, bits *dirty.Bits) error
	Prepare(tc *TaskContext) error
	Execute(tc *TaskContext) error
	// RenderTags returns the render tags of the prims the task draws. An
	// empty result means every tag.
	RenderTags() []string
}

// Well-known TaskContext keys.
const (
	// TaskContextRenderPassState holds a *RenderPassState shared by the
	// render tasks of a frame.
	TaskContextRenderPassState = "renderPassState"
	// TaskContextOITBuffers holds the order-independent-transparency
	// buffers prepared for the frame.
	TaskContextOITBuffers = "oitBuffers"
)

// TaskContext carries values between the tasks of one frame.
//
// TaskContext is safe for concurrent use.
type TaskContext struct {
	ctx   context.Context
	index *RenderIndex

	mu     sync.RWMutex
	values map[string]any
}

// NewTaskContext returns an empty task context for index.
func NewTaskContext(ctx context.Context, index *RenderIndex) *TaskContext {
	return &TaskContext{ctx: ctx, index: index, values: make(map[string]any)}
}

// Context returns the frame context.
func (tc *TaskContext) Context() context.Context { return tc.ctx }

// Index returns the render index.
func (tc *TaskContext) Index() *RenderIndex { return tc.index }

// Get returns the value stored under key.
func (tc *TaskContext) Get(key string) (any, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	v, ok := tc.values[key]
	return v, ok
}

// Set stores value under key.
func (tc *TaskContext) Set(key string, value any) {
	tc.mu.Lock()
	tc.values[key] = value
	tc.mu.Unlock()
}

// Delete removes key.
func (tc *TaskContext) Delete(key string) {
	tc.mu.Lock()
	delete(tc.values, key)
	tc.mu.Unlock()
}

func (tc *TaskContext) withContext(ctx context.Context) {
	tc.ctx = ctx
}
