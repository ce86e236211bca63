package hdx

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

// OITSamplesPerPixel is the number of transparent fragments kept per
// pixel.
const OITSamplesPerPixel = 8

// OITBuffers describes the order-independent transparency buffers of a
// frame. Buffers only grow: a smaller viewport reuses the allocation.
type OITBuffers struct {
	// Width and Height are the viewport the buffers currently serve.
	Width, Height int
	// Pixels is the allocated pixel capacity.
	Pixels int

	// Counter holds one fragment counter per pixel plus a global one.
	Counter gputypes.BufferDescriptor
	Indices gputypes.BufferDescriptor
	Data    gputypes.BufferDescriptor
	Depth   gputypes.BufferDescriptor

	// Generation increases on every reallocation.
	Generation uint64
}

const oitUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst

func newOITBuffers(pixels int, generation uint64) *OITBuffers {
	n := uint64(pixels)
	return &OITBuffers{
		Pixels:     pixels,
		Counter:    gputypes.BufferDescriptor{Label: "oit.counter", Size: (n + 1) * 4, Usage: oitUsage},
		Indices:    gputypes.BufferDescriptor{Label: "oit.indices", Size: n * OITSamplesPerPixel * 4, Usage: oitUsage},
		Data:       gputypes.BufferDescriptor{Label: "oit.data", Size: n * OITSamplesPerPixel * 16, Usage: oitUsage},
		Depth:      gputypes.BufferDescriptor{Label: "oit.depth", Size: n * OITSamplesPerPixel * 4, Usage: oitUsage},
		Generation: generation,
	}
}

// OITRenderTask draws the translucent part of a scene with
// order-independent transparency. Prepare sizes the buffers and publishes
// them under hd.TaskContextOITBuffers; Execute may run several times per
// frame without another Sync.
type OITRenderTask struct {
	*RenderTask

	buffers    *OITBuffers
	executions atomic.Int64
}

// NewOITRenderTask creates an OIT render task. Blending is enabled unless
// WithParams says otherwise.
func NewOITRenderTask(index *hd.RenderIndex, id sdfpath.Path, opts ...RenderTaskOption) *OITRenderTask {
	params := DefaultRenderTaskParams()
	params.EnableBlending = true
	opts = append([]RenderTaskOption{WithParams(params)}, opts...)
	return &OITRenderTask{RenderTask: NewRenderTask(index, id, opts...)}
}

// Buffers returns the current buffers, nil before the first Prepare with
// a non-empty viewport.
func (t *OITRenderTask) Buffers() *OITBuffers { return t.buffers }

// Executions returns how many times Execute ran.
func (t *OITRenderTask) Executions() int64 { return t.executions.Load() }

// Prepare sizes the OIT buffers to the viewport, then prepares the pass.
func (t *OITRenderTask) Prepare(tc *hd.TaskContext) error {
	w, h := t.renderPassState(tc).ViewportSize()
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: %s: negative viewport %dx%d", ErrBadParam, t.id, w, h)
	}
	if w > 0 && h > 0 {
		t.resize(w, h)
		tc.Set(hd.TaskContextOITBuffers, t.buffers)
	}
	return t.RenderTask.Prepare(tc)
}

func (t *OITRenderTask) resize(w, h int) {
	if t.buffers == nil || w*h > t.buffers.Pixels {
		gen := uint64(1)
		if t.buffers != nil {
			gen = t.buffers.Generation + 1
		}
		t.buffers = newOITBuffers(w*h, gen)
		t.log.Debug("hdx: oit buffers allocated", "task", t.id.String(), "width", w, "height", h, "generation", gen)
	}
	t.buffers.Width, t.buffers.Height = w, h
}

// Execute draws the pass into the OIT buffers.
func (t *OITRenderTask) Execute(tc *hd.TaskContext) error {
	t.executions.Add(1)
	return t.RenderTask.Execute(tc)
}
