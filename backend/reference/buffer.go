package reference

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/hd"
)

// BufferSpec names one buffer of a range and its element format.
type BufferSpec struct {
	Name   string
	Format gputypes.VertexFormat
}

// BufferSource is data queued for one buffer of a range. Data is one of
// []hd.Vec3, []float32, []int32 or a scalar of those element types.
type BufferSource struct {
	Name string
	Data any
}

// formatOf returns the vertex format of one element of data.
func formatOf(data any) (gputypes.VertexFormat, bool) {
	switch data.(type) {
	case []hd.Vec3, hd.Vec3:
		return gputypes.VertexFormatFloat32x3, true
	case []float32, float32:
		return gputypes.VertexFormatFloat32, true
	case []int32, int32:
		return gputypes.VertexFormatSint32, true
	}
	return 0, false
}

// sourceLen returns the element count of a source's data.
func sourceLen(data any) (int, error) {
	switch v := data.(type) {
	case []hd.Vec3:
		return len(v), nil
	case []float32:
		return len(v), nil
	case []int32:
		return len(v), nil
	case float32, int32, hd.Vec3:
		return 1, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("reference: unsupported buffer source %T", data)
}

// BufferArrayRange is a CPU-side allocation holding named buffers of equal
// element count. It implements hd.BufferArrayRange.
//
// BufferArrayRange is safe for concurrent use.
type BufferArrayRange struct {
	role  string
	usage gputypes.BufferUsage
	specs []BufferSpec

	mu       sync.RWMutex
	data     map[string]any
	elements int
	version  uint64

	released atomic.Bool
}

func newBufferArrayRange(role string, usage gputypes.BufferUsage, specs []BufferSpec) *BufferArrayRange {
	return &BufferArrayRange{
		role:  role,
		usage: usage,
		specs: slices.Clone(specs),
		data:  make(map[string]any, len(specs)),
	}
}

// Role returns the role the range was allocated for.
func (r *BufferArrayRange) Role() string { return r.role }

// IsValid reports whether the range has not been released.
func (r *BufferArrayRange) IsValid() bool { return !r.released.Load() }

// NumElements returns the element count of the committed data.
func (r *BufferArrayRange) NumElements() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elements
}

// Version returns the number of commits applied to the range.
func (r *BufferArrayRange) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Resource returns the committed data of the named buffer.
func (r *BufferArrayRange) Resource(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[name]
	return v, ok
}

// Descriptor returns the GPU buffer descriptor the range would need.
func (r *BufferArrayRange) Descriptor() gputypes.BufferDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stride uint64
	for _, s := range r.specs {
		stride += s.Format.Size()
	}
	return gputypes.BufferDescriptor{
		Label: r.role,
		Size:  stride * uint64(r.elements),
		Usage: r.usage,
	}
}

// Release marks the range free. The registry drops it on the next
// garbage collection.
func (r *BufferArrayRange) Release() { r.released.Store(true) }

// apply stores committed sources. Sources for buffers the range was not
// allocated with are rejected.
func (r *BufferArrayRange) apply(sources []BufferSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, src := range sources {
		if !slices.ContainsFunc(r.specs, func(s BufferSpec) bool { return s.Name == src.Name }) {
			return fmt.Errorf("reference: range %q has no buffer %q", r.role, src.Name)
		}
		n, err := sourceLen(src.Data)
		if err != nil {
			return err
		}
		r.data[src.Name] = src.Data
		r.elements = max(r.elements, n)
	}
	r.version++
	return nil
}

var _ hd.BufferArrayRange = (*BufferArrayRange)(nil)
