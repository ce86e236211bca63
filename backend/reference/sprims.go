package reference

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/sdfpath"
)

// DefaultMaterialTag is the tag of a material that authors none.
const DefaultMaterialTag = "defaultMaterialTag"

// Material is a material sprim. It reads "materialTag" (string) and
// "params" (map[string]any) from the scene delegate.
type Material struct {
	id sdfpath.Path

	mu     sync.RWMutex
	tag    string
	params map[string]any
}

func newMaterial(id sdfpath.Path) *Material {
	return &Material{id: id, tag: DefaultMaterialTag}
}

// ID returns the material id.
func (m *Material) ID() sdfpath.Path { return m.id }

// GetInitialDirtyBitsMask returns every material bit.
func (m *Material) GetInitialDirtyBitsMask() dirty.Bits { return dirty.SprimAllDirty }

// Tag returns the material tag as of the last sync.
func (m *Material) Tag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tag
}

// Param returns a material parameter as of the last sync.
func (m *Material) Param(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.params[name]
	return v, ok
}

// Sync pulls the material tag and parameters.
func (m *Material) Sync(sc *hd.SyncContext, bits *dirty.Bits) {
	if *bits&(dirty.SprimDirtyParams|dirty.SprimDirtyResource) == 0 {
		*bits = dirty.Clean
		return
	}
	tag := DefaultMaterialTag
	if v, err := sc.Delegate().Get(m.id, "materialTag"); err != nil {
		sc.Fail(err)
		return
	} else if s, ok := v.(string); ok && s != "" {
		tag = s
	}
	var params map[string]any
	if v, err := sc.Delegate().Get(m.id, "params"); err != nil {
		sc.Fail(err)
		return
	} else if v != nil {
		p, ok := v.(map[string]any)
		if !ok {
			sc.Warning("material params ignored", "type", fmt.Sprintf("%T", v))
		}
		params = p
	}
	m.mu.Lock()
	m.tag, m.params = tag, params
	m.mu.Unlock()
	*bits = dirty.Clean
}

// Finalize is a no-op.
func (m *Material) Finalize(hd.RenderParam) {}

// Camera is a camera sprim. It reads its transform and the
// "clippingRange" ([2]float32) parameter.
type Camera struct {
	id sdfpath.Path

	mu            sync.RWMutex
	transform     hd.Matrix
	clippingRange [2]float32
}

func newCamera(id sdfpath.Path) *Camera {
	return &Camera{id: id, transform: hd.Identity(), clippingRange: [2]float32{1, 1e6}}
}

// ID returns the camera id.
func (c *Camera) ID() sdfpath.Path { return c.id }

// GetInitialDirtyBitsMask returns every camera bit.
func (c *Camera) GetInitialDirtyBitsMask() dirty.Bits { return dirty.SprimAllDirty }

// Transform returns the camera transform as of the last sync.
func (c *Camera) Transform() hd.Matrix {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transform
}

// ClippingRange returns the near and far planes as of the last sync.
func (c *Camera) ClippingRange() [2]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clippingRange
}

// Sync pulls the transform and parameters.
func (c *Camera) Sync(sc *hd.SyncContext, bits *dirty.Bits) {
	if *bits&dirty.SprimDirtyTransform != 0 {
		m, err := sc.Delegate().Transform(c.id)
		if err != nil {
			sc.Fail(err)
			return
		}
		c.mu.Lock()
		c.transform = m
		c.mu.Unlock()
	}
	if *bits&dirty.SprimDirtyParams != 0 {
		v, err := sc.Delegate().Get(c.id, "clippingRange")
		if err != nil {
			sc.Fail(err)
			return
		}
		if r, ok := v.([2]float32); ok {
			c.mu.Lock()
			c.clippingRange = r
			c.mu.Unlock()
		}
	}
	*bits = dirty.Clean
}

// Finalize is a no-op.
func (c *Camera) Finalize(hd.RenderParam) {}

// RenderBuffer is a render buffer bprim. It reads "dimensions" ([2]int)
// and an optional "format" (gputypes.TextureFormat).
type RenderBuffer struct {
	id sdfpath.Path

	mu          sync.RWMutex
	desc        gputypes.TextureDescriptor
	allocations int
}

func newRenderBuffer(id sdfpath.Path) *RenderBuffer {
	return &RenderBuffer{id: id}
}

// ID returns the render buffer id.
func (b *RenderBuffer) ID() sdfpath.Path { return b.id }

// GetInitialDirtyBitsMask returns every bprim bit.
func (b *RenderBuffer) GetInitialDirtyBitsMask() dirty.Bits { return dirty.BprimAllDirty }

// Descriptor returns the texture the buffer would allocate.
func (b *RenderBuffer) Descriptor() gputypes.TextureDescriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.desc
}

// Allocations returns how many times the buffer was (re)allocated.
func (b *RenderBuffer) Allocations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.allocations
}

// Sync reallocates the buffer when its description changed.
func (b *RenderBuffer) Sync(sc *hd.SyncContext, bits *dirty.Bits) {
	if *bits&dirty.BprimDirtyDescription == 0 {
		*bits = dirty.Clean
		return
	}
	v, err := sc.Delegate().Get(b.id, "dimensions")
	if err != nil {
		sc.Fail(err)
		return
	}
	dims, ok := v.([2]int)
	if !ok || dims[0] <= 0 || dims[1] <= 0 {
		sc.Warning("render buffer has no valid dimensions", "dimensions", v)
		*bits = dirty.Clean
		return
	}
	format := gputypes.TextureFormatRGBA8Unorm
	if v, err := sc.Delegate().Get(b.id, "format"); err == nil {
		if f, ok := v.(gputypes.TextureFormat); ok {
			format = f
		}
	}
	desc := gputypes.TextureDescriptor{
		Label:         b.id.String(),
		Size:          gputypes.Extent3D{Width: uint32(dims[0]), Height: uint32(dims[1]), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	}
	b.mu.Lock()
	if desc.Size != b.desc.Size || desc.Format != b.desc.Format {
		b.desc = desc
		b.allocations++
	}
	b.mu.Unlock()
	*bits = dirty.Clean
}

// Finalize is a no-op.
func (b *RenderBuffer) Finalize(hd.RenderParam) {}
