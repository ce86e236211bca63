package hd

import (
	"fmt"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// RprimBase implements the bookkeeping shared by every rprim. Backends
// embed it and supply the type-specific parts of the Rprim contract.
type RprimBase struct {
	id          sdfpath.Path
	instancerID sdfpath.Path
	materialID  sdfpath.Path
	renderTag   string
	reprs       []Repr
	shared      RprimSharedData
}

// NewRprimBase returns the base for an rprim with the given ids.
func NewRprimBase(id, instancerID sdfpath.Path) RprimBase {
	return RprimBase{
		id:          id,
		instancerID: instancerID,
		renderTag:   RenderTagGeometry,
		shared: RprimSharedData{
			RprimID:      id,
			Transform:    Identity(),
			Visible:      true,
			BufferArrays: make(map[string]BufferArrayRange),
		},
	}
}

// ID returns the prim id.
func (b *RprimBase) ID() sdfpath.Path { return b.id }

// InstancerID returns the instancer the prim draws through, if any.
func (b *RprimBase) InstancerID() sdfpath.Path { return b.instancerID }

// MaterialID returns the bound material as of the last sync.
func (b *RprimBase) MaterialID() sdfpath.Path { return b.materialID }

// RenderTag returns the render tag as of the last sync.
func (b *RprimBase) RenderTag() string { return b.renderTag }

// Visible reports the visibility as of the last sync.
func (b *RprimBase) Visible() bool { return b.shared.Visible }

// SharedData returns the data shared by the prim's draw items.
func (b *RprimBase) SharedData() *RprimSharedData { return &b.shared }

// Finalize is a no-op; backends override it to release resources.
func (b *RprimBase) Finalize(RenderParam) {}

// HasRepr reports whether draw items exist for repr.
func (b *RprimBase) HasRepr(repr string) bool {
	return b.findRepr(repr) != nil
}

// AddRepr records the draw items of a new representation. Adding an
// existing repr replaces its items.
func (b *RprimBase) AddRepr(repr string, items []*DrawItem) *Repr {
	if r := b.findRepr(repr); r != nil {
		r.Items = items
		return r
	}
	b.reprs = append(b.reprs, Repr{Name: repr, Items: items})
	return &b.reprs[len(b.reprs)-1]
}

// Repr returns the representation named repr, or nil.
func (b *RprimBase) Repr(repr string) *Repr { return b.findRepr(repr) }

// ReprNames returns the allocated representations in creation order.
func (b *RprimBase) ReprNames() []string {
	names := make([]string, len(b.reprs))
	for i := range b.reprs {
		names[i] = b.reprs[i].Name
	}
	return names
}

// DrawItems returns the draw items of repr, or nil.
func (b *RprimBase) DrawItems(repr string) []*DrawItem {
	if r := b.findRepr(repr); r != nil {
		return r.Items
	}
	return nil
}

func (b *RprimBase) findRepr(repr string) *Repr {
	for i := range b.reprs {
		if b.reprs[i].Name == repr {
			return &b.reprs[i]
		}
	}
	return nil
}

// UpdateVisibility pulls visibility when DirtyVisibility is set.
func (b *RprimBase) UpdateVisibility(sc *SyncContext, bits dirty.Bits) {
	if !bits.IsVisibilityDirty() {
		return
	}
	v, err := sc.Delegate().Visible(b.id)
	if err != nil {
		sc.Fail(err)
		return
	}
	b.shared.Visible = v
}

// UpdateRenderTag pulls the render tag when DirtyRenderTag is set. An
// empty tag falls back to RenderTagGeometry.
func (b *RprimBase) UpdateRenderTag(sc *SyncContext, bits dirty.Bits) {
	if bits&dirty.DirtyRenderTag == 0 {
		return
	}
	tag, err := sc.Delegate().RenderTag(b.id)
	if err != nil {
		sc.Fail(err)
		return
	}
	if tag == "" {
		tag = RenderTagGeometry
	}
	b.renderTag = tag
}

// UpdateMaterialID pulls the material binding when DirtyMaterialID is
// set. A binding to a material missing from the index is deferred.
func (b *RprimBase) UpdateMaterialID(sc *SyncContext, bits dirty.Bits) {
	if bits&dirty.DirtyMaterialID == 0 {
		return
	}
	id, err := sc.Delegate().MaterialID(b.id)
	if err != nil {
		sc.Fail(err)
		return
	}
	b.materialID = id
	if id.IsEmpty() {
		return
	}
	if _, ok := sc.Sprim(id); !ok {
		sc.Defer(fmt.Errorf("%w: %s", ErrMissingMaterial, id))
	}
}

// UpdateTransform pulls the transform when DirtyTransform is set.
func (b *RprimBase) UpdateTransform(sc *SyncContext, bits dirty.Bits) {
	if !bits.IsTransformDirty() {
		return
	}
	m, err := sc.Delegate().Transform(b.id)
	if err != nil {
		sc.Fail(err)
		return
	}
	b.shared.Transform = m
}

// UpdateExtent pulls the bounds when DirtyExtent is set.
func (b *RprimBase) UpdateExtent(sc *SyncContext, bits dirty.Bits) {
	if !bits.IsExtentDirty() {
		return
	}
	r, err := sc.Delegate().Extent(b.id)
	if err != nil {
		sc.Fail(err)
		return
	}
	b.shared.Bounds = r
}

const maxInstancerDepth = 64

// UpdateInstancer resolves the instancer chain when the instancer or its
// indices changed. A missing instancer defers the prim.
func (b *RprimBase) UpdateInstancer(sc *SyncContext, bits dirty.Bits) {
	if b.instancerID.IsEmpty() || bits&(dirty.DirtyInstancer|dirty.DirtyInstanceIndex) == 0 {
		return
	}
	levels := 0
	for id := b.instancerID; !id.IsEmpty(); levels++ {
		if levels == maxInstancerDepth {
			sc.CodingError("instancer nesting too deep, cycle?", "instancer", b.instancerID)
			return
		}
		inst, ok := sc.Instancer(id)
		if !ok {
			sc.Defer(fmt.Errorf("%w: %s", ErrMissingInstancer, id))
			return
		}
		id = inst.ParentID()
	}
	b.shared.InstancerLevels = levels
}
