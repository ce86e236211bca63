package hd

import (
	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// RenderParam is backend state handed to every Sync and Finalize call.
// The index never inspects it.
type RenderParam any

// Rprim is a renderable primitive.
//
// The render index drives an rprim through
//
//	InitRepr (per needed repr) -> PropagateDirtyBits -> Sync (per repr)
//
// on every frame it is dirty, with one local copy of its dirty bits. Sync
// must resolve what it can and clear the scene bits with
// dirty.Bits.ClearScene; custom bits it leaves set are stored back and
// offered again on the next frame.
//
// Sync is never called concurrently for the same rprim.
type Rprim interface {
	ID() sdfpath.Path
	InstancerID() sdfpath.Path
	MaterialID() sdfpath.Path

	// GetInitialDirtyBitsMask returns the bits treated as dirty the first
	// time the prim is synced.
	GetInitialDirtyBitsMask() dirty.Bits

	// PropagateDirtyBits widens scene bits into the prim's custom bits.
	// It never removes a bit.
	PropagateDirtyBits(bits dirty.Bits) dirty.Bits

	// InitRepr allocates the draw items of repr if they do not exist yet,
	// setting NewRepr and any custom bits the new items need. It is a
	// no-op for an existing repr.
	InitRepr(repr string, bits *dirty.Bits)

	// Sync pulls data for repr from the scene delegate. repr is empty
	// when no collection draws the prim; Sync then updates the shared
	// data only and still clears the scene bits.
	Sync(sc *SyncContext, bits *dirty.Bits, repr string)

	// Finalize releases backend resources when the prim is removed.
	Finalize(param RenderParam)

	DrawItems(repr string) []*DrawItem
	RenderTag() string
	Visible() bool
}

// Sprim is a state primitive such as a material, camera or light.
type Sprim interface {
	ID() sdfpath.Path
	GetInitialDirtyBitsMask() dirty.Bits
	Sync(sc *SyncContext, bits *dirty.Bits)
	Finalize(param RenderParam)
}

// Bprim is a buffer primitive such as a render buffer.
type Bprim interface {
	ID() sdfpath.Path
	GetInitialDirtyBitsMask() dirty.Bits
	Sync(sc *SyncContext, bits *dirty.Bits)
	Finalize(param RenderParam)
}

// Instancer holds instancing data used by one or more rprims.
type Instancer interface {
	ID() sdfpath.Path
	// ParentID returns the instancer this one is nested in, if any.
	ParentID() sdfpath.Path
	GetInitialDirtyBitsMask() dirty.Bits
	Sync(sc *SyncContext, bits *dirty.Bits)
	Finalize(param RenderParam)
	// InstanceIndices returns the instance indices drawing prototypeID,
	// as of the last Sync.
	InstanceIndices(prototypeID sdfpath.Path) []int32
}
