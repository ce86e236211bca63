package dirty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	assert.Equal(t, Bits(0x00ffffff), AllSceneDirtyBits)
	assert.Equal(t, Bits(0xff000000), CustomBitsMask)
	assert.Equal(t, Bits(0xfffffffd), AllDirty)
	assert.NotZero(t, AllSceneDirtyBits&NewRepr, "NewRepr is a scene bit")
	assert.Zero(t, AllSceneDirtyBits&CustomBitsBegin)
	assert.Zero(t, AllDirty&Varying)
}

func TestClearScenePreservesCustomBits(t *testing.T) {
	var alloc CustomAllocator
	indices := alloc.Next("indices")
	hull := alloc.Next("hullIndices")

	b := DirtyPoints | DirtyTopology | DirtyTransform | NewRepr | indices | hull
	cleared := b.ClearScene()

	assert.Equal(t, indices|hull, cleared)
	assert.Zero(t, cleared.Scene())
	assert.Equal(t, b.Custom(), cleared.Custom())
}

func TestClearSceneAllBitsAboveBoundary(t *testing.T) {
	for i := 0; i < 32; i++ {
		b := Bits(1) << i
		got := b.ClearScene()
		if b >= CustomBitsBegin {
			assert.Equal(t, b, got, "bit %d", i)
		} else {
			assert.Equal(t, Clean, got, "bit %d", i)
		}
	}
}

func TestIsDirty(t *testing.T) {
	assert.False(t, Clean.IsDirty())
	assert.False(t, Varying.IsDirty())
	assert.True(t, (Varying | DirtyPoints).IsDirty())
	assert.True(t, CustomBitsBegin.IsDirty())
	assert.True(t, Clean.IsClean())
}

func TestPrimvarHelpers(t *testing.T) {
	assert.True(t, DirtyPoints.IsPrimvarDirty("points"))
	assert.False(t, DirtyPoints.IsPrimvarDirty("displayColor"))
	assert.True(t, DirtyPrimvar.IsPrimvarDirty("displayColor"))
	assert.True(t, DirtyPrimvar.IsPrimvarDirty("normals"))
	assert.True(t, DirtyWidths.IsPrimvarDirty("widths"))
	assert.True(t, DirtyNormals.IsAnyPrimvarDirty())
	assert.False(t, DirtyTransform.IsAnyPrimvarDirty())
}

func TestString(t *testing.T) {
	assert.Equal(t, "Clean", Clean.String())
	assert.Equal(t, "Points|Transform", (DirtyPoints | DirtyTransform).String())
	assert.Equal(t, "InitRepr|NewRepr|Custom(0x1000000)", (InitRepr | NewRepr | CustomBitsBegin).String())
}

func TestCustomAllocator(t *testing.T) {
	var alloc CustomAllocator
	a := alloc.Next("a")
	b := alloc.Next("b")

	assert.Equal(t, CustomBitsBegin, a)
	assert.Equal(t, CustomBitsBegin<<1, b)
	assert.Equal(t, a|b, alloc.Allocated())
	assert.Equal(t, "b", alloc.Name(b))
	assert.Empty(t, alloc.Name(CustomBitsBegin<<5))
	assert.Equal(t, "Points|a|b", alloc.Describe(DirtyPoints|a|b))
	assert.Equal(t, "Clean", alloc.Describe(Clean))
}

func TestCustomAllocatorExhaustion(t *testing.T) {
	var alloc CustomAllocator
	var last Bits
	for i := 0; i < 8; i++ {
		last = alloc.Next("bit")
	}
	require.Equal(t, CustomBitsEnd, last)
	assert.Equal(t, CustomBitsMask, alloc.Allocated())
	assert.Panics(t, func() { alloc.Next("overflow") })
}
