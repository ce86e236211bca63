// Package dirty defines the dirty-bit vocabulary shared by the change
// tracker, the render index and every primitive backend.
//
// Bits below CustomBitsBegin have a fixed, globally agreed meaning ("scene
// bits"). Bits from CustomBitsBegin up to CustomBitsEnd are private to a
// backend primitive type, which allocates them with a CustomAllocator and
// interprets them itself.
package dirty

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bits is a primitive's dirty state.
type Bits uint32

// Rprim scene bits.
const (
	Clean    Bits = 0
	InitRepr Bits = 1 << 0
	Varying  Bits = 1 << 1

	DirtyPrimID                 Bits = 1 << 2
	DirtyExtent                 Bits = 1 << 3
	DirtyDisplayStyle           Bits = 1 << 4
	DirtyPoints                 Bits = 1 << 5
	DirtyPrimvar                Bits = 1 << 6
	DirtyMaterialID             Bits = 1 << 7
	DirtyTopology               Bits = 1 << 8
	DirtyTransform              Bits = 1 << 9
	DirtyVisibility             Bits = 1 << 10
	DirtyNormals                Bits = 1 << 11
	DirtyDoubleSided            Bits = 1 << 12
	DirtyCullStyle              Bits = 1 << 13
	DirtySubdivTags             Bits = 1 << 14
	DirtyWidths                 Bits = 1 << 15
	DirtyInstancer              Bits = 1 << 16
	DirtyInstanceIndex          Bits = 1 << 17
	DirtyRepr                   Bits = 1 << 18
	DirtyRenderTag              Bits = 1 << 19
	DirtyComputationPrimvarDesc Bits = 1 << 20
	DirtyCategories             Bits = 1 << 21
	DirtyVolumeField            Bits = 1 << 22
	NewRepr                     Bits = 1 << 23

	// AllSceneDirtyBits is the union of every bit with a fixed meaning.
	AllSceneDirtyBits Bits = CustomBitsBegin - 1

	// AllDirty is every bit except the Varying marker.
	AllDirty Bits = ^Varying

	CustomBitsBegin Bits = 1 << 24
	CustomBitsEnd   Bits = 1 << 31

	// CustomBitsMask covers every allocatable custom bit.
	CustomBitsMask Bits = (CustomBitsEnd | (CustomBitsEnd - 1)) &^ AllSceneDirtyBits
)

// Instancer bits.
const (
	InstancerDirtyTransform     Bits = DirtyTransform
	InstancerDirtyPrimvar       Bits = DirtyPrimvar
	InstancerDirtyInstanceIndex Bits = DirtyInstanceIndex
	InstancerDirtyInstancer     Bits = DirtyInstancer
	InstancerAllDirty           Bits = InstancerDirtyTransform | InstancerDirtyPrimvar |
		InstancerDirtyInstanceIndex | InstancerDirtyInstancer
)

// Sprim bits (materials, cameras, lights).
const (
	SprimDirtyParams    Bits = 1 << 0
	SprimDirtyResource  Bits = 1 << 1
	SprimDirtyTransform Bits = 1 << 2
	SprimAllDirty       Bits = SprimDirtyParams | SprimDirtyResource | SprimDirtyTransform
)

// Bprim bits (render buffers).
const (
	BprimDirtyDescription Bits = 1 << 0
	BprimAllDirty         Bits = BprimDirtyDescription
)

// Task bits.
const (
	TaskDirtyParams     Bits = 1 << 0
	TaskDirtyCollection Bits = 1 << 1
	TaskDirtyRenderTags Bits = 1 << 2
	TaskAllDirty        Bits = TaskDirtyParams | TaskDirtyCollection | TaskDirtyRenderTags
)

// IsClean reports whether no bit is set.
func (b Bits) IsClean() bool { return b == Clean }

// IsDirty reports whether any bit other than the Varying marker is set.
func (b Bits) IsDirty() bool { return b&AllDirty != 0 }

// Has reports whether any bit of mask is set.
func (b Bits) Has(mask Bits) bool { return b&mask != 0 }

// ClearScene clears every scene bit and keeps the custom bits.
//
// This is the only way primitives retire scene bits at the end of Sync,
// so that one backend can never clear another backend's private bits.
func (b Bits) ClearScene() Bits { return b &^ AllSceneDirtyBits }

// Scene returns only the scene bits.
func (b Bits) Scene() Bits { return b & AllSceneDirtyBits }

// Custom returns only the custom bits.
func (b Bits) Custom() Bits { return b & CustomBitsMask }

// IsTopologyDirty reports whether topology needs to be pulled again.
func (b Bits) IsTopologyDirty() bool { return b&DirtyTopology != 0 }

// IsTransformDirty reports whether the transform needs to be pulled again.
func (b Bits) IsTransformDirty() bool { return b&DirtyTransform != 0 }

// IsVisibilityDirty reports whether visibility needs to be pulled again.
func (b Bits) IsVisibilityDirty() bool { return b&DirtyVisibility != 0 }

// IsExtentDirty reports whether the extent needs to be pulled again.
func (b Bits) IsExtentDirty() bool { return b&DirtyExtent != 0 }

// IsDisplayStyleDirty reports whether the display style changed.
func (b Bits) IsDisplayStyleDirty() bool { return b&DirtyDisplayStyle != 0 }

// IsInstancerDirty reports whether the instancer binding changed.
func (b Bits) IsInstancerDirty() bool { return b&DirtyInstancer != 0 }

// IsInstanceIndexDirty reports whether instance indices changed.
func (b Bits) IsInstanceIndexDirty() bool { return b&DirtyInstanceIndex != 0 }

// IsPrimIDDirty reports whether the prim id changed.
func (b Bits) IsPrimIDDirty() bool { return b&DirtyPrimID != 0 }

// IsAnyPrimvarDirty reports whether any primvar, including the builtin
// points, normals and widths, needs to be pulled again.
func (b Bits) IsAnyPrimvarDirty() bool {
	return b&(DirtyPoints|DirtyNormals|DirtyWidths|DirtyPrimvar|DirtyComputationPrimvarDesc) != 0
}

// IsPrimvarDirty reports whether the named primvar needs to be pulled
// again. The builtin names map to their dedicated bits; every other name
// is covered by DirtyPrimvar.
func (b Bits) IsPrimvarDirty(name string) bool {
	switch name {
	case "points":
		return b&(DirtyPoints|DirtyPrimvar) != 0
	case "normals":
		return b&(DirtyNormals|DirtyPrimvar) != 0
	case "widths":
		return b&(DirtyWidths|DirtyPrimvar) != 0
	}
	return b&DirtyPrimvar != 0
}

var sceneBitNames = [...]string{
	"InitRepr", "Varying", "PrimID", "Extent", "DisplayStyle", "Points",
	"Primvar", "MaterialId", "Topology", "Transform", "Visibility", "Normals",
	"DoubleSided", "CullStyle", "SubdivTags", "Widths", "Instancer",
	"InstanceIndex", "Repr", "RenderTag", "ComputationPrimvarDesc",
	"Categories", "VolumeField", "NewRepr",
}

// String lists the set rprim bits, e.g. "Points|Transform|Custom(0x1000000)".
func (b Bits) String() string {
	if b == Clean {
		return "Clean"
	}
	var parts []string
	scene := b.Scene()
	for scene != 0 {
		i := bits.TrailingZeros32(uint32(scene))
		parts = append(parts, sceneBitNames[i])
		scene &^= 1 << i
	}
	if c := b.Custom(); c != 0 {
		parts = append(parts, fmt.Sprintf("Custom(%#x)", uint32(c)))
	}
	return strings.Join(parts, "|")
}
