package hd

import "github.com/gogpu/hydra/sdfpath"

// SceneDelegate is the pull interface primitives read scene data through.
//
// Every read is synchronous and side-effect free. A nil value with a nil
// error means "no data" and is a legitimate answer. A non-nil error means
// the delegate could not answer for that id this frame; the primitive is
// left dirty and retried on the next frame.
//
// Implementations must be safe for concurrent reads of distinct ids.
type SceneDelegate interface {
	// ID returns the delegate's root path.
	ID() sdfpath.Path

	// Get returns the value of a named attribute or primvar.
	Get(id sdfpath.Path, key string) (any, error)

	MeshTopology(id sdfpath.Path) (MeshTopology, error)
	BasisCurvesTopology(id sdfpath.Path) (BasisCurvesTopology, error)

	Extent(id sdfpath.Path) (Range3, error)
	Transform(id sdfpath.Path) (Matrix, error)
	Visible(id sdfpath.Path) (bool, error)
	DoubleSided(id sdfpath.Path) (bool, error)
	CullStyle(id sdfpath.Path) (CullStyle, error)
	DisplayStyle(id sdfpath.Path) (DisplayStyle, error)
	RenderTag(id sdfpath.Path) (string, error)
	MaterialID(id sdfpath.Path) (sdfpath.Path, error)

	PrimvarDescriptors(id sdfpath.Path, interp Interpolation) ([]PrimvarDescriptor, error)
	ExtComputationPrimvarDescriptors(id sdfpath.Path, interp Interpolation) ([]ExtComputationPrimvarDescriptor, error)

	// InstanceIndices returns, for an instancer, the instance indices that
	// draw the given prototype.
	InstanceIndices(instancerID, prototypeID sdfpath.Path) ([]int32, error)

	// InstancerTransform returns the transform applied to every instance.
	InstancerTransform(instancerID sdfpath.Path) (Matrix, error)
}
