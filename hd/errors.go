package hd

import "errors"

var (
	// ErrInvalidID is returned when inserting a primitive with an empty id.
	ErrInvalidID = errors.New("hd: invalid primitive id")

	// ErrDuplicatePrim is returned when inserting an id that already exists.
	ErrDuplicatePrim = errors.New("hd: primitive already inserted")

	// ErrUnknownPrim is returned when removing or looking up a missing id.
	ErrUnknownPrim = errors.New("hd: unknown primitive")

	// ErrUnsupportedType is returned when the render delegate cannot
	// create a primitive of the requested type.
	ErrUnsupportedType = errors.New("hd: unsupported primitive type")

	// ErrUnknownPlugin is returned when no render delegate factory is
	// registered under the requested name.
	ErrUnknownPlugin = errors.New("hd: unknown renderer plugin")

	// ErrNilDelegate is returned when a nil render delegate is supplied.
	ErrNilDelegate = errors.New("hd: nil render delegate")

	// ErrMissingInstancer marks an rprim whose instancer is not in the index.
	ErrMissingInstancer = errors.New("hd: instancer not found")

	// ErrMissingMaterial marks an rprim whose material is not in the index.
	ErrMissingMaterial = errors.New("hd: material not found")
)
