package hdx

import "errors"

// ErrBadParam is returned by Sync when a task parameter has the wrong type.
var ErrBadParam = errors.New("hdx: bad task parameter")
