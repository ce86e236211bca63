package hd

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/hydra/sdfpath"
)

// SyncContext is handed to a primitive's Sync. It carries the scene
// delegate and render param, gives read access to the other primitives
// of the index, and collects the outcome of the call.
//
// A SyncContext is used by one goroutine for one primitive.
type SyncContext struct {
	ctx      context.Context
	index    *RenderIndex
	delegate SceneDelegate
	id       sdfpath.Path

	err      error
	deferred error
}

func newSyncContext(ctx context.Context, index *RenderIndex, delegate SceneDelegate, id sdfpath.Path) *SyncContext {
	return &SyncContext{ctx: ctx, index: index, delegate: delegate, id: id}
}

// Context returns the frame context.
func (sc *SyncContext) Context() context.Context { return sc.ctx }

// ID returns the id of the primitive being synced.
func (sc *SyncContext) ID() sdfpath.Path { return sc.id }

// Delegate returns the scene delegate that owns the primitive.
func (sc *SyncContext) Delegate() SceneDelegate { return sc.delegate }

// RenderParam returns the render delegate's render param.
func (sc *SyncContext) RenderParam() RenderParam {
	return sc.index.renderDelegate.RenderParam()
}

// Index returns the render index.
func (sc *SyncContext) Index() *RenderIndex { return sc.index }

// SafeMode reports whether shared-resource lookups must double-check
// content on hash hits.
func (sc *SyncContext) SafeMode() bool { return sc.index.opts.safeMode }

// ForceRefine reports whether refinement is forced on for every prim.
func (sc *SyncContext) ForceRefine() bool { return sc.index.opts.forceRefine }

// Fail records a scene delegate read error. The primitive is marked
// invalid for the rest of the frame and its dirty bits are kept so the
// read is retried next frame. Only the first error is kept.
func (sc *SyncContext) Fail(err error) {
	if err != nil && sc.err == nil {
		sc.err = fmt.Errorf("hd: sync %s: %w", sc.id, err)
	}
}

// Err returns the error recorded by Fail.
func (sc *SyncContext) Err() error { return sc.err }

// Defer records that the primitive cannot be resolved yet, for example
// because its material is not in the index. The primitive stays dirty
// and is retried next frame.
func (sc *SyncContext) Defer(reason error) {
	if reason != nil {
		sc.deferred = errors.Join(sc.deferred, reason)
	}
}

// Deferred returns the reasons recorded by Defer.
func (sc *SyncContext) Deferred() error { return sc.deferred }

// CodingError reports a contract violation for the primitive. The frame
// continues.
func (sc *SyncContext) CodingError(msg string, args ...any) {
	sc.index.diag.CodingError(sc.id, msg, args...)
}

// Warning reports a benign problem for which a fallback was used.
func (sc *SyncContext) Warning(msg string, args ...any) {
	sc.index.diag.Warning(sc.id, msg, args...)
}

// Sprim returns a state primitive of the index.
func (sc *SyncContext) Sprim(id sdfpath.Path) (Sprim, bool) {
	return sc.index.Sprim(id)
}

// Bprim returns a buffer primitive of the index.
func (sc *SyncContext) Bprim(id sdfpath.Path) (Bprim, bool) {
	return sc.index.Bprim(id)
}

// Instancer returns an instancer of the index.
func (sc *SyncContext) Instancer(id sdfpath.Path) (Instancer, bool) {
	return sc.index.Instancer(id)
}

// QueueRemoval asks the index to remove an rprim once every Sync of the
// frame has returned.
func (sc *SyncContext) QueueRemoval(id sdfpath.Path) {
	sc.index.queueRemoval(id)
}
