package hd

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// RenderPassBackend is the backend part of a render pass.
type RenderPassBackend interface {
	// SyncPass runs after the pass has enqueued its dirty prims.
	SyncPass(ctx context.Context, pass *RenderPass) error
	// Prepare may allocate or resize resources; it issues no draw.
	Prepare(ctx context.Context, pass *RenderPass, renderTags []string) error
	// Execute draws the pass. It may run several times per frame.
	Execute(ctx context.Context, pass *RenderPass, state *RenderPassState, renderTags []string) error
}

// RenderPass draws one collection. It owns a dirty list bound to the
// collection, shared with other passes whose collections are equal.
type RenderPass struct {
	index   *RenderIndex
	backend RenderPassBackend
	col     Collection
	list    *DirtyList
}

// NewRenderPass creates a pass for col. A nil backend gives a pass that
// syncs but draws nothing.
func NewRenderPass(index *RenderIndex, col Collection, backend RenderPassBackend) *RenderPass {
	p := &RenderPass{index: index, backend: backend, col: col}
	p.list = index.DirtyListFor(col)
	index.requireReprs(col)
	return p
}

// Index returns the render index.
func (p *RenderPass) Index() *RenderIndex { return p.index }

// Collection returns the collection drawn by the pass.
func (p *RenderPass) Collection() Collection { return p.col }

// DirtyList returns the pass's dirty list.
func (p *RenderPass) DirtyList() *DirtyList { return p.list }

// SetRprimCollection rebinds the pass to col. A change that keeps the
// membership is applied to the dirty list in place when no other pass
// shares it; any other change replaces the dirty list.
func (p *RenderPass) SetRprimCollection(col Collection) {
	if p.col.Equal(col) {
		return
	}
	oldKey := p.col.Hash()
	if p.list.refs.Load() == 1 && p.index.dirtyListShareable(col, p.list) && p.list.ApplyEdit(col) {
		p.index.rekeyDirtyList(oldKey, p.list)
		p.col = col
		return
	}
	p.index.ReleaseDirtyList(p.list)
	p.list = p.index.DirtyListFor(col)
	if !p.col.ReprSelector().Equal(col.ReprSelector()) {
		p.index.requireReprs(col)
	}
	p.col = col
}

// Sync enqueues the pass's dirty prims for the next SyncAll, then runs
// the backend's sync hook.
func (p *RenderPass) Sync(ctx context.Context) error {
	ctx, span := p.index.tracer.Start(ctx, "hd.RenderPass.Sync",
		oteltrace.WithAttributes(attribute.String("collection", p.col.Name())),
	)
	defer span.End()

	p.index.EnqueuePrimsToSync(p.list, p.col)
	if p.backend == nil {
		return nil
	}
	if err := p.backend.SyncPass(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Prepare runs the backend's prepare step.
func (p *RenderPass) Prepare(ctx context.Context, renderTags []string) error {
	if p.backend == nil {
		return nil
	}
	ctx, span := p.index.tracer.Start(ctx, "hd.RenderPass.Prepare",
		oteltrace.WithAttributes(attribute.String("collection", p.col.Name())),
	)
	defer span.End()
	if err := p.backend.Prepare(ctx, p, renderTags); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Execute draws the pass with state, restricted to renderTags.
func (p *RenderPass) Execute(ctx context.Context, state *RenderPassState, renderTags []string) error {
	if p.backend == nil {
		return nil
	}
	ctx, span := p.index.tracer.Start(ctx, "hd.RenderPass.Execute",
		oteltrace.WithAttributes(
			attribute.String("collection", p.col.Name()),
			attribute.StringSlice("renderTags", renderTags),
		),
	)
	defer span.End()
	if err := p.backend.Execute(ctx, p, state, renderTags); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close releases the pass's dirty list.
func (p *RenderPass) Close() {
	if p.list != nil {
		p.index.ReleaseDirtyList(p.list)
		p.list = nil
	}
}
