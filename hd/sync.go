package hd

import (
	"context"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/sdfpath"
)

// syncItem is one rprim of the frame's sync set.
type syncItem struct {
	id    sdfpath.Path
	info  *PrimInfo
	reprs []string
}

// SyncAll synchronizes every primitive the tasks need this frame:
//
//  1. Sync each task with its tracked bits; render tasks enqueue the
//     dirty prims of their passes.
//  2. Sync dirty sprims, then dirty bprims.
//  3. Union the enqueued dirty lists into the sync set, in path order,
//     dropping synced prims whose render tag no task draws.
//  4. Sync dirty instancers used by the sync set.
//  5. Sync every rprim of the set on the worker pool.
//  6. Apply removals requested during step 5.
//  7. Drop cleaned ids from the enqueued dirty lists.
//
// Step 5 is a barrier: every rprim Sync has returned when SyncAll
// returns. A failing or panicking prim is reported through Diagnostics
// and left dirty; it never stops the other prims. Scene changes must not
// be issued concurrently with SyncAll.
func (ri *RenderIndex) SyncAll(ctx context.Context, tasks []Task, tc *TaskContext) error {
	if err := ri.checkOpen(ctx); err != nil {
		return err
	}
	ctx, span := ri.tracer.Start(ctx, "hd.RenderIndex.SyncAll",
		oteltrace.WithAttributes(attribute.Int("tasks", len(tasks))),
	)
	defer span.End()

	timer := prometheus.NewTimer(ri.metrics.syncDuration)
	defer timer.ObserveDuration()

	scope := ri.collector.Begin("SyncAll")
	defer scope.End()

	if tc == nil {
		tc = NewTaskContext(ctx, ri)
	}

	ri.syncTasks(tc, tasks)

	if err := ri.syncSprimsAndBprims(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	reqs := ri.takeQueue()
	items := ri.buildSyncSet(reqs, renderTagUnion(tasks))
	span.SetAttributes(attribute.Int("syncSet", len(items)))

	if err := ri.syncInstancers(ctx, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ri.syncRprims(ctx, items)

	for _, id := range ri.takeRemovals() {
		if err := ri.removeRprim(id); err != nil {
			ri.log.Debug("hd: queued removal of unknown rprim", "id", id.String())
		}
	}
	for _, r := range reqs {
		r.list.Clean()
	}
	ri.tracker.ResetVaryingState()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context cancelled")
		return err
	}
	return nil
}

func (ri *RenderIndex) syncTasks(tc *TaskContext, tasks []Task) {
	scope := ri.collector.Begin("SyncTasks")
	defer scope.End()

	for _, task := range tasks {
		id := task.ID()
		bits, _ := ri.tracker.Tasks().Lookup(id)
		func() {
			defer ri.recoverSync(id, "task sync")
			if err := task.Sync(tc, ri.taskDelegate(id), &bits); err != nil {
				ri.diag.CodingError(id, "task sync failed", "err", err)
				return
			}
			ri.tracker.Tasks().Set(id, bits)
		}()
	}
}

func (ri *RenderIndex) syncSprimsAndBprims(ctx context.Context) error {
	scope := ri.collector.Begin("SyncSprims")
	defer scope.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ri.pool.Workers())
	for _, id := range dirtyIDs(ri.tracker.Sprims().Range) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ri.syncSprim(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(ri.pool.Workers())
	for _, id := range dirtyIDs(ri.tracker.Bprims().Range) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ri.syncBprim(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

func dirtyIDs(rangeFn func(func(sdfpath.Path, dirty.Bits) bool)) []sdfpath.Path {
	var ids []sdfpath.Path
	rangeFn(func(id sdfpath.Path, bits dirty.Bits) bool {
		if bits != dirty.Clean {
			ids = append(ids, id)
		}
		return true
	})
	slices.SortFunc(ids, sdfpath.Compare)
	return ids
}

func (ri *RenderIndex) syncSprim(ctx context.Context, id sdfpath.Path) {
	ri.mu.RLock()
	e, ok := ri.sprims[id]
	ri.mu.RUnlock()
	if !ok {
		return
	}
	defer ri.recoverSync(id, "sprim sync")

	bits := ri.tracker.Sprims().Get(id)
	sc := newSyncContext(ctx, ri, e.delegate, id)
	e.prim.Sync(sc, &bits)
	if err := sc.Err(); err != nil {
		ri.diag.Warning(id, "sprim sync failed, retrying next frame", "err", err)
		return
	}
	ri.tracker.Sprims().Set(id, bits)
	ri.metrics.sprimsSynced.Inc()
}

func (ri *RenderIndex) syncBprim(ctx context.Context, id sdfpath.Path) {
	ri.mu.RLock()
	e, ok := ri.bprims[id]
	ri.mu.RUnlock()
	if !ok {
		return
	}
	defer ri.recoverSync(id, "bprim sync")

	bits := ri.tracker.Bprims().Get(id)
	sc := newSyncContext(ctx, ri, e.delegate, id)
	e.prim.Sync(sc, &bits)
	if err := sc.Err(); err != nil {
		ri.diag.Warning(id, "bprim sync failed, retrying next frame", "err", err)
		return
	}
	ri.tracker.Bprims().Set(id, bits)
	ri.metrics.sprimsSynced.Inc()
}

// renderTagUnion returns the render tags drawn by tasks, nil when some
// task draws every tag.
func renderTagUnion(tasks []Task) map[string]struct{} {
	if len(tasks) == 0 {
		return nil
	}
	tags := make(map[string]struct{})
	for _, t := range tasks {
		tt := t.RenderTags()
		if len(tt) == 0 {
			return nil
		}
		for _, tag := range tt {
			tags[tag] = struct{}{}
		}
	}
	return tags
}

// buildSyncSet unions the enqueued dirty lists. Each id collects the
// reprs of every collection that enqueued it, in enqueue order.
func (ri *RenderIndex) buildSyncSet(reqs []syncRequest, tags map[string]struct{}) []syncItem {
	scope := ri.collector.Begin("BuildSyncSet")
	defer scope.End()

	pos := make(map[sdfpath.Path]int)
	var items []syncItem
	for _, r := range reqs {
		for _, id := range r.ids {
			i, seen := pos[id]
			if !seen {
				info, ok := ri.RprimInfo(id)
				if !ok {
					ri.metrics.rprimsSkipped.WithLabelValues(skipRemoved).Inc()
					continue
				}
				i = len(items)
				pos[id] = i
				items = append(items, syncItem{id: id, info: info})
			}
			if repr := ReprFor(items[i].info.Rprim, r.col.ReprSelector()); repr != "" &&
				!slices.Contains(items[i].reprs, repr) {
				items[i].reprs = append(items[i].reprs, repr)
			}
		}
	}

	if tags != nil {
		items = slices.DeleteFunc(items, func(it syncItem) bool {
			// The tag of a prim that never synced is unknown.
			if !it.info.Synced() {
				return false
			}
			if _, ok := tags[it.info.Rprim.RenderTag()]; ok {
				return false
			}
			ri.metrics.rprimsSkipped.WithLabelValues(skipRenderTag).Inc()
			return true
		})
	}
	slices.SortFunc(items, func(a, b syncItem) int { return sdfpath.Compare(a.id, b.id) })
	return items
}

// syncInstancers syncs the dirty instancers of the sync set, parents
// included.
func (ri *RenderIndex) syncInstancers(ctx context.Context, items []syncItem) error {
	scope := ri.collector.Begin("SyncInstancers")
	defer scope.End()

	seen := make(map[sdfpath.Path]struct{})
	var ids []sdfpath.Path
	for _, it := range items {
		for id, depth := it.info.InstancerID, 0; !id.IsEmpty() && depth < maxInstancerDepth; depth++ {
			if _, ok := seen[id]; ok {
				break
			}
			seen[id] = struct{}{}
			inst, ok := ri.Instancer(id)
			if !ok {
				break
			}
			if ri.tracker.InstancerDirtyBits(id) != dirty.Clean {
				ids = append(ids, id)
			}
			id = inst.ParentID()
		}
	}
	if len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ri.pool.Workers())
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ri.syncInstancer(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

func (ri *RenderIndex) syncInstancer(ctx context.Context, id sdfpath.Path) {
	ri.mu.RLock()
	e, ok := ri.instancers[id]
	ri.mu.RUnlock()
	if !ok {
		return
	}
	defer ri.recoverSync(id, "instancer sync")

	bits := ri.tracker.InstancerDirtyBits(id)
	sc := newSyncContext(ctx, ri, e.delegate, id)
	e.prim.Sync(sc, &bits)
	if err := sc.Err(); err != nil {
		ri.diag.Warning(id, "instancer sync failed, retrying next frame", "err", err)
		return
	}
	ri.tracker.SetInstancerDirtyBits(id, bits)
	ri.metrics.instancersSynced.Inc()
}

func (ri *RenderIndex) syncRprims(ctx context.Context, items []syncItem) {
	scope := ri.collector.Begin("SyncRprims")
	defer scope.End()

	ri.metrics.syncSetSize.Set(float64(len(items)))
	ri.fanout.Store(true)
	defer ri.fanout.Store(false)
	ri.pool.ForEach(len(items), func(i int) {
		ri.syncRprim(ctx, items[i])
	})
}

// syncRprim runs the per-prim protocol on one id of the sync set.
func (ri *RenderIndex) syncRprim(ctx context.Context, it syncItem) {
	if ctx.Err() != nil {
		return
	}
	// The prim may have been removed since the dirty lists were read.
	info, ok := ri.RprimInfo(it.id)
	if !ok || info != it.info {
		ri.metrics.rprimsSkipped.WithLabelValues(skipRemoved).Inc()
		return
	}
	if inst := info.InstancerID; !inst.IsEmpty() {
		if _, ok := ri.Instancer(inst); !ok {
			ri.metrics.rprimsSkipped.WithLabelValues(skipInstancer).Inc()
			ri.log.Debug("hd: rprim waits for its instancer", "id", it.id.String(), "instancer", inst.String())
			return
		}
	}
	defer ri.recoverSync(it.id, "rprim sync")

	rprim := info.Rprim
	pre := ri.tracker.RprimDirtyBits(it.id)
	bits := pre
	if !info.Synced() {
		bits |= rprim.GetInitialDirtyBitsMask()
	}
	for _, repr := range it.reprs {
		rprim.InitRepr(repr, &bits)
	}
	bits &^= dirty.InitRepr
	bits = rprim.PropagateDirtyBits(bits)

	sc := newSyncContext(ctx, ri, info.Delegate, it.id)
	if len(it.reprs) == 0 {
		rprim.Sync(sc, &bits, "")
	}
	for _, repr := range it.reprs {
		rprim.Sync(sc, &bits, repr)
	}

	switch {
	case sc.Err() != nil:
		info.invalid.Store(true)
		ri.tracker.SetRprimDirtyBits(it.id, pre|bits)
		ri.metrics.rprimsSkipped.WithLabelValues(skipDelegate).Inc()
		ri.diag.Warning(it.id, "scene delegate read failed, retrying next frame", "err", sc.Err())
	case sc.Deferred() != nil:
		ri.tracker.SetRprimDirtyBits(it.id, pre|bits)
		ri.metrics.rprimsSkipped.WithLabelValues(skipUnresolved).Inc()
		ri.log.Debug("hd: rprim not resolvable yet", "id", it.id.String(), "reason", sc.Deferred())
	default:
		info.invalid.Store(false)
		info.synced.Store(true)
		ri.tracker.SetRprimDirtyBits(it.id, bits)
		ri.metrics.rprimsSynced.Inc()
	}
}
