package hd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/internal/cache"
	"github.com/gogpu/hydra/internal/parallel"
	"github.com/gogpu/hydra/sdfpath"
	"github.com/gogpu/hydra/trace"
	"github.com/gogpu/hydra/tracker"
)

const tracerName = "github.com/gogpu/hydra/hd"

// PrimInfo is the index's record of one rprim.
type PrimInfo struct {
	ID          sdfpath.Path
	TypeID      string
	Rprim       Rprim
	Delegate    SceneDelegate
	InstancerID sdfpath.Path

	synced  atomic.Bool
	invalid atomic.Bool
}

// Synced reports whether the prim has completed its first sync.
func (p *PrimInfo) Synced() bool { return p.synced.Load() }

// Invalid reports whether the last sync of the prim failed on a scene
// delegate read.
func (p *PrimInfo) Invalid() bool { return p.invalid.Load() }

type sprimEntry struct {
	typeID   string
	prim     Sprim
	delegate SceneDelegate
}

type bprimEntry struct {
	typeID   string
	prim     Bprim
	delegate SceneDelegate
}

type instancerEntry struct {
	prim     Instancer
	delegate SceneDelegate
}

type taskEntry struct {
	task     Task
	delegate SceneDelegate
}

// syncRequest is one dirty list enqueued by a render pass for the
// current frame.
type syncRequest struct {
	list *DirtyList
	col  Collection
	ids  []sdfpath.Path
}

// RenderIndex owns the primitives of a scene, their change tracker and
// the per-frame synchronization of dirty primitives into a render
// delegate.
//
// Insert and remove calls are safe for concurrent use. A removal issued
// while rprims are being synced is queued and applied once every Sync of
// the frame has returned.
type RenderIndex struct {
	opts           indexOptions
	log            *slog.Logger
	renderDelegate RenderDelegate
	tracker        *tracker.Tracker
	diag           *Diagnostics
	metrics        *Metrics
	pool           *parallel.WorkerPool
	tracer         oteltrace.Tracer
	collector      *trace.Collector

	mu          sync.RWMutex
	rprims      map[sdfpath.Path]*PrimInfo
	rprimIDs    *sdfpath.SortedIDs
	sprims      map[sdfpath.Path]*sprimEntry
	sprimIDs    *sdfpath.SortedIDs
	bprims      map[sdfpath.Path]*bprimEntry
	bprimIDs    *sdfpath.SortedIDs
	instancers  map[sdfpath.Path]*instancerEntry
	instancerID *sdfpath.SortedIDs
	tasks       map[sdfpath.Path]*taskEntry

	dirtyLists *cache.Sharded[uint64, *DirtyList]

	queueMu   sync.Mutex
	syncQueue []syncRequest
	removals  []sdfpath.Path
	fanout    atomic.Bool

	closed atomic.Bool
}

// NewRenderIndex creates an index bound to a render delegate.
func NewRenderIndex(rd RenderDelegate, opts ...Option) (*RenderIndex, error) {
	if rd == nil {
		return nil, ErrNilDelegate
	}
	o := defaultIndexOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log()
	metrics := newMetrics(o.registry)

	ri := &RenderIndex{
		opts:           o,
		log:            log,
		renderDelegate: rd,
		tracker:        tracker.New(tracker.WithLogger(log)),
		diag:           newDiagnostics(log, metrics, o.diagnosticsCapacity),
		metrics:        metrics,
		tracer:         otel.Tracer(tracerName),
		collector:      o.collector,
		rprims:         make(map[sdfpath.Path]*PrimInfo),
		rprimIDs:       sdfpath.NewSortedIDs(),
		sprims:         make(map[sdfpath.Path]*sprimEntry),
		sprimIDs:       sdfpath.NewSortedIDs(),
		bprims:         make(map[sdfpath.Path]*bprimEntry),
		bprimIDs:       sdfpath.NewSortedIDs(),
		instancers:     make(map[sdfpath.Path]*instancerEntry),
		instancerID:    sdfpath.NewSortedIDs(),
		tasks:          make(map[sdfpath.Path]*taskEntry),
	}
	ri.dirtyLists = cache.NewSharded[uint64, *DirtyList](o.dirtyListCacheSize, cache.Uint64Hasher)

	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ri.pool = parallel.NewWorkerPool(workers, func(recovered any, stack []byte) {
		ri.diag.CodingError(sdfpath.Path{}, "panic in sync worker", "panic", recovered, "stack", string(stack))
	})

	if mr, ok := rd.(MetricsRegistrar); ok {
		mr.RegisterMetrics(metrics)
	}
	log.Info("hd: render index created", "workers", workers, "safeMode", o.safeMode, "forceRefine", o.forceRefine)
	return ri, nil
}

// ChangeTracker returns the index's change tracker.
func (ri *RenderIndex) ChangeTracker() *tracker.Tracker { return ri.tracker }

// RenderDelegate returns the render delegate.
func (ri *RenderIndex) RenderDelegate() RenderDelegate { return ri.renderDelegate }

// ResourceRegistry returns the render delegate's resource registry.
func (ri *RenderIndex) ResourceRegistry() ResourceRegistry {
	return ri.renderDelegate.ResourceRegistry()
}

// Diagnostics returns the index's diagnostic reports.
func (ri *RenderIndex) Diagnostics() *Diagnostics { return ri.diag }

// Metrics returns the index's performance counters.
func (ri *RenderIndex) Metrics() *Metrics { return ri.metrics }

// Logger returns the index logger.
func (ri *RenderIndex) Logger() *slog.Logger { return ri.log }

// ---------------------------------------------------------------------------
// Rprims
// ---------------------------------------------------------------------------

// InsertRprim creates an rprim of typeID through the render delegate and
// starts tracking it with its initial dirty bits.
func (ri *RenderIndex) InsertRprim(typeID string, sd SceneDelegate, id, instancerID sdfpath.Path) error {
	if id.IsEmpty() {
		return ErrInvalidID
	}
	if sd == nil {
		return fmt.Errorf("hd: insert %s: nil scene delegate", id)
	}
	ri.mu.RLock()
	_, exists := ri.rprims[id]
	ri.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}

	prim, err := ri.renderDelegate.CreateRprim(typeID, id, instancerID)
	if err != nil {
		return fmt.Errorf("hd: create rprim %s of type %q: %w", id, typeID, err)
	}
	if prim == nil {
		return fmt.Errorf("%w: rprim %q", ErrUnsupportedType, typeID)
	}

	info := &PrimInfo{ID: id, TypeID: typeID, Rprim: prim, Delegate: sd, InstancerID: instancerID}
	ri.mu.Lock()
	if _, exists := ri.rprims[id]; exists {
		ri.mu.Unlock()
		prim.Finalize(ri.renderDelegate.RenderParam())
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}
	ri.rprims[id] = info
	ri.rprimIDs.Insert(id)
	ri.mu.Unlock()

	ri.tracker.RprimInserted(id, prim.GetInitialDirtyBitsMask())
	if !instancerID.IsEmpty() {
		ri.tracker.AddInstancerDependency(instancerID, id)
	}
	ri.log.Debug("hd: rprim inserted", "id", id.String(), "type", typeID)
	return nil
}

// RemoveRprim removes an rprim and its change-tracker entry. Removals
// requested while rprims are being synced take effect after the sync
// barrier.
func (ri *RenderIndex) RemoveRprim(id sdfpath.Path) error {
	if ri.fanout.Load() {
		ri.queueRemoval(id)
		return nil
	}
	return ri.removeRprim(id)
}

func (ri *RenderIndex) removeRprim(id sdfpath.Path) error {
	ri.mu.Lock()
	info, ok := ri.rprims[id]
	if !ok {
		ri.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPrim, id)
	}
	delete(ri.rprims, id)
	ri.rprimIDs.Remove(id)
	ri.mu.Unlock()

	ri.finalizeRprim(info)
	return nil
}

func (ri *RenderIndex) finalizeRprim(info *PrimInfo) {
	if !info.InstancerID.IsEmpty() {
		ri.tracker.RemoveInstancerDependency(info.InstancerID, info.ID)
	}
	ri.tracker.RprimRemoved(info.ID)
	info.Rprim.Finalize(ri.renderDelegate.RenderParam())
	ri.log.Debug("hd: rprim removed", "id", info.ID.String())
}

func (ri *RenderIndex) queueRemoval(id sdfpath.Path) {
	ri.queueMu.Lock()
	ri.removals = append(ri.removals, id)
	ri.queueMu.Unlock()
}

// Rprim returns the rprim with the given id.
func (ri *RenderIndex) Rprim(id sdfpath.Path) (Rprim, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if info, ok := ri.rprims[id]; ok {
		return info.Rprim, true
	}
	return nil, false
}

// RprimInfo returns the index record of an rprim.
func (ri *RenderIndex) RprimInfo(id sdfpath.Path) (*PrimInfo, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	info, ok := ri.rprims[id]
	return info, ok
}

// HasRprim reports whether id is an rprim of the index.
func (ri *RenderIndex) HasRprim(id sdfpath.Path) bool {
	_, ok := ri.RprimInfo(id)
	return ok
}

// RprimIDs returns the ids of every rprim, in path order.
func (ri *RenderIndex) RprimIDs() []sdfpath.Path {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return append([]sdfpath.Path(nil), ri.rprimIDs.IDs()...)
}

// RprimCount returns the number of rprims.
func (ri *RenderIndex) RprimCount() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.rprims)
}

// ---------------------------------------------------------------------------
// Sprims and bprims
// ---------------------------------------------------------------------------

// InsertSprim creates a state primitive through the render delegate.
func (ri *RenderIndex) InsertSprim(typeID string, sd SceneDelegate, id sdfpath.Path) error {
	if id.IsEmpty() {
		return ErrInvalidID
	}
	prim, err := ri.renderDelegate.CreateSprim(typeID, id)
	if err != nil {
		return fmt.Errorf("hd: create sprim %s of type %q: %w", id, typeID, err)
	}
	if prim == nil {
		return fmt.Errorf("%w: sprim %q", ErrUnsupportedType, typeID)
	}
	ri.mu.Lock()
	if _, exists := ri.sprims[id]; exists {
		ri.mu.Unlock()
		prim.Finalize(ri.renderDelegate.RenderParam())
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}
	ri.sprims[id] = &sprimEntry{typeID: typeID, prim: prim, delegate: sd}
	ri.sprimIDs.Insert(id)
	ri.mu.Unlock()

	ri.tracker.Sprims().Insert(id, prim.GetInitialDirtyBitsMask())
	return nil
}

// RemoveSprim removes a state primitive. Removing a material marks every
// rprim bound to it DirtyMaterialID.
func (ri *RenderIndex) RemoveSprim(id sdfpath.Path) error {
	ri.mu.Lock()
	e, ok := ri.sprims[id]
	if !ok {
		ri.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPrim, id)
	}
	delete(ri.sprims, id)
	ri.sprimIDs.Remove(id)
	var bound []sdfpath.Path
	if e.typeID == TypeMaterial {
		for rid, info := range ri.rprims {
			if info.Rprim.MaterialID() == id {
				bound = append(bound, rid)
			}
		}
	}
	ri.mu.Unlock()

	ri.tracker.Sprims().Remove(id)
	for _, rid := range bound {
		ri.tracker.MarkRprimDirty(rid, dirty.DirtyMaterialID)
	}
	e.prim.Finalize(ri.renderDelegate.RenderParam())
	return nil
}

// Sprim returns the state primitive with the given id.
func (ri *RenderIndex) Sprim(id sdfpath.Path) (Sprim, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.sprims[id]; ok {
		return e.prim, true
	}
	return nil, false
}

// SprimType returns the type of a state primitive.
func (ri *RenderIndex) SprimType(id sdfpath.Path) (string, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.sprims[id]; ok {
		return e.typeID, true
	}
	return "", false
}

// InsertBprim creates a buffer primitive through the render delegate.
func (ri *RenderIndex) InsertBprim(typeID string, sd SceneDelegate, id sdfpath.Path) error {
	if id.IsEmpty() {
		return ErrInvalidID
	}
	prim, err := ri.renderDelegate.CreateBprim(typeID, id)
	if err != nil {
		return fmt.Errorf("hd: create bprim %s of type %q: %w", id, typeID, err)
	}
	if prim == nil {
		return fmt.Errorf("%w: bprim %q", ErrUnsupportedType, typeID)
	}
	ri.mu.Lock()
	if _, exists := ri.bprims[id]; exists {
		ri.mu.Unlock()
		prim.Finalize(ri.renderDelegate.RenderParam())
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}
	ri.bprims[id] = &bprimEntry{typeID: typeID, prim: prim, delegate: sd}
	ri.bprimIDs.Insert(id)
	ri.mu.Unlock()

	ri.tracker.Bprims().Insert(id, prim.GetInitialDirtyBitsMask())
	return nil
}

// RemoveBprim removes a buffer primitive.
func (ri *RenderIndex) RemoveBprim(id sdfpath.Path) error {
	ri.mu.Lock()
	e, ok := ri.bprims[id]
	if !ok {
		ri.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPrim, id)
	}
	delete(ri.bprims, id)
	ri.bprimIDs.Remove(id)
	ri.mu.Unlock()

	ri.tracker.Bprims().Remove(id)
	e.prim.Finalize(ri.renderDelegate.RenderParam())
	return nil
}

// Bprim returns the buffer primitive with the given id.
func (ri *RenderIndex) Bprim(id sdfpath.Path) (Bprim, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.bprims[id]; ok {
		return e.prim, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Instancers
// ---------------------------------------------------------------------------

// InsertInstancer creates an instancer through the render delegate.
// parentID names the instancer this one is nested in, if any.
func (ri *RenderIndex) InsertInstancer(sd SceneDelegate, id, parentID sdfpath.Path) error {
	if id.IsEmpty() {
		return ErrInvalidID
	}
	prim, err := ri.renderDelegate.CreateInstancer(sd, id, parentID)
	if err != nil {
		return fmt.Errorf("hd: create instancer %s: %w", id, err)
	}
	ri.mu.Lock()
	if _, exists := ri.instancers[id]; exists {
		ri.mu.Unlock()
		prim.Finalize(ri.renderDelegate.RenderParam())
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}
	ri.instancers[id] = &instancerEntry{prim: prim, delegate: sd}
	ri.instancerID.Insert(id)
	ri.mu.Unlock()

	ri.tracker.InstancerInserted(id, prim.GetInitialDirtyBitsMask())
	// Prims deferred on this instancer pick it up on their next sync.
	for _, rid := range ri.tracker.InstancerDependents(id) {
		ri.tracker.MarkRprimDirty(rid, dirty.DirtyInstancer)
	}
	return nil
}

// RemoveInstancer removes an instancer. Rprims drawing through it are
// marked DirtyInstancer and stay dirty until it is inserted again.
func (ri *RenderIndex) RemoveInstancer(id sdfpath.Path) error {
	ri.mu.Lock()
	e, ok := ri.instancers[id]
	if !ok {
		ri.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPrim, id)
	}
	delete(ri.instancers, id)
	ri.instancerID.Remove(id)
	ri.mu.Unlock()

	dependents := ri.tracker.InstancerDependents(id)
	ri.tracker.InstancerRemoved(id)
	for _, rid := range dependents {
		ri.tracker.AddInstancerDependency(id, rid)
		ri.tracker.MarkRprimDirty(rid, dirty.DirtyInstancer)
	}
	e.prim.Finalize(ri.renderDelegate.RenderParam())
	return nil
}

// Instancer returns the instancer with the given id.
func (ri *RenderIndex) Instancer(id sdfpath.Path) (Instancer, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.instancers[id]; ok {
		return e.prim, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// InsertTask adds a task and tracks its dirty bits.
func (ri *RenderIndex) InsertTask(sd SceneDelegate, task Task) error {
	id := task.ID()
	if id.IsEmpty() {
		return ErrInvalidID
	}
	ri.mu.Lock()
	if _, exists := ri.tasks[id]; exists {
		ri.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicatePrim, id)
	}
	ri.tasks[id] = &taskEntry{task: task, delegate: sd}
	ri.mu.Unlock()

	ri.tracker.Tasks().Insert(id, dirty.TaskAllDirty)
	return nil
}

// RemoveTask removes a task.
func (ri *RenderIndex) RemoveTask(id sdfpath.Path) error {
	ri.mu.Lock()
	_, ok := ri.tasks[id]
	delete(ri.tasks, id)
	ri.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrim, id)
	}
	ri.tracker.Tasks().Remove(id)
	return nil
}

// Task returns the task with the given id.
func (ri *RenderIndex) Task(id sdfpath.Path) (Task, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.tasks[id]; ok {
		return e.task, true
	}
	return nil, false
}

func (ri *RenderIndex) taskDelegate(id sdfpath.Path) SceneDelegate {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if e, ok := ri.tasks[id]; ok {
		return e.delegate
	}
	return nil
}

// ---------------------------------------------------------------------------
// Bulk removal
// ---------------------------------------------------------------------------

// RemoveSubtree removes every primitive at or below root that was
// inserted by sd. A nil sd removes regardless of delegate.
func (ri *RenderIndex) RemoveSubtree(root sdfpath.Path, sd SceneDelegate) {
	owned := func(d SceneDelegate) bool { return sd == nil || d == sd }

	ri.mu.Lock()
	rprims := subtreeIDs(ri.rprimIDs, root, func(id sdfpath.Path) bool { return owned(ri.rprims[id].Delegate) })
	sprims := subtreeIDs(ri.sprimIDs, root, func(id sdfpath.Path) bool { return owned(ri.sprims[id].delegate) })
	bprims := subtreeIDs(ri.bprimIDs, root, func(id sdfpath.Path) bool { return owned(ri.bprims[id].delegate) })
	instancers := subtreeIDs(ri.instancerID, root, func(id sdfpath.Path) bool { return owned(ri.instancers[id].delegate) })
	ri.mu.Unlock()

	for _, id := range rprims {
		_ = ri.RemoveRprim(id)
	}
	for _, id := range sprims {
		_ = ri.RemoveSprim(id)
	}
	for _, id := range bprims {
		_ = ri.RemoveBprim(id)
	}
	for _, id := range instancers {
		_ = ri.RemoveInstancer(id)
	}
}

// subtreeIDs returns the ids at or below root accepted by keep. The
// caller holds the index write lock.
func subtreeIDs(ids *sdfpath.SortedIDs, root sdfpath.Path, keep func(sdfpath.Path) bool) []sdfpath.Path {
	lo, hi := ids.PrefixRange(root)
	var out []sdfpath.Path
	for _, id := range ids.IDs()[lo:hi] {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// Clear removes every primitive and task.
func (ri *RenderIndex) Clear() {
	ri.RemoveSubtree(sdfpath.AbsoluteRoot(), nil)
	ri.mu.Lock()
	ids := make([]sdfpath.Path, 0, len(ri.tasks))
	for id := range ri.tasks {
		ids = append(ids, id)
	}
	ri.mu.Unlock()
	for _, id := range ids {
		_ = ri.RemoveTask(id)
	}
	ri.dirtyLists.Clear()
}

// GarbageCollect frees shared resources no primitive references and
// returns how many were freed.
func (ri *RenderIndex) GarbageCollect() int {
	n := ri.renderDelegate.ResourceRegistry().GarbageCollect()
	ri.metrics.collected.Add(float64(n))
	if n > 0 {
		ri.log.Debug("hd: garbage collected", "entries", n)
	}
	return n
}

// Close removes every primitive and stops the sync workers. The index
// must not be used afterwards.
func (ri *RenderIndex) Close() {
	if ri.closed.Swap(true) {
		return
	}
	ri.Clear()
	ri.pool.Close()
}

// ---------------------------------------------------------------------------
// Dirty lists
// ---------------------------------------------------------------------------

// DirtyListFor returns a dirty list bound to col. Lists are shared
// between callers with equal collections; release the list with
// ReleaseDirtyList when done.
func (ri *RenderIndex) DirtyListFor(col Collection) *DirtyList {
	key := col.Hash()
	created := false
	l := ri.dirtyLists.GetOrCreate(key, func() *DirtyList {
		created = true
		return newDirtyList(ri, col)
	})
	switch {
	case created:
	case l.Collection().Equal(col):
		ri.metrics.dirtyListShared.Inc()
	default:
		ri.log.Debug("hd: collection hash collision, using a private dirty list", "collection", col.String())
		l = newDirtyList(ri, col)
	}
	l.refs.Add(1)
	return l
}

// ReleaseDirtyList drops a reference taken by DirtyListFor.
func (ri *RenderIndex) ReleaseDirtyList(l *DirtyList) {
	if l == nil || l.refs.Add(-1) > 0 {
		return
	}
	key := l.Collection().Hash()
	if cur, ok := ri.dirtyLists.Get(key); ok && cur == l {
		ri.dirtyLists.Delete(key)
	}
}

// rekeyDirtyList moves a list edited in place to its new collection key.
func (ri *RenderIndex) rekeyDirtyList(oldKey uint64, l *DirtyList) {
	if cur, ok := ri.dirtyLists.Get(oldKey); ok && cur == l {
		ri.dirtyLists.Delete(oldKey)
	}
	newKey := l.Collection().Hash()
	if _, ok := ri.dirtyLists.Get(newKey); !ok {
		ri.dirtyLists.Set(newKey, l)
	}
}

// dirtyListShareable reports whether no other list for col is cached.
func (ri *RenderIndex) dirtyListShareable(col Collection, l *DirtyList) bool {
	cur, ok := ri.dirtyLists.Get(col.Hash())
	return !ok || cur == l
}

// collectDirty walks the rprims selected by col and returns those with
// any dirty bit, in path order.
func (ri *RenderIndex) collectDirty(col Collection) []sdfpath.Path {
	// SortedIDs sorts on read, so the walk needs the write lock.
	ri.mu.Lock()
	defer ri.mu.Unlock()

	var out []sdfpath.Path
	all := ri.rprimIDs.IDs()
	for _, root := range disjointRoots(col.RootPaths()) {
		lo, hi := ri.rprimIDs.PrefixRange(root)
		for _, id := range all[lo:hi] {
			if col.IsExcluded(id) {
				continue
			}
			if ri.tracker.RprimDirtyBits(id) != dirty.Clean {
				out = append(out, id)
			}
		}
	}
	return out
}

// markMembers ORs bits into every rprim selected by col. With
// syncedOnly set, prims that never synced are skipped; their initial
// bits already cover bits.
func (ri *RenderIndex) markMembers(col Collection, bits dirty.Bits, syncedOnly bool) int {
	ri.mu.Lock()
	var ids []sdfpath.Path
	all := ri.rprimIDs.IDs()
	for _, root := range disjointRoots(col.RootPaths()) {
		lo, hi := ri.rprimIDs.PrefixRange(root)
		for _, id := range all[lo:hi] {
			if col.IsExcluded(id) || (syncedOnly && !ri.rprims[id].Synced()) {
				continue
			}
			ids = append(ids, id)
		}
	}
	ri.mu.Unlock()

	for _, id := range ids {
		ri.tracker.MarkRprimDirty(id, bits)
	}
	return len(ids)
}

// requireReprs marks the synced members of col so that, clean or not,
// they build the draw items of col's reprs on the next sync.
func (ri *RenderIndex) requireReprs(col Collection) {
	if col.IsEmpty() || col.ReprSelector().IsEmpty() {
		return
	}
	if n := ri.markMembers(col, dirty.InitRepr|dirty.DirtyRepr, true); n > 0 {
		ri.log.Debug("hd: reprs required", "collection", col.Name(), "repr", col.ReprSelector().String(), "marked", n)
	}
}

// EnqueuePrimsToSync adds the current dirty prims of list to the set
// synced by the next SyncAll. col supplies the repr the prims are drawn
// with.
func (ri *RenderIndex) EnqueuePrimsToSync(list *DirtyList, col Collection) {
	ids := list.DirtyPrims()
	ri.queueMu.Lock()
	ri.syncQueue = append(ri.syncQueue, syncRequest{list: list, col: col, ids: ids})
	ri.queueMu.Unlock()
}

func (ri *RenderIndex) takeQueue() []syncRequest {
	ri.queueMu.Lock()
	defer ri.queueMu.Unlock()
	q := ri.syncQueue
	ri.syncQueue = nil
	return q
}

func (ri *RenderIndex) takeRemovals() []sdfpath.Path {
	ri.queueMu.Lock()
	defer ri.queueMu.Unlock()
	r := ri.removals
	ri.removals = nil
	return r
}

// recoverSync turns a panic inside one prim's Sync into a coding error.
func (ri *RenderIndex) recoverSync(id sdfpath.Path, what string) {
	if r := recover(); r != nil {
		ri.metrics.rprimsSkipped.WithLabelValues(skipPanic).Inc()
		ri.diag.CodingError(id, "panic during "+what, "panic", r, "stack", string(debug.Stack()))
	}
}

var errIndexClosed = errors.New("hd: render index closed")

func (ri *RenderIndex) checkOpen(ctx context.Context) error {
	if ri.closed.Load() {
		return errIndexClosed
	}
	return ctx.Err()
}
