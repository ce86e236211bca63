package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/instance"
)

// maxRehashes bounds the rehashing done in safe mode.
const maxRehashes = 8

// ErrHashCollision is returned in safe mode when every salted key for a
// resource hit an entry with different content.
var ErrHashCollision = errors.New("reference: unresolved hash collision")

// Reporter receives the coding errors found while registering shared
// data. *hd.SyncContext implements it.
type Reporter interface {
	CodingError(msg string, args ...any)
}

var _ Reporter = (*hd.SyncContext)(nil)

// ResourceRegistry shares topologies and index buffers between prims by
// content hash, and applies queued buffer sources on Commit.
//
// ResourceRegistry is safe for concurrent use.
type ResourceRegistry struct {
	log      *slog.Logger
	safeMode bool

	meshTopologies  *instance.Registry[*MeshTopology]
	curveTopologies *instance.Registry[*CurvesTopology]
	indexRanges     *instance.Registry[*BufferArrayRange]

	mu      sync.Mutex
	ranges  []*BufferArrayRange
	pending map[*BufferArrayRange][]BufferSource

	collisions atomic.Uint64
	commits    atomic.Uint64
}

var _ hd.ResourceRegistry = (*ResourceRegistry)(nil)

// NewResourceRegistry returns an empty registry. In safe mode every hash
// hit is checked against the requested content.
func NewResourceRegistry(log *slog.Logger, safeMode bool) *ResourceRegistry {
	return &ResourceRegistry{
		log:             log,
		safeMode:        safeMode,
		meshTopologies:  instance.NewRegistry[*MeshTopology](),
		curveTopologies: instance.NewRegistry[*CurvesTopology](),
		indexRanges:     instance.NewRegistry[*BufferArrayRange](),
		pending:         make(map[*BufferArrayRange][]BufferSource),
	}
}

// SafeMode reports whether hash hits are content-checked.
func (r *ResourceRegistry) SafeMode() bool { return r.safeMode }

// RegisterMeshTopology returns the shared instance of t. The caller owns
// one reference and releases it when the prim stops using t. Safe-mode
// collisions are reported to rep, which may be nil.
func (r *ResourceRegistry) RegisterMeshTopology(ctx context.Context, rep Reporter, t hd.MeshTopology) (*instance.Instance[*MeshTopology], error) {
	return registerShared(ctx, r, rep, r.meshTopologies, "meshTopology", hashMeshTopology(t),
		func() (*MeshTopology, error) { return newMeshTopology(t), nil },
		func(have *MeshTopology) bool { return equalMeshTopology(have.MeshTopology, t) },
	)
}

// RegisterCurvesTopology returns the shared instance of t.
func (r *ResourceRegistry) RegisterCurvesTopology(ctx context.Context, rep Reporter, t hd.BasisCurvesTopology) (*instance.Instance[*CurvesTopology], error) {
	return registerShared(ctx, r, rep, r.curveTopologies, "curvesTopology", hashCurvesTopology(t),
		func() (*CurvesTopology, error) { return newCurvesTopology(t), nil },
		func(have *CurvesTopology) bool { return equalCurvesTopology(have.BasisCurvesTopology, t) },
	)
}

// RegisterIndexRange returns the shared index range of kind for the
// topology registered under topoKey. indices runs only when the range is
// not registered yet.
func (r *ResourceRegistry) RegisterIndexRange(ctx context.Context, topoKey uint64, kind IndexKind, indices func() []int32) (*instance.Instance[*BufferArrayRange], error) {
	key := instance.Combine(topoKey, instance.NewHasher().String(string(kind)).Sum64())
	return r.indexRanges.GetOrBuild(ctx, key, func() (*BufferArrayRange, error) {
		rng := newBufferArrayRange("element", gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst,
			[]BufferSpec{{Name: "indices", Format: gputypes.VertexFormatUint32}})
		if err := rng.apply([]BufferSource{{Name: "indices", Data: indices()}}); err != nil {
			return nil, err
		}
		return rng, nil
	})
}

// registerShared looks up hash in reg, building the value on a miss. In
// safe mode a hit whose content differs is a collision: it is reported as
// a coding error, then the hash is salted and looked up again.
func registerShared[T any](ctx context.Context, r *ResourceRegistry, rep Reporter, reg *instance.Registry[T], kind string, hash uint64,
	build func() (T, error), same func(T) bool,
) (*instance.Instance[T], error) {
	key := hash
	for attempt := range maxRehashes {
		inst, err := reg.GetOrBuild(ctx, key, build)
		if err != nil {
			return nil, err
		}
		if !r.safeMode || inst.IsFirstInstance() || same(inst.Get()) {
			return inst, nil
		}
		inst.Release()
		r.collisions.Add(1)
		if rep != nil {
			rep.CodingError("hash collision", "kind", kind, "hash", key, "attempt", attempt)
		} else {
			r.log.Error("reference: hash collision", "kind", kind, "hash", key, "attempt", attempt)
		}
		key = instance.Combine(hash, uint64(attempt+1))
	}
	return nil, fmt.Errorf("%w: %s %#x", ErrHashCollision, kind, hash)
}

// AllocateBufferArrayRange allocates a range of the given buffers. The
// range lives until it is released and garbage collected.
func (r *ResourceRegistry) AllocateBufferArrayRange(role string, usage gputypes.BufferUsage, specs ...BufferSpec) *BufferArrayRange {
	rng := newBufferArrayRange(role, usage, specs)
	r.mu.Lock()
	r.ranges = append(r.ranges, rng)
	r.mu.Unlock()
	return rng
}

// AddSources queues data for rng. Sources are applied by the next Commit;
// a later source for the same buffer wins.
func (r *ResourceRegistry) AddSources(rng *BufferArrayRange, sources ...BufferSource) {
	if len(sources) == 0 {
		return
	}
	r.mu.Lock()
	r.pending[rng] = append(r.pending[rng], sources...)
	r.mu.Unlock()
}

// PendingSources returns the number of ranges with queued sources.
func (r *ResourceRegistry) PendingSources() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Commit applies every queued source. Sources of released ranges are
// dropped.
func (r *ResourceRegistry) Commit(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[*BufferArrayRange][]BufferSource)
	r.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for rng, sources := range pending {
		if !rng.IsValid() {
			continue
		}
		g.Go(func() error { return rng.apply(sources) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reference: commit: %w", err)
	}
	r.commits.Add(1)
	return nil
}

// Commits returns the number of commits that applied sources.
func (r *ResourceRegistry) Commits() uint64 { return r.commits.Load() }

// Collisions returns the number of safe-mode hash collisions seen.
func (r *ResourceRegistry) Collisions() uint64 { return r.collisions.Load() }

// GarbageCollect drops unreferenced shared resources and released ranges.
func (r *ResourceRegistry) GarbageCollect() int {
	n := r.meshTopologies.GarbageCollect() +
		r.curveTopologies.GarbageCollect() +
		r.indexRanges.GarbageCollect()

	r.mu.Lock()
	before := len(r.ranges)
	r.ranges = slices.DeleteFunc(r.ranges, func(rng *BufferArrayRange) bool { return !rng.IsValid() })
	n += before - len(r.ranges)
	r.mu.Unlock()

	if n > 0 {
		r.log.Debug("reference: garbage collected", "freed", n)
	}
	return n
}

// ResourceAllocation reports entry counts and the bytes held by ranges.
func (r *ResourceRegistry) ResourceAllocation() map[string]any {
	r.mu.Lock()
	ranges := slices.Clone(r.ranges)
	r.mu.Unlock()
	var bytes uint64
	for _, rng := range ranges {
		bytes += rng.Descriptor().Size
	}
	return map[string]any{
		"meshTopologies":  r.meshTopologies.Len(),
		"curveTopologies": r.curveTopologies.Len(),
		"indexRanges":     r.indexRanges.Len(),
		"bufferRanges":    len(ranges),
		"bufferBytes":     bytes,
		"hashCollisions":  r.collisions.Load(),
	}
}

func (r *ResourceRegistry) registerMetrics(m *hd.Metrics) {
	m.RegisterInstanceRegistry("meshTopology", r.meshTopologies.Stats)
	m.RegisterInstanceRegistry("curvesTopology", r.curveTopologies.Stats)
	m.RegisterInstanceRegistry("indexRange", r.indexRanges.Stats)
}
