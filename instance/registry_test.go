package instance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topology struct {
	counts  []int32
	indices []int32
}

func TestRegisterFirstInstance(t *testing.T) {
	reg := NewRegistry[*topology]()

	a := reg.Register(42)
	b := reg.Register(42)
	require.True(t, a.IsFirstInstance())
	require.False(t, b.IsFirstInstance())
	assert.True(t, a.Same(b))
	assert.Equal(t, int64(2), a.RefCount())

	topo := &topology{counts: []int32{3}}
	require.NoError(t, a.SetValue(topo))

	got, err := b.Value(context.Background())
	require.NoError(t, err)
	assert.Same(t, topo, got)

	assert.ErrorIs(t, b.SetValue(topo), ErrNotFirstInstance)
	assert.ErrorIs(t, a.SetValue(topo), ErrAlreadyResolved)

	st := reg.Stats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Builds)
}

func TestAtMostOneBuild(t *testing.T) {
	const n = 64
	reg := NewRegistry[*topology]()

	var (
		firsts atomic.Int32
		builds atomic.Int32
		start  = make(chan struct{})
		wg     sync.WaitGroup
		got    = make([]*topology, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			inst := reg.Register(7)
			if inst.IsFirstInstance() {
				firsts.Add(1)
				builds.Add(1)
				time.Sleep(5 * time.Millisecond)
				_ = inst.SetValue(&topology{counts: []int32{4}})
			}
			v, err := inst.Value(context.Background())
			if err == nil {
				got[i] = v
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
	assert.Equal(t, int32(1), builds.Load())
	for i := 1; i < n; i++ {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i])
	}
}

func TestGetOrBuildConcurrent(t *testing.T) {
	reg := NewRegistry[int]()
	var builds atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := reg.GetOrBuild(context.Background(), 99, func() (int, error) {
				builds.Add(1)
				time.Sleep(time.Millisecond)
				return 5, nil
			})
			if assert.NoError(t, err) {
				assert.Equal(t, 5, inst.Get())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestAbandonedBuildIsRetried(t *testing.T) {
	reg := NewRegistry[string]()
	boom := errors.New("out of memory")

	builder := reg.Register(1)
	waiter := reg.Register(1)
	require.True(t, builder.IsFirstInstance())

	done := make(chan error, 1)
	go func() {
		_, err := waiter.Value(context.Background())
		done <- err
	}()

	require.NoError(t, builder.Abandon(boom))
	err := <-done
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len(), "failures are not cached")

	builder.Release()
	waiter.Release()

	inst, err := reg.GetOrBuild(context.Background(), 1, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.True(t, inst.IsFirstInstance())
	assert.Equal(t, "ok", inst.Get())
	assert.Equal(t, uint64(1), reg.Stats().Abandoned)
}

func TestGetOrBuildReturnsBuildError(t *testing.T) {
	reg := NewRegistry[int]()
	boom := errors.New("boom")
	_, err := reg.GetOrBuild(context.Background(), 3, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len())
}

func TestValueHonorsContext(t *testing.T) {
	reg := NewRegistry[int]()
	builder := reg.Register(5)
	waiter := reg.Register(5)
	defer builder.Release()
	defer waiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := waiter.Value(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = builder.Value(context.Background())
	assert.ErrorIs(t, err, ErrPending)
}

func TestGarbageCollectOnlyUnreferenced(t *testing.T) {
	reg := NewRegistry[int]()

	kept := reg.Register(1)
	require.NoError(t, kept.SetValue(1))

	dropped := reg.Register(2)
	require.NoError(t, dropped.SetValue(2))
	dropped.Release()
	dropped.Release() // idempotent

	pending := reg.Register(3)
	pending.Release()

	assert.Equal(t, 1, reg.GarbageCollect())
	assert.Equal(t, 2, reg.Len())

	again := reg.Register(1)
	assert.False(t, again.IsFirstInstance(), "referenced entry survives")

	fresh := reg.Register(2)
	assert.True(t, fresh.IsFirstInstance(), "collected entry is rebuilt")
	assert.Equal(t, uint64(1), reg.Stats().Collected)
}

func TestHasher(t *testing.T) {
	a := NewHasher().Int32s([]int32{1, 2}).Int32s([]int32{3}).Sum64()
	b := NewHasher().Int32s([]int32{1}).Int32s([]int32{2, 3}).Sum64()
	c := NewHasher().Int32s([]int32{1, 2}).Int32s([]int32{3}).Sum64()
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)

	refined := NewHasher().Int32s([]int32{4}).Bool(true).Sum64()
	unrefined := NewHasher().Int32s([]int32{4}).Bool(false).Sum64()
	assert.NotEqual(t, refined, unrefined)

	assert.NotEqual(t, Combine(1, 2), Combine(2, 1))
	assert.NotEqual(t,
		NewHasher().Float32s([]float32{0}).Sum64(),
		NewHasher().Float32s([]float32{float32(negZero())}).Sum64())
}

func negZero() float64 {
	var z float64
	return -z
}
