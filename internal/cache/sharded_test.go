package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// =============================================================================
// Basic Operations
// =============================================================================

func TestSharded_GetSet(t *testing.T) {
	c := NewSharded[string, int](4, StringHasher)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", st)
	}
	if st.HitRate() != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", st.HitRate())
	}
}

func TestSharded_Delete(t *testing.T) {
	c := NewSharded[uint64, string](4, Uint64Hasher)
	c.Set(1, "one")
	if !c.Delete(1) {
		t.Error("Delete(1) = false, want true")
	}
	if c.Delete(1) {
		t.Error("second Delete(1) = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

// =============================================================================
// LRU Eviction
// =============================================================================

func TestSharded_EvictsLeastRecentlyUsed(t *testing.T) {
	// A constant hasher puts every key in one shard.
	var evicted []int
	c := NewSharded[int, int](2, func(int) uint64 { return 0 },
		WithEvict(func(k, _ int) { evicted = append(evicted, k) }))

	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1) // 2 is now least recently used
	c.Set(3, 3)

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("key 1 should survive")
	}
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Errorf("evicted = %v, want [2]", evicted)
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

// =============================================================================
// GetOrCreate
// =============================================================================

func TestSharded_GetOrCreateOnce(t *testing.T) {
	c := NewSharded[uint64, *int](8, Uint64Hasher)

	var creates atomic.Int32
	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrCreate(0xfeed, func() *int {
				creates.Add(1)
				v := 7
				return &v
			})
		}(i)
	}
	wg.Wait()

	if creates.Load() != 1 {
		t.Errorf("create called %d times, want 1", creates.Load())
	}
	for i := range results {
		if results[i] != results[0] {
			t.Fatalf("result %d differs from result 0", i)
		}
	}
}

func TestSharded_RangeAndClear(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	for i := range 10 {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	sum := 0
	c.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}
