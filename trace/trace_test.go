package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestCollector() *Collector {
	clk := &fakeClock{t: time.Unix(0, 0)}
	return NewCollector(WithClock(clk.now))
}

func TestCollector_DisabledDropsEvents(t *testing.T) {
	var nilCollector *Collector
	assert.False(t, nilCollector.IsEnabled())
	nilCollector.Begin("x").End()

	c := newTestCollector()
	c.SetEnabled(false)
	c.Begin("a").End()
	c.Marker("m")
	assert.Equal(t, 0, c.Len())

	c.SetEnabled(true)
	c.Begin("a").End()
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestBuildEventTree_Nesting(t *testing.T) {
	c := newTestCollector()
	outer := c.Begin("SyncAll")
	inner := c.Begin("SyncRprims")
	c.Marker("barrier")
	inner.End()
	outer.End()

	et, err := BuildEventTree(c.Events())
	require.NoError(t, err)

	root := et.Node(et.Root())
	require.Len(t, root.Children, 1)
	thread := et.Node(root.Children[0])
	assert.Equal(t, MainThread, thread.Key)
	require.Len(t, thread.Children, 1)

	sa := et.Node(thread.Children[0])
	assert.Equal(t, "SyncAll", sa.Key)
	assert.Equal(t, 4*time.Millisecond, sa.Duration())
	require.Len(t, sa.Children, 1)

	sr := et.Node(sa.Children[0])
	assert.Equal(t, "SyncRprims", sr.Key)
	require.Len(t, sr.Children, 1)
	assert.True(t, et.Node(sr.Children[0]).Marker)
}

func TestBuildEventTree_Unbalanced(t *testing.T) {
	events := []Event{
		{Type: EventBegin, Key: "a", Thread: MainThread, Time: time.Unix(1, 0)},
		{Type: EventEnd, Key: "b", Thread: MainThread, Time: time.Unix(2, 0)},
	}
	_, err := BuildEventTree(events)
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestBuildEventTree_ClosesOpenScopes(t *testing.T) {
	c := newTestCollector()
	c.Begin("open")
	c.Marker("m")

	et, err := BuildEventTree(c.Events())
	require.NoError(t, err)
	open := et.Node(et.Node(et.Node(0).Children[0]).Children[0])
	assert.Equal(t, "open", open.Key)
	assert.Equal(t, time.Millisecond, open.Duration())
}

func TestAggregate_MergesRepeatedCalls(t *testing.T) {
	c := newTestCollector()
	for range 3 {
		s := c.Begin("frame")
		c.Begin("sync").End()
		s.End()
	}
	et, err := BuildEventTree(c.Events())
	require.NoError(t, err)
	at := Aggregate(et)

	frame, ok := at.Child(at.Root(), "frame")
	require.True(t, ok)
	assert.Equal(t, 3, at.Node(frame).Count)
	assert.Equal(t, 9*time.Millisecond, at.Node(frame).Inclusive)

	sync, ok := at.Child(frame, "sync")
	require.True(t, ok)
	assert.Equal(t, 3, at.Node(sync).Count)
	assert.Equal(t, 3*time.Millisecond, at.Node(sync).Inclusive)
	assert.Equal(t, 6*time.Millisecond, at.ExclusiveTime(frame))
	assert.Equal(t, []string{"frame", "sync"}, at.Path(sync))
	assert.Equal(t, 3, at.Len())
}

func TestAggregate_MergesThreads(t *testing.T) {
	c := newTestCollector()
	c.BeginThread("w1", "sync").End()
	c.BeginThread("w2", "sync").End()

	et, err := BuildEventTree(c.Events())
	require.NoError(t, err)
	assert.Len(t, et.Node(et.Root()).Children, 2)

	at := Aggregate(et)
	id, ok := at.Child(at.Root(), "sync")
	require.True(t, ok)
	assert.Equal(t, 2, at.Node(id).Count)
}

func TestAggregateTree_MarkRecursiveChildren(t *testing.T) {
	at := NewAggregateTree()
	a := at.Append(at.Root(), "visit", 10*time.Millisecond)
	at.Append(at.Root(), "visit", 10*time.Millisecond)
	b := at.Append(a, "helper", time.Millisecond)
	r := at.Append(b, "visit", 2*time.Millisecond)

	at.MarkRecursiveChildren()

	assert.True(t, at.Node(r).Recursive)
	assert.False(t, at.Node(a).Recursive)
	assert.False(t, at.Node(b).Recursive)
	assert.Equal(t, 1, at.Node(a).ExclusiveCount)
	assert.Equal(t, 2, at.Node(a).Count)
}

func TestAggregateTree_Walk(t *testing.T) {
	at := NewAggregateTree()
	a := at.Append(at.Root(), "a", 0)
	at.Append(a, "b", 0)
	at.Append(at.Root(), "c", 0)

	var keys []string
	var depths []int
	at.Walk(func(id NodeID, depth int) bool {
		keys = append(keys, at.Node(id).Key)
		depths = append(depths, depth)
		return at.Node(id).Key != "a"
	})
	assert.Equal(t, []string{"root", "a", "c"}, keys)
	assert.Equal(t, []int{0, 1, 1}, depths)
}
