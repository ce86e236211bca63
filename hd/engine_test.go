package hd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra/dirty"
	"github.com/gogpu/hydra/hd"
)

func TestEngineFrameOrder(t *testing.T) {
	f := newFixture(t)
	f.addMeshes("/World/a")
	var events []string
	f.rd.events = &events
	first := f.task("first", worldCollection(hd.ReprSmoothHull))
	second := f.task("second", worldCollection(hd.ReprWire))
	first.events, second.events = &events, &events

	e := hd.NewEngine()
	require.NoError(t, e.Execute(context.Background(), f.index, []hd.Task{first, second}, nil))
	assert.Equal(t, []string{
		"first:sync", "second:sync",
		"first:prepare", "second:prepare",
		"commit",
		"first:execute", "second:execute",
	}, events)
	assert.EqualValues(t, 1, e.Frame())
	assert.Equal(t, dirty.Clean, f.bits("/World/a"))
	assert.Zero(t, f.rd.gcRuns.Load())
}

func TestEngineGarbageCollectEveryFrame(t *testing.T) {
	f := newFixture(t)
	e := hd.NewEngine(hd.WithGarbageCollectEveryFrame(true))
	task := f.task("render", worldCollection(hd.ReprSmoothHull))

	for range 3 {
		require.NoError(t, e.Execute(context.Background(), f.index, []hd.Task{task}, nil))
	}
	assert.EqualValues(t, 3, f.rd.gcRuns.Load())
	assert.EqualValues(t, 3, f.rd.commits.Load())
}

func TestEngineExecuteErrorsAreJoined(t *testing.T) {
	f := newFixture(t)
	var events []string
	failing := f.task("failing", worldCollection(hd.ReprSmoothHull))
	failing.fail = errInjected
	after := f.task("after", worldCollection(hd.ReprSmoothHull))
	failing.events, after.events = &events, &events

	err := hd.NewEngine().Execute(context.Background(), f.index, []hd.Task{failing, after}, nil)
	assert.ErrorIs(t, err, errInjected)
	assert.Contains(t, events, "after:execute")
}

func TestEngineSharedTaskContext(t *testing.T) {
	f := newFixture(t)
	tc := hd.NewTaskContext(context.Background(), f.index)
	tc.Set("frameParam", 7)
	task := f.task("render", worldCollection(hd.ReprSmoothHull))

	require.NoError(t, hd.NewEngine().Execute(context.Background(), f.index, []hd.Task{task}, tc))
	v, ok := tc.Get("frameParam")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}
