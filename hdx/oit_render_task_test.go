package hdx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdx"
)

func TestOITBuffersGrowOnly(t *testing.T) {
	e := newEnv(t)
	task := hdx.NewOITRenderTask(e.index, p("/tasks/oit"), hdx.WithCollection(geometry(hd.ReprSmoothHull)))
	assert.True(t, task.Params().EnableBlending)

	tc := hd.NewTaskContext(t.Context(), e.index)
	state := hd.NewRenderPassState()
	tc.Set(hd.TaskContextRenderPassState, state)

	state.Viewport = [4]int{0, 0, 100, 50}
	require.NoError(t, e.frame(tc, task))
	buf := task.Buffers()
	require.NotNil(t, buf)
	assert.Equal(t, 5000, buf.Pixels)
	assert.EqualValues(t, 1, buf.Generation)
	assert.EqualValues(t, 5001*4, buf.Counter.Size)
	assert.EqualValues(t, 5000*hdx.OITSamplesPerPixel*16, buf.Data.Size)
	published, ok := tc.Get(hd.TaskContextOITBuffers)
	require.True(t, ok)
	assert.Same(t, buf, published)

	state.Viewport = [4]int{0, 0, 10, 10}
	require.NoError(t, e.frame(tc, task))
	assert.EqualValues(t, 1, task.Buffers().Generation)
	assert.Equal(t, 5000, task.Buffers().Pixels)
	assert.Equal(t, 10, task.Buffers().Width)

	state.Viewport = [4]int{0, 0, 200, 100}
	require.NoError(t, e.frame(tc, task))
	assert.EqualValues(t, 2, task.Buffers().Generation)
	assert.Equal(t, 20000, task.Buffers().Pixels)
	assert.EqualValues(t, 3, task.Executions())
}

func TestOITExecuteIsRepeatable(t *testing.T) {
	e := newEnv(t)
	task := hdx.NewOITRenderTask(e.index, p("/tasks/oit"), hdx.WithCollection(geometry(hd.ReprSmoothHull)))
	tc := hd.NewTaskContext(t.Context(), e.index)
	require.NoError(t, e.frame(tc, task))
	draws := e.rd.Param().Draws()
	require.EqualValues(t, 2, draws)

	require.NoError(t, task.Execute(tc))
	require.NoError(t, task.Execute(tc))
	assert.EqualValues(t, 3, task.Executions())
	assert.Equal(t, 3*draws, e.rd.Param().Draws())
	assert.Nil(t, task.Buffers(), "no viewport, no buffers")
}

func TestOITRejectsNegativeViewport(t *testing.T) {
	e := newEnv(t)
	params := hdx.DefaultRenderTaskParams()
	params.Viewport = [4]int{0, 0, -1, 10}
	task := hdx.NewOITRenderTask(e.index, p("/tasks/oit"),
		hdx.WithCollection(geometry(hd.ReprSmoothHull)), hdx.WithParams(params))

	err := e.frame(nil, task)
	assert.ErrorIs(t, err, hdx.ErrBadParam)
	assert.Zero(t, task.Executions())
}
