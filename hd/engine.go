package hd

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGarbageCollectEveryFrame runs the resource registry's garbage
// collection after every Execute. Without it, collection only happens on
// an explicit RenderIndex.GarbageCollect.
func WithGarbageCollectEveryFrame(on bool) EngineOption {
	return func(e *Engine) {
		e.gcEveryFrame = on
	}
}

// Engine runs frames: it syncs the index, prepares every task, commits
// resources, then executes every task.
type Engine struct {
	gcEveryFrame bool
	tracer       oteltrace.Tracer
	frame        uint64
}

// NewEngine creates an engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Frame returns the number of frames executed.
func (e *Engine) Frame() uint64 { return e.frame }

// Execute runs one frame of tasks against index. A nil tc uses a fresh
// task context.
//
// Prepare errors skip the frame's Execute step. Execute errors of one
// task do not stop the other tasks; they are joined in the result.
func (e *Engine) Execute(ctx context.Context, index *RenderIndex, tasks []Task, tc *TaskContext) error {
	e.frame++
	ctx, span := e.tracer.Start(ctx, "hd.Engine.Execute",
		oteltrace.WithAttributes(
			attribute.Int64("frame", int64(e.frame)),
			attribute.Int("tasks", len(tasks)),
		),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if tc == nil {
		tc = NewTaskContext(ctx, index)
	} else {
		tc.withContext(ctx)
	}

	if err := index.SyncAll(ctx, tasks, tc); err != nil {
		return fail(fmt.Errorf("hd: sync: %w", err))
	}

	scope := index.collector.Begin("Prepare")
	for _, t := range tasks {
		if err := t.Prepare(tc); err != nil {
			scope.End()
			return fail(fmt.Errorf("hd: prepare %s: %w", t.ID(), err))
		}
	}
	scope.End()

	if err := index.renderDelegate.CommitResources(ctx, index.tracker); err != nil {
		return fail(fmt.Errorf("hd: commit resources: %w", err))
	}

	scope = index.collector.Begin("Execute")
	var errs []error
	for _, t := range tasks {
		if err := t.Execute(tc); err != nil {
			errs = append(errs, fmt.Errorf("hd: execute %s: %w", t.ID(), err))
		}
	}
	scope.End()

	if e.gcEveryFrame {
		index.GarbageCollect()
	}
	if err := errors.Join(errs...); err != nil {
		return fail(err)
	}
	return nil
}
