package hd

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/trace"
)

// DefaultDirtyListCacheSize is the number of dirty lists the index keeps
// for sharing between render passes.
const DefaultDirtyListCacheSize = 64

// Option configures a RenderIndex.
type Option func(*indexOptions)

type indexOptions struct {
	logger              *slog.Logger
	workers             int
	safeMode            bool
	forceRefine         bool
	dirtyListCacheSize  int
	diagnosticsCapacity int
	collector           *trace.Collector
	registry            *prometheus.Registry
}

func defaultIndexOptions() indexOptions {
	return indexOptions{
		dirtyListCacheSize:  DefaultDirtyListCacheSize,
		diagnosticsCapacity: DefaultDiagnosticsCapacity,
	}
}

// WithLogger sets the index logger. The default is hydra.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(o *indexOptions) {
		o.logger = l
	}
}

// WithWorkers sets the number of goroutines syncing rprims. Zero or a
// negative value uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *indexOptions) {
		o.workers = n
	}
}

// WithSafeMode makes shared-resource lookups compare content on every
// hash hit and report collisions as coding errors.
func WithSafeMode(on bool) Option {
	return func(o *indexOptions) {
		o.safeMode = on
	}
}

// WithForceRefine forces refinement on for every prim that supports it.
func WithForceRefine(on bool) Option {
	return func(o *indexOptions) {
		o.forceRefine = on
	}
}

// WithDirtyListCacheSize sets how many dirty lists are kept for sharing
// between render passes with equal collections.
func WithDirtyListCacheSize(n int) Option {
	return func(o *indexOptions) {
		if n > 0 {
			o.dirtyListCacheSize = n
		}
	}
}

// WithDiagnosticsCapacity sets how many diagnostic reports are retained.
func WithDiagnosticsCapacity(n int) Option {
	return func(o *indexOptions) {
		if n > 0 {
			o.diagnosticsCapacity = n
		}
	}
}

// WithTraceCollector records the sync phases of every frame on c.
func WithTraceCollector(c *trace.Collector) Option {
	return func(o *indexOptions) {
		o.collector = c
	}
}

// WithPrometheusRegistry registers the index metrics on reg instead of a
// private registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *indexOptions) {
		o.registry = reg
	}
}

func (o *indexOptions) log() *slog.Logger {
	return hydra.LoggerOr(o.logger, nil)
}
