package hd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/gogpu/hydra/instance"
)

const metricsNamespace = "hydra"

// Metrics holds the performance counters of one render index. Counters
// are registered on a private prometheus.Registry so several indices can
// coexist in one process; expose it with promhttp.HandlerFor.
type Metrics struct {
	registry *prometheus.Registry

	rprimsSynced      prometheus.Counter
	rprimsSkipped     *prometheus.CounterVec
	sprimsSynced      prometheus.Counter
	instancersSynced  prometheus.Counter
	dirtyListRebuilds prometheus.Counter
	dirtyListFilters  prometheus.Counter
	dirtyListShared   prometheus.Counter
	collected         prometheus.Counter
	diagnostics       *prometheus.CounterVec
	syncSetSize       prometheus.Gauge
	syncDuration      prometheus.Histogram
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rprimsSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rprims_synced_total",
			Help:      "Rprims whose Sync ran.",
		}),
		rprimsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rprims_skipped_total",
			Help:      "Rprims in the sync set that were not synced, by reason.",
		}, []string{"reason"}),
		sprimsSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sprims_synced_total",
			Help:      "Sprims and bprims whose Sync ran.",
		}),
		instancersSynced: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "instancers_synced_total",
			Help:      "Instancers whose Sync ran.",
		}),
		dirtyListRebuilds: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dirty_list_rebuilds_total",
			Help:      "Full dirty list recomputations.",
		}),
		dirtyListFilters: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dirty_list_filters_total",
			Help:      "Dirty list refreshes that only dropped cleaned ids.",
		}),
		dirtyListShared: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dirty_list_cache_hits_total",
			Help:      "Render passes that reused another pass's dirty list.",
		}),
		collected: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "garbage_collected_total",
			Help:      "Shared resources freed by garbage collection.",
		}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostic reports by severity.",
		}, []string{"severity"}),
		syncSetSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sync_set_size",
			Help:      "Rprims in the last frame's sync set.",
		}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sync_all_duration_seconds",
			Help:      "Duration of SyncAll.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

// Registry returns the prometheus registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RegisterInstanceRegistry exports the counters of a shared-resource
// registry under the given name label.
func (m *Metrics) RegisterInstanceRegistry(name string, stats func() instance.Stats) {
	labels := prometheus.Labels{"registry": name}
	f := promauto.With(m.registry)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Name: "instance_entries", Help: "Shared resource entries.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Entries) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "instance_hits_total", Help: "Shared resource lookups that found an entry.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Hits) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "instance_misses_total", Help: "Shared resource lookups that created an entry.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Misses) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "instance_builds_total", Help: "Shared resources built.",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Builds) })
}

// MetricsSnapshot is a point-in-time copy of the index counters.
type MetricsSnapshot struct {
	RprimsSynced      uint64
	RprimsSkipped     uint64
	SkippedByReason   map[string]uint64
	SprimsSynced      uint64
	InstancersSynced  uint64
	DirtyListRebuilds uint64
	DirtyListFilters  uint64
	DirtyListShared   uint64
	GarbageCollected  uint64
	CodingErrors      uint64
	Warnings          uint64
	SyncSetSize       int
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	skipped := uint64(0)
	byReason := make(map[string]uint64, len(skipReasons))
	for _, reason := range skipReasons {
		n := counterValue(m.rprimsSkipped.WithLabelValues(reason))
		byReason[reason] = n
		skipped += n
	}
	return MetricsSnapshot{
		RprimsSynced:      counterValue(m.rprimsSynced),
		RprimsSkipped:     skipped,
		SkippedByReason:   byReason,
		SprimsSynced:      counterValue(m.sprimsSynced),
		InstancersSynced:  counterValue(m.instancersSynced),
		DirtyListRebuilds: counterValue(m.dirtyListRebuilds),
		DirtyListFilters:  counterValue(m.dirtyListFilters),
		DirtyListShared:   counterValue(m.dirtyListShared),
		GarbageCollected:  counterValue(m.collected),
		CodingErrors:      counterValue(m.diagnostics.WithLabelValues(SeverityCodingError.String())),
		Warnings:          counterValue(m.diagnostics.WithLabelValues(SeverityWarning.String())),
		SyncSetSize:       int(gaugeValue(m.syncSetSize)),
	}
}

// Reasons an rprim of the sync set is not synced.
const (
	skipRemoved    = "removed"
	skipInstancer  = "missing_instancer"
	skipRenderTag  = "render_tag"
	skipDelegate   = "delegate_error"
	skipUnresolved = "unresolved"
	skipPanic      = "panic"
)

var skipReasons = []string{skipRemoved, skipInstancer, skipRenderTag, skipDelegate, skipUnresolved, skipPanic}

func counterValue(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
