package hd

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/hydra/sdfpath"
)

// Severity classifies a diagnostic report.
type Severity int

// Severities.
const (
	// SeverityWarning is a benign problem handled with a documented
	// fallback, such as an unknown curve basis drawn as linear.
	SeverityWarning Severity = iota
	// SeverityCodingError is a contract violation, such as a hash
	// collision or a missing required topology. The frame continues with
	// the affected prim in a best-effort state.
	SeverityCodingError
)

func (s Severity) String() string {
	if s == SeverityCodingError {
		return "coding_error"
	}
	return "warning"
}

// Report is one diagnostic.
type Report struct {
	Severity Severity
	ID       sdfpath.Path
	Message  string
	Attrs    []any
	Time     time.Time
}

func (r Report) String() string {
	if r.ID.IsEmpty() {
		return fmt.Sprintf("%s: %s", r.Severity, r.Message)
	}
	return fmt.Sprintf("%s: %s: %s", r.Severity, r.ID, r.Message)
}

// DefaultDiagnosticsCapacity is the number of reports kept by default.
const DefaultDiagnosticsCapacity = 256

// Diagnostics collects coding errors and warnings of one render index.
// Every report is logged, counted and kept in a bounded ring of recent
// reports; reporting never unwinds the caller.
//
// Diagnostics is safe for concurrent use.
type Diagnostics struct {
	log     *slog.Logger
	metrics *Metrics

	mu    sync.Mutex
	ring  []Report
	next  int
	count int

	codingErrors atomic.Uint64
	warnings     atomic.Uint64
}

func newDiagnostics(log *slog.Logger, metrics *Metrics, capacity int) *Diagnostics {
	if capacity <= 0 {
		capacity = DefaultDiagnosticsCapacity
	}
	return &Diagnostics{log: log, metrics: metrics, ring: make([]Report, capacity)}
}

// CodingError reports a contract violation for id.
func (d *Diagnostics) CodingError(id sdfpath.Path, msg string, attrs ...any) {
	d.codingErrors.Add(1)
	d.log.Error("hd: coding error: "+msg, append([]any{"id", id.String()}, attrs...)...)
	d.record(SeverityCodingError, id, msg, attrs)
}

// Warning reports a benign problem for id.
func (d *Diagnostics) Warning(id sdfpath.Path, msg string, attrs ...any) {
	d.warnings.Add(1)
	d.log.Warn("hd: "+msg, append([]any{"id", id.String()}, attrs...)...)
	d.record(SeverityWarning, id, msg, attrs)
}

func (d *Diagnostics) record(sev Severity, id sdfpath.Path, msg string, attrs []any) {
	if d.metrics != nil {
		d.metrics.diagnostics.WithLabelValues(sev.String()).Inc()
	}
	d.mu.Lock()
	d.ring[d.next] = Report{Severity: sev, ID: id, Message: msg, Attrs: attrs, Time: time.Now()}
	d.next = (d.next + 1) % len(d.ring)
	d.count = min(d.count+1, len(d.ring))
	d.mu.Unlock()
}

// Reports returns the retained reports, oldest first.
func (d *Diagnostics) Reports() []Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Report, 0, d.count)
	start := (d.next - d.count + len(d.ring)) % len(d.ring)
	for i := 0; i < d.count; i++ {
		out = append(out, d.ring[(start+i)%len(d.ring)])
	}
	return out
}

// ReportsFor returns the retained reports about id, oldest first.
func (d *Diagnostics) ReportsFor(id sdfpath.Path) []Report {
	var out []Report
	for _, r := range d.Reports() {
		if r.ID == id {
			out = append(out, r)
		}
	}
	return out
}

// CodingErrors returns the number of coding errors reported.
func (d *Diagnostics) CodingErrors() uint64 { return d.codingErrors.Load() }

// Warnings returns the number of warnings reported.
func (d *Diagnostics) Warnings() uint64 { return d.warnings.Load() }

// Clear drops the retained reports. Counters are kept.
func (d *Diagnostics) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.ring)
	d.next, d.count = 0, 0
}
