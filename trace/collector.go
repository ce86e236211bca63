package trace

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType is the kind of a trace event.
type EventType uint8

// Event types.
const (
	EventBegin EventType = iota + 1
	EventEnd
	EventMarker
)

func (t EventType) String() string {
	switch t {
	case EventBegin:
		return "begin"
	case EventEnd:
		return "end"
	case EventMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Event is one entry of a linear trace.
type Event struct {
	Type EventType
	Key  string
	// Thread labels the logical thread that recorded the event. Scopes
	// only nest within one thread.
	Thread string
	Time   time.Time
}

// MainThread is the thread label used by Begin and Marker.
const MainThread = "main"

// Collector records events. A disabled collector drops events; the zero
// value is disabled.
//
// Collector is safe for concurrent use.
type Collector struct {
	enabled atomic.Bool
	now     func() time.Time

	mu     sync.Mutex
	events []Event
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector returns an enabled collector.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.enabled.Store(true)
	return c
}

// SetEnabled turns recording on or off.
func (c *Collector) SetEnabled(on bool) { c.enabled.Store(on) }

// IsEnabled reports whether events are recorded. A nil collector is
// disabled.
func (c *Collector) IsEnabled() bool { return c != nil && c.enabled.Load() }

// Scope is an open Begin event. Call End exactly once.
type Scope struct {
	c      *Collector
	key    string
	thread string
}

// End records the end of the scope. It is safe on the zero Scope.
func (s Scope) End() {
	if s.c != nil {
		s.c.record(EventEnd, s.key, s.thread)
	}
}

// Begin opens a scope on the main thread.
func (c *Collector) Begin(key string) Scope { return c.BeginThread(MainThread, key) }

// BeginThread opens a scope on the named thread.
func (c *Collector) BeginThread(thread, key string) Scope {
	if !c.IsEnabled() {
		return Scope{}
	}
	c.record(EventBegin, key, thread)
	return Scope{c: c, key: key, thread: thread}
}

// Marker records an instantaneous event on the main thread.
func (c *Collector) Marker(key string) {
	if c.IsEnabled() {
		c.record(EventMarker, key, MainThread)
	}
}

func (c *Collector) record(t EventType, key, thread string) {
	c.mu.Lock()
	c.events = append(c.events, Event{Type: t, Key: key, Thread: thread, Time: c.now()})
	c.mu.Unlock()
}

// Events returns a copy of the recorded events in record order.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of recorded events.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Clear drops all recorded events.
func (c *Collector) Clear() {
	c.mu.Lock()
	c.events = c.events[:0]
	c.mu.Unlock()
}
