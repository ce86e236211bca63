package hydra

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false so slog never
// builds the record.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NopLogger returns a logger that writes nothing.
func NopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(NopLogger())
}

// SetLogger replaces the package-wide logger. hydra is silent until it
// is called; nil makes it silent again.
//
// Render indexes, trackers, plugin registries and render delegates read
// the package-wide logger when they are created, so SetLogger must run
// before them. A render index built with hd.WithLogger uses that logger
// for itself, its tracker and its diagnostics, whatever SetLogger says:
//
//	hydra.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
//
//	// Logs to stderr.
//	index, err := hd.NewRenderIndex(rd)
//
//	// Logs sync traces of this index only.
//	debug := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	other, err := hd.NewRenderIndex(rd, hd.WithLogger(debug))
//
// Levels:
//   - [slog.LevelDebug]: per-prim sync, dirty list rebuilds, skipped prims
//   - [slog.LevelInfo]: delegate selection, garbage collection
//   - [slog.LevelWarn]: failed scene reads and degraded prims
//   - [slog.LevelError]: coding errors such as hash collisions
func SetLogger(l *slog.Logger) {
	defaultLogger.Store(LoggerOr(l, NopLogger()))
}

// Logger returns the package-wide logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return defaultLogger.Load()
}

// LoggerOr returns l, or fallback when l is nil. A nil fallback means
// the package-wide logger.
func LoggerOr(l, fallback *slog.Logger) *slog.Logger {
	switch {
	case l != nil:
		return l
	case fallback != nil:
		return fallback
	}
	return Logger()
}
