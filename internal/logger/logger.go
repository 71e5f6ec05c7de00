// Package logger provides the process-wide structured logger (zap).
//
// Ledger code logs key/value pairs: every balance delta, investment operation,
// financing payment and reconciliation drift carries the ids of the rows it
// touched so a single entry is enough to audit a change.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

// Init initializes the global logger for the given environment.
// "production" and "staging" use the JSON encoder at info level, "test"
// discards everything and any other value uses the development console
// encoder. Only the first call has an effect.
func Init(env string) {
	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		return
	}
	sugar = build(env).Sugar()
}

func build(env string) *zap.Logger {
	var (
		base *zap.Logger
		err  error
	)
	switch env {
	case "production", "staging":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		base, err = cfg.Build()
	case "test":
		return zap.NewNop()
	default:
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return base
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	mu.RLock()
	l := sugar
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("development")
	return Get()
}

// For returns the global logger tagged with a component name, e.g. "ledger"
// or "reconciler".
func For(component string) *zap.SugaredLogger {
	return Get().With("component", component)
}

// Replace swaps the global logger and returns a function that restores the
// previous one. Tests use it with zaptest/observer to assert on entries.
func Replace(l *zap.SugaredLogger) (restore func()) {
	mu.Lock()
	prev := sugar
	sugar = l
	mu.Unlock()
	return func() {
		mu.Lock()
		sugar = prev
		mu.Unlock()
	}
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	mu.RLock()
	l := sugar
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
