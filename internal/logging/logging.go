// Package logging provides a package-level structured logger used
// throughout the gateway, backed by zap.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(newLogger(false).Sugar())
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than crash on misconfiguration.
		return zap.NewNop()
	}
	return l
}

// Initialize configures the global logger based on the SHIM_DEBUG
// environment variable and/or an explicit debug flag.
func Initialize(debug bool) {
	if !debug {
		debug = os.Getenv("SHIM_DEBUG") == "true"
	}
	singleton.Store(newLogger(debug).Sugar())
}

func get() *zap.SugaredLogger {
	return singleton.Load()
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { get().Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { get().Infof(format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...any) { get().Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Panicf logs at panic level then panics.
func Panicf(format string, args ...any) { get().Panicf(format, args...) }

// Sync flushes any buffered log entries.
func Sync() error { return get().Sync() }
