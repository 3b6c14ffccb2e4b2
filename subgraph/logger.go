package subgraph

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

var nopLogger = zap.NewNop()

// Logger returns the package logger. It is a no-op logger unless SetLogger
// was called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger sets the logger used by clients created without WithLogger.
// A nil l restores the no-op logger. Safe to call concurrently with Logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
