package pipeline

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var defaultLogger atomic.Pointer[zap.Logger]

// Logger returns the process-wide default logger used by pipelines built
// without WithLogger. It is a no-op logger unless SetLogger was called.
func Logger() *zap.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the process-wide default logger. Pipelines capture the
// logger at construction.
func SetLogger(l *zap.Logger) {
	defaultLogger.Store(l)
}
