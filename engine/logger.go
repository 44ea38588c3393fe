package engine

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the interpreter's logger, a no-op until SetLogger is called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	logger.CompareAndSwap(nil, zap.NewNop())
	return logger.Load()
}

// SetLogger replaces the interpreter's logger. Nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}
