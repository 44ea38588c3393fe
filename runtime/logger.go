package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/weaver/engine"
)

// Logger returns the logger shared with the interpreter.
func Logger() *zap.Logger {
	return engine.Logger()
}

// SetLogger replaces the runtime and interpreter logger. Nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}
