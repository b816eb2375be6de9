package utils

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"go.uber.org/zap"
)

// RecoverFn is a function that handles a recovered panic
type RecoverFn func(r interface{}, stack []byte)

// logPanic reports a recovered panic on log, falling back to the global
// logger and finally to stderr when no logger is configured yet.
func logPanic(log *zap.Logger, msg string, r interface{}, stack []byte) {
	if log == nil {
		log = logger.Log
	}
	if log == nil {
		fmt.Fprintf(os.Stderr, "[PANIC] %s: %v\n%s\n", msg, r, stack)
		return
	}
	log.Error("[panic] "+msg, zap.Any("panic", r), zap.ByteString("stack", stack))
}

// SafeGo executes the given function in a goroutine with panic recovery
func SafeGo(fn func(), onPanic RecoverFn) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if onPanic != nil {
					onPanic(r, stack)
					return
				}
				logPanic(nil, "Recovered from panic in goroutine", r, stack)
			}
		}()
		fn()
	}()
}

// RecoverWithLog recovers a panic and logs it with the context logger.
// It must be deferred directly.
func RecoverWithLog(ctx context.Context, operation string) {
	if r := recover(); r != nil {
		logPanic(logger.FromContext(ctx), "Recovered from panic during "+operation, r, debug.Stack())
	}
}

// WrapWithContextRecovery wraps fn so that a panic is logged and returned as
// an error instead of unwinding the caller.
func WrapWithContextRecovery(fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger.FromContext(ctx), "Recovered from panic", r, debug.Stack())
				err = fmt.Errorf("panic recovered: %v", r)
			}
		}()
		return fn(ctx)
	}
}
