// Package recovery keeps a panic in a background goroutine from taking the
// ping session down with it.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/postalsys/echoping/internal/logging"
)

// Go runs fn in a new goroutine. A panic in fn is logged and swallowed, then
// onPanic (if non-nil) is called with the recovered value.
func Go(logger *slog.Logger, name string, fn func(), onPanic func(recovered any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r)
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

func logPanic(logger *slog.Logger, name string, r any) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger.Error("panic recovered",
		logging.KeyComponent, name,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()))
}
