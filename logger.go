package rhi

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/rhi/internal/logging"
)

// loggerPtr stores the process default logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger configures the default logger of contexts created without
// WithLogger. By default, rhi produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default. Contexts keep the logger they were created with.
//
// Log levels used by rhi:
//   - [slog.LevelDebug]: buffer sizes, pool traffic, view cache activity
//   - [slog.LevelInfo]: lifecycle events (backend selected, context closed)
//   - [slog.LevelWarn]: non-fatal issues (recycle or release failures)
//
// Example:
//
//	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logging.OrNop(l))
}

// Logger returns the process default logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
