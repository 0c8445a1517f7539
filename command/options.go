package command

import (
	"log/slog"
	"time"

	"github.com/gogpu/rhi/internal/logging"
)

// Default limits.
const (
	// DefaultPoolSize is the number of lists per pool when no size is given.
	DefaultPoolSize = 8

	// DefaultWaitTimeout bounds WaitForCompletion when the context has no
	// deadline, and the wait for executing lists during recycling.
	DefaultWaitTimeout = 10 * time.Second

	// DefaultFenceTimeout bounds the fence wait of a submission. Work that
	// does not complete in time moves the list to StateError.
	DefaultFenceTimeout = 30 * time.Second
)

// Option configures lists, pools and managers.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	label        string
	waitTimeout  time.Duration
	fenceTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:       logging.Nop(),
		waitTimeout:  DefaultWaitTimeout,
		fenceTimeout: DefaultFenceTimeout,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil keeps logging disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(l)
	}
}

// WithLabel sets the debug label passed to backend recorders.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithWaitTimeout sets the default bound of completion waits.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithFenceTimeout sets how long a submission may run before it is
// considered failed.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}
