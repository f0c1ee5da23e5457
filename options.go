package app

import (
	"io"
	"os"
	"time"

	"github.com/PaulAvery/app/configx"
	"github.com/PaulAvery/app/core/log"
)

// DefaultShutdownTimeout bounds the app:shutdown broadcast unless overridden.
const DefaultShutdownTimeout = 5 * time.Second

// Observer is notified of lifecycle transitions, e.g. for metrics. An
// observer that also implements busx.Observer receives bus activity too.
type Observer interface {
	ComponentRegistered(name string)
	ComponentInitialized(name string, elapsed time.Duration, err error)
	BootCompleted(elapsed time.Duration, err error)
	ShutdownCompleted(elapsed time.Duration, timedOut bool)
}

// Option configures an App.
type Option func(*options)

type options struct {
	ShutdownTimeout time.Duration `validate:"gt=0"`
	Signals         bool
	Logger          log.Logger
	Loader          configx.Loader `validate:"required"`
	Terminate       func(code int) `validate:"required"`
	Stderr          io.Writer      `validate:"required"`
	Observer        Observer
	Debug           *bool
	CycleDetection  *bool
}

func defaultOptions() options {
	return options{
		ShutdownTimeout: DefaultShutdownTimeout,
		Signals:         true,
		Terminate:       os.Exit,
		Stderr:          os.Stderr,
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for app:shutdown handlers.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.ShutdownTimeout = d
	}
}

// WithSignals enables or disables the SIGINT/SIGTERM handler armed by Boot.
func WithSignals(enabled bool) Option {
	return func(o *options) {
		o.Signals = enabled
	}
}

// WithLogger replaces the default logx logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.Logger = logger
	}
}

// WithConfigLoader replaces the default configx.Store.
func WithConfigLoader(loader configx.Loader) Option {
	return func(o *options) {
		o.Loader = loader
	}
}

// WithTerminator replaces os.Exit as the way the process ends.
func WithTerminator(terminate func(code int)) Option {
	return func(o *options) {
		o.Terminate = terminate
	}
}

// WithStderr sets where the fatal path writes its message.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.Stderr = w
	}
}

// WithMetrics attaches a lifecycle observer such as *obsx.Metrics.
func WithMetrics(observer Observer) Option {
	return func(o *options) {
		o.Observer = observer
	}
}

// WithDebugLogs forces trace-level logging on or off. By default it is on
// unless the configured env is "production".
func WithDebugLogs(enabled bool) Option {
	return func(o *options) {
		o.Debug = &enabled
	}
}

// WithCycleDetection makes Scope.Await fail with ErrAwaitCycle instead of
// deadlocking when initializers await each other. It is off by default.
func WithCycleDetection(enabled bool) Option {
	return func(o *options) {
		o.CycleDetection = &enabled
	}
}
