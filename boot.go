package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	coreerrors "github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/core/log"
)

// State is the boot state of an App.
type State int

// Boot states. An App moves Idle -> Booting -> Booted, or Idle -> Booting -> Failed.
const (
	StateIdle State = iota
	StateBooting
	StateBooted
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBooting:
		return "booting"
	case StateBooted:
		return "booted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type initResult struct {
	name string
	err  error
}

// Boot runs every initializer concurrently, each in its own goroutine and
// dispatched in registration order. It arms the signal handler first when
// signals are enabled.
//
// When all initializers succeed Boot emits app:boot once, waits for its
// handlers and returns nil. On the first failure it reports the error to the
// fatal path and returns it at once; the remaining initializers keep running.
func (a *App) Boot(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIdle {
		state := a.state
		a.mu.Unlock()
		return newError(coreerrors.CodeFailedPrecondition, "app.Boot", ErrAlreadyBooted, "application is %s", state)
	}
	a.state = StateBooting
	regs := slices.Clone(a.components)
	a.mu.Unlock()

	logger := a.logger.Child("app").Child("boot")
	if a.opts.Signals {
		a.armSignals()
	}

	start := time.Now()
	logger.Debug("booting", log.Int("components", len(regs)))

	results := make(chan initResult, len(regs))
	for _, reg := range regs {
		go a.initialize(ctx, reg, results)
	}

	for range regs {
		res := <-results
		if res.err == nil {
			continue
		}

		err := initializerError(res.name, res.err)
		a.setState(StateFailed)
		a.observeBoot(time.Since(start), err)
		logger.Error(err, "component failed to initialize", log.Str("component", res.name))
		a.bus.Report(err)
		return err
	}

	a.setState(StateBooted)
	elapsed := time.Since(start)
	a.observeBoot(elapsed, nil)
	logger.Info("booted", log.Int("components", len(regs)), log.Dur("elapsed", elapsed))

	<-a.bus.Emit(ctx, EventBoot).Done()
	return nil
}

// Run boots the application and blocks until it terminates. Cancelling ctx
// after a successful boot starts a shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		err := a.Shutdown()
		<-a.done
		return err
	}
}

func (a *App) initialize(ctx context.Context, reg *registration, results chan<- initResult) {
	name := reg.component.Name
	start := time.Now()

	value, err := callInit(ctx, reg)
	reg.future.settle(value, err)

	if a.opts.Observer != nil {
		a.opts.Observer.ComponentInitialized(name, time.Since(start), err)
	}
	if err == nil {
		reg.scope.logger.Debug("initialized", log.Dur("elapsed", time.Since(start)))
	}
	results <- initResult{name: name, err: err}
}

func callInit(ctx context.Context, reg *registration) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return reg.component.Init(withInitializer(ctx, reg.component.Name), reg.scope, reg.config.Clone())
}

func (a *App) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

func (a *App) observeBoot(elapsed time.Duration, err error) {
	if a.opts.Observer != nil {
		a.opts.Observer.BootCompleted(elapsed, err)
	}
}
