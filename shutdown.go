package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulAvery/app/busx"
	coreerrors "github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/core/log"
)

// Shutdown emits app:shutdown and waits for its handlers, at most for the
// shutdown timeout, then terminates the process with code 0. It returns
// ErrShutdownTimeout when the timeout ended the wait. Handlers still running
// see their context cancelled.
//
// Shutdown may be called more than once; each call broadcasts and
// terminates again.
func (a *App) Shutdown() error {
	logger := a.logger.Child("app").Child("shutdown")
	timeout := a.opts.ShutdownTimeout

	logger.Info("shutting down", log.Dur("timeout", timeout))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	settle := a.bus.Emit(ctx, EventShutdown)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-settle.Done():
		if herr := settle.Err(); herr != nil {
			logger.Warn("shutdown handlers failed", log.Str("error", herr.Error()))
		}
	case <-timer.C:
		err = newError(coreerrors.CodeDeadlineExceeded, "app.Shutdown", ErrShutdownTimeout,
			"handlers still running after %s", timeout)
		logger.Warn("shutdown timed out", log.Dur("timeout", timeout))
	}

	elapsed := time.Since(start)
	if a.opts.Observer != nil {
		a.opts.Observer.ShutdownCompleted(elapsed, err != nil)
	}
	logger.Info("terminating", log.Dur("elapsed", elapsed))

	a.terminate(0)
	return err
}

func (a *App) terminate(code int) {
	a.opts.Terminate(code)
	a.doneOnce.Do(func() { close(a.done) })
}

// installFatalPath routes every handler failure and reported error to
// app:fatal, whose handler prints the error and terminates with code 1.
func (a *App) installFatalPath() {
	a.bus.Catch(func(err error) {
		var herr *busx.HandlerError
		if errors.As(err, &herr) && herr.Path == EventFatal {
			return
		}
		a.bus.Emit(context.Background(), EventFatal, &FatalError{Err: err})
	})

	a.bus.On(EventFatal, func(ctx context.Context, ev busx.Event) error {
		err, ok := ev.Arg(0).(error)
		if !ok {
			err = &FatalError{Err: fmt.Errorf("%v", ev.Arg(0))}
		}
		fmt.Fprintf(a.opts.Stderr, "Exiting. Uncaught fatal error: %v\n", err)
		a.terminate(1)
		return nil
	})
}

// armSignals starts a shutdown on each SIGINT or SIGTERM until termination.
func (a *App) armSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	logger := a.logger.Child("app").Child("shutdown")
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case sig := <-ch:
				logger.Info("received signal", log.Str("signal", sig.String()))
				go a.Shutdown()
			case <-a.done:
				return
			}
		}
	}()
}
