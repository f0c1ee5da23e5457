package app

import (
	"errors"
	"fmt"

	coreerrors "github.com/PaulAvery/app/core/errors"
)

// Sentinel errors. Errors returned by the package wrap one of these in a
// *coreerrors.E, so both errors.Is and coreerrors.CodeOf work on them.
var (
	// ErrInvalidName is returned for an empty component name, a name holding
	// the bus path separator or a wildcard, or a component without initializer.
	ErrInvalidName = errors.New("invalid component")
	// ErrReservedName is returned when a name collides with the reserved bus surface.
	ErrReservedName = errors.New("reserved component name")
	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("duplicate component name")
	// ErrAlreadyBooted is returned by Register and Boot once boot has started.
	ErrAlreadyBooted = errors.New("application already booted")
	// ErrInitializer wraps the failure of a component initializer.
	ErrInitializer = errors.New("initializer failed")
	// ErrFatal marks the argument of the app:fatal event.
	ErrFatal = errors.New("fatal error")
	// ErrAwaitCycle is returned by Scope.Await when the wait would deadlock.
	ErrAwaitCycle = errors.New("await cycle")
	// ErrShutdownTimeout is returned by Shutdown when the timeout ended it.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrUnknownComponent is returned by Scope.Await for a name that is not registered.
	ErrUnknownComponent = errors.New("unknown component")
)

func newError(code coreerrors.Code, op string, sentinel error, format string, args ...any) error {
	return coreerrors.Build(code).
		WithOp(op).
		WithErr(sentinel).
		WithMsgf(format, args...).
		Err()
}

func initializerError(name string, cause error) error {
	return coreerrors.Build(coreerrors.CodeInternal).
		WithOp("app.Boot").
		WithErr(fmt.Errorf("%w: %w", ErrInitializer, cause)).
		WithMsgf("component %q", name).
		WithDetails("component", name).
		Err()
}

// FatalError is the argument of the app:fatal event. Its message is the
// message of the underlying failure.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes both ErrFatal and the underlying failure.
func (e *FatalError) Unwrap() []error {
	return []error{ErrFatal, e.Err}
}
