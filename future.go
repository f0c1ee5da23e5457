package app

import (
	"context"
	"fmt"
	"sync"
)

// Future is the single-assignment result of a component initializer.
type Future struct {
	name  string
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture(name string) *Future {
	return &Future{name: name, done: make(chan struct{})}
}

// Name returns the component the future belongs to.
func (f *Future) Name() string {
	return f.name
}

// Done is closed once the future is settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the initializer has returned.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the value and error of the initializer. Both are nil while
// the future is unsettled.
func (f *Future) Result() (any, error) {
	if !f.Settled() {
		return nil, nil
	}
	return f.value, f.err
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle stores the result. Only the first call has an effect.
func (f *Future) settle(value any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		settled = true
	})
	return settled
}

// AwaitAs awaits the named peer of scope and asserts its value to T.
func AwaitAs[T any](ctx context.Context, scope *Scope, name string) (T, error) {
	var zero T

	v, err := scope.Await(ctx, name)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("component %q resolved to %T, not %T", name, v, zero)
	}
	return typed, nil
}
