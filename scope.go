package app

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/PaulAvery/app/busx"
	coreerrors "github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/core/log"
	"github.com/PaulAvery/app/internal/waitgraph"
)

// Scope is the view of the application handed to one component: its own
// namespace on the bus, a named logger, the shutdown trigger and the ready
// futures of every other component.
type Scope struct {
	app    *App
	name   string
	bus    *busx.Bus
	logger log.Logger

	mu    sync.RWMutex
	peers map[string]*Future
}

func newScope(a *App, name string) *Scope {
	return &Scope{
		app:    a,
		name:   name,
		bus:    a.bus.Child(name),
		logger: a.logger.Child(name),
		peers:  make(map[string]*Future),
	}
}

// Name returns the component name.
func (s *Scope) Name() string {
	return s.name
}

// Env returns the environment of the application.
func (s *Scope) Env() string {
	return s.app.env
}

// Logger returns the component logger.
func (s *Scope) Logger() log.Logger {
	return s.logger
}

// Emit emits path under the component's namespace. Paths beginning with
// "app:" are forwarded to the application namespace instead, except app:boot
// and app:shutdown which only the App emits. Use Shutdown to stop the App.
func (s *Scope) Emit(ctx context.Context, path string, args ...any) *busx.Settle {
	return s.bus.Emit(ctx, path, args...)
}

// On subscribes to pattern on the application bus, unprefixed, so a
// component can listen to "app:boot" or "db:ready".
func (s *Scope) On(pattern string, handler busx.Handler) (off func()) {
	return s.app.bus.On(pattern, handler)
}

// Shutdown starts an application shutdown and returns immediately. It is safe
// to call from inside a handler.
func (s *Scope) Shutdown() {
	go func() {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown requested by component ended with error", log.Str("error", err.Error()))
		}
	}()
}

// Component returns the ready future of the named peer.
func (s *Scope) Component(name string) (*Future, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.peers[name]
	return f, ok
}

// Components returns the names of every peer, sorted.
func (s *Scope) Components() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.peers))
	for name := range s.peers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Await blocks until the named peer's initializer has returned and yields its
// result. With cycle detection on, a wait made with the context handed to the
// initializer that would deadlock fails with ErrAwaitCycle instead. Waits
// from goroutines started with any other context are never refused.
func (s *Scope) Await(ctx context.Context, name string) (any, error) {
	if name == s.name {
		return nil, newError(coreerrors.CodeAborted, "scope.Await", ErrAwaitCycle,
			"component %q awaits itself", name)
	}

	future, ok := s.Component(name)
	if !ok {
		return nil, newError(coreerrors.CodeNotFound, "scope.Await", ErrUnknownComponent,
			"component %q is not registered", name)
	}

	if s.app.waits != nil && initializing(ctx) == s.name && !future.Settled() {
		release, err := s.app.waits.Add(s.name, name)
		if err != nil {
			var cycle *waitgraph.CycleError
			if errors.As(err, &cycle) {
				s.logger.Warn("await would deadlock", log.Any("cycle", cycle.Path))
			}
			return nil, newError(coreerrors.CodeAborted, "scope.Await", ErrAwaitCycle, "%s", err.Error())
		}
		defer release()
	}

	return future.Await(ctx)
}

type initKey struct{}

// withInitializer marks ctx as the call path of name's initializer.
func withInitializer(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, initKey{}, name)
}

func initializing(ctx context.Context) string {
	name, _ := ctx.Value(initKey{}).(string)
	return name
}

func (s *Scope) link(name string, future *Future) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[name] = future
}
