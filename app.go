package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PaulAvery/app/busx"
	"github.com/PaulAvery/app/configx"
	coreerrors "github.com/PaulAvery/app/core/errors"
	"github.com/PaulAvery/app/core/log"
	"github.com/PaulAvery/app/internal/waitgraph"
	"github.com/PaulAvery/app/logx"
)

// Lifecycle events on the application namespace.
const (
	EventBoot     = "app:boot"
	EventShutdown = "app:shutdown"
	EventFatal    = "app:fatal"
)

// InitFunc initializes a component. The value it returns resolves the
// component's ready future; an error fails the boot.
type InitFunc func(ctx context.Context, scope *Scope, cfg configx.Config) (any, error)

// Component is a named unit registered with an App.
type Component struct {
	Name   string
	Init   InitFunc
	Config map[string]any // Defaults for the component's config section
}

type registration struct {
	component Component
	scope     *Scope
	future    *Future
	config    configx.Config
}

// App hosts registered components through register, boot and shutdown.
type App struct {
	name   string
	env    string
	opts   options
	bus    *busx.Bus
	logger log.Logger
	loader configx.Loader
	waits  *waitgraph.Graph

	mu         sync.Mutex
	state      State
	components []*registration
	byName     map[string]*registration

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an application. Its configuration is loaded once here to
// determine the environment.
func New(name string, opts ...Option) (*App, error) {
	if strings.TrimSpace(name) == "" {
		return nil, newError(coreerrors.CodeInvalidArgument, "app.New", ErrInvalidName, "application name is empty")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Loader == nil {
		store := []configx.StoreOption{}
		if o.Logger != nil {
			store = append(store, configx.WithLogger(o.Logger))
		}
		o.Loader = configx.NewStore(store...)
	}
	if err := configx.ValidateStruct(nil, &o); err != nil {
		return nil, coreerrors.Wrap(coreerrors.CodeInvalidArgument, "app.New", err)
	}

	cfg, err := o.Loader.Load(context.Background(), name, nil)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.CodeUnavailable, "app.New", err)
	}
	env := cfg.Env()

	debug := env != "production"
	if o.Debug != nil {
		debug = *o.Debug
	}
	if o.Logger == nil {
		o.Logger = logx.New(logx.WithDebug(debug))
	}

	var busOpts []busx.Option
	if bo, ok := o.Observer.(busx.Observer); ok {
		busOpts = append(busOpts, busx.WithObserver(bo))
	}

	a := &App{
		name:   name,
		env:    env,
		opts:   o,
		bus:    busx.New(busOpts...),
		logger: o.Logger,
		loader: o.Loader,
		state:  StateIdle,
		byName: make(map[string]*registration),
		done:   make(chan struct{}),
	}

	if o.CycleDetection != nil && *o.CycleDetection {
		a.waits = waitgraph.New()
	}

	a.installFatalPath()
	a.installTrace()

	return a, nil
}

// Name returns the application name.
func (a *App) Name() string {
	return a.name
}

// Env returns the configured environment, "local" unless configured.
func (a *App) Env() string {
	return a.env
}

// Logger returns the root logger.
func (a *App) Logger() log.Logger {
	return a.logger
}

// Bus returns the root event bus.
func (a *App) Bus() *busx.Bus {
	return a.bus
}

// State returns the boot state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Components returns the registered names in registration order.
func (a *App) Components() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.components))
	for i, reg := range a.components {
		names[i] = reg.component.Name
	}
	return names
}

// Done is closed when the application terminates.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Register adds a component. No component code runs until Boot.
func (a *App) Register(c Component) error {
	if err := validateComponent(c); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateIdle {
		return newError(coreerrors.CodeFailedPrecondition, "app.Register", ErrAlreadyBooted,
			"cannot register %q after boot", c.Name)
	}
	if _, exists := a.byName[c.Name]; exists {
		return newError(coreerrors.CodeAlreadyExists, "app.Register", ErrDuplicateName,
			"component %q is already registered", c.Name)
	}

	var defaults map[string]any
	if c.Config != nil {
		defaults = map[string]any{c.Name: c.Config}
	}
	cfg, err := a.loader.Load(context.Background(), a.name, defaults)
	if err != nil {
		return coreerrors.Wrapf(coreerrors.CodeUnavailable, "app.Register", err, "config of %q", c.Name)
	}

	scope := newScope(a, c.Name)
	scope.bus.On("app:**", a.redirect(scope.bus))

	reg := &registration{
		component: c,
		scope:     scope,
		future:    newFuture(c.Name),
		config:    cfg.Section(c.Name),
	}
	for _, prev := range a.components {
		prev.scope.link(c.Name, reg.future)
		scope.link(prev.component.Name, prev.future)
	}
	a.components = append(a.components, reg)
	a.byName[c.Name] = reg

	a.logger.Child("app").Child("component").Trace("registering component", log.Str("component", c.Name))
	if a.opts.Observer != nil {
		a.opts.Observer.ComponentRegistered(c.Name)
	}
	return nil
}

// MustRegister is like Register but panics on error. It returns the App so
// registrations can be chained.
func (a *App) MustRegister(c Component) *App {
	if err := a.Register(c); err != nil {
		panic(err)
	}
	return a
}

func validateComponent(c Component) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return newError(coreerrors.CodeInvalidArgument, "app.Register", ErrInvalidName, "component name is empty")
	case strings.ContainsAny(c.Name, busx.Separator+busx.AnySegment):
		return newError(coreerrors.CodeInvalidArgument, "app.Register", ErrInvalidName,
			"component name %q contains %q or %q", c.Name, busx.Separator, busx.AnySegment)
	case busx.Reserved(c.Name):
		return newError(coreerrors.CodeInvalidArgument, "app.Register", ErrReservedName,
			"component name %q is reserved", c.Name)
	case c.Init == nil:
		return newError(coreerrors.CodeInvalidArgument, "app.Register", ErrInvalidName,
			"component %q has no initializer", c.Name)
	}
	return nil
}

// redirect forwards app:<rest> emitted on a component namespace to the
// application namespace. Failures of the forwarded handlers reach the fatal
// path on their own, so they are not repeated here. app:boot and app:shutdown
// belong to the App and are dropped.
func (a *App) redirect(child *busx.Bus) busx.Handler {
	depth := len(busx.Split(child.Prefix()))
	logger := a.logger.Child(child.Prefix())
	return func(ctx context.Context, ev busx.Event) error {
		path := busx.Join(ev.Path[depth:]...)
		if path == EventBoot || path == EventShutdown {
			logger.Warn("lifecycle event emitted by component dropped", log.Str("event", path))
			return nil
		}
		settle := a.bus.Emit(ctx, path, ev.Args...)
		select {
		case <-settle.Done():
		case <-ctx.Done():
		}
		return nil
	}
}

// installTrace logs every emitted path on the app:event logger.
func (a *App) installTrace() {
	events := a.logger.Child("app").Child("event")
	a.bus.On(busx.AnySegments, func(ctx context.Context, ev busx.Event) error {
		events.Trace("event", log.Str("path", ev.Name()), log.Int("args", len(ev.Args)))
		return nil
	})
}

func (a *App) String() string {
	return fmt.Sprintf("app(%s, %s)", a.name, a.State())
}
