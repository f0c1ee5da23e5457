package runtimex

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PaulAvery/app"
	"github.com/PaulAvery/app/busx"
	"github.com/PaulAvery/app/configx"
	"github.com/PaulAvery/app/core/log"
	"github.com/PaulAvery/app/runtimex/internal"
)

// DefaultName is the component name Diagnostics registers under.
const DefaultName = "diagnostics"

// HealthChecker is an additional readiness check.
type HealthChecker = internal.HealthChecker

// Settings is the config section of the diagnostics component. Timeouts are
// Go duration strings such as "2s" or "500ms", also when set from the
// environment; a bare number is rejected.
type Settings struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	CheckTimeout      time.Duration `yaml:"check_timeout" validate:"gte=0"`
}

// Option configures the diagnostics component.
type Option func(*options)

type options struct {
	name     string
	metrics  http.Handler
	checkers []HealthChecker
}

// WithName registers the component under name instead of DefaultName.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMetricsHandler serves handler on /metrics, e.g. obsx.Provider.Handler().
func WithMetricsHandler(handler http.Handler) Option {
	return func(o *options) {
		o.metrics = handler
	}
}

// WithHealthChecker adds checks that must pass for /readyz to report ready.
func WithHealthChecker(checkers ...HealthChecker) Option {
	return func(o *options) {
		o.checkers = append(o.checkers, checkers...)
	}
}

// Server is the ready value of the diagnostics component.
type Server struct {
	addr net.Addr
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr.String()
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return "http://" + s.addr.String()
}

// Diagnostics returns a component serving /healthz, /readyz and optionally
// /metrics on addr. The "addr" key of its config section overrides addr.
// /readyz reports ready once every other component has initialized
// successfully and all health checkers pass. The server stops on
// app:shutdown.
func Diagnostics(addr string, opts ...Option) app.Component {
	o := options{name: DefaultName}
	for _, opt := range opts {
		opt(&o)
	}

	return app.Component{
		Name: o.name,
		Config: map[string]any{
			"addr":                addr,
			"read_header_timeout": "5s",
			"check_timeout":       "2s",
		},
		Init: func(ctx context.Context, scope *app.Scope, cfg configx.Config) (any, error) {
			return start(scope, cfg, o)
		},
	}
}

func start(scope *app.Scope, cfg configx.Config, o options) (*Server, error) {
	var settings Settings
	if err := cfg.Bind(&settings); err != nil {
		return nil, fmt.Errorf("diagnostics settings: %w", err)
	}

	checks := &internal.Checks{}
	checks.Add(o.checkers...)
	probe := &internal.Probe{
		Peers:        peersOf(scope),
		Checks:       checks,
		CheckTimeout: settings.CheckTimeout,
	}

	ln, err := net.Listen("tcp", settings.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", settings.Addr, err)
	}

	logger := scope.Logger()
	srv := &http.Server{
		Handler:           internal.NewMux(probe, o.metrics),
		ReadHeaderTimeout: settings.ReadHeaderTimeout,
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Info("diagnostics server listening", log.Str("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "diagnostics server failed")
			return err
		}
		return nil
	})

	scope.On(app.EventShutdown, func(ctx context.Context, _ busx.Event) error {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("diagnostics server shutdown incomplete", log.Str("error", err.Error()))
			return nil
		}
		if err := g.Wait(); err != nil {
			logger.Warn("diagnostics server ended with error", log.Str("error", err.Error()))
		}
		logger.Debug("diagnostics server stopped")
		return nil
	})

	return &Server{addr: ln.Addr()}, nil
}

func peersOf(scope *app.Scope) func() []internal.Peer {
	return func() []internal.Peer {
		names := scope.Components()
		peers := make([]internal.Peer, 0, len(names))
		for _, name := range names {
			future, ok := scope.Component(name)
			if !ok {
				continue
			}
			_, err := future.Result()
			peers = append(peers, internal.Peer{Name: name, Settled: future.Settled(), Err: err})
		}
		return peers
	}
}
