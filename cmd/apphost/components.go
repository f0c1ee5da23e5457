package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PaulAvery/app"
	"github.com/PaulAvery/app/busx"
	"github.com/PaulAvery/app/configx"
	"github.com/PaulAvery/app/core/log"
)

// database stands in for a connection pool.
type database struct {
	dsn  string
	pool int
}

type api struct {
	db      *database
	serving atomic.Bool
}

func dbComponent(delay time.Duration) app.Component {
	return app.Component{
		Name:   "db",
		Config: map[string]any{"dsn": "memory://demo", "pool": 4},
		Init: func(ctx context.Context, s *app.Scope, cfg configx.Config) (any, error) {
			var settings struct {
				DSN  string `yaml:"dsn" validate:"required"`
				Pool int    `yaml:"pool" validate:"gt=0"`
			}
			if err := cfg.Bind(&settings); err != nil {
				return nil, err
			}

			s.Logger().Debug("connecting", log.Str("dsn", settings.DSN), log.Dur("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			db := &database{dsn: settings.DSN, pool: settings.Pool}
			s.Emit(ctx, "ready", db.dsn)
			s.On(app.EventShutdown, func(context.Context, busx.Event) error {
				s.Logger().Info("closing pool", log.Int("pool", db.pool))
				return nil
			})
			return db, nil
		},
	}
}

func apiComponent() app.Component {
	return app.Component{
		Name: "api",
		Init: func(ctx context.Context, s *app.Scope, _ configx.Config) (any, error) {
			db, err := app.AwaitAs[*database](ctx, s, "db")
			if err != nil {
				return nil, err
			}

			srv := &api{db: db}
			s.On(app.EventBoot, func(context.Context, busx.Event) error {
				srv.serving.Store(true)
				s.Logger().Info("serving", log.Str("db", db.dsn))
				return nil
			})
			s.On(app.EventShutdown, func(context.Context, busx.Event) error {
				srv.serving.Store(false)
				s.Logger().Info("draining")
				return nil
			})
			return srv, nil
		},
	}
}
