// Package app is a minimal application lifecycle host.
//
// # Overview
//
// Components register with an App under unique names, then Boot runs all of
// their initializers concurrently. Each component receives a Scope: its own
// namespace on the event bus, a named logger, the shutdown trigger and the
// ready futures of every other component, so initializers can await one
// another by name. Shutdown broadcasts app:shutdown, waits at most the
// shutdown timeout, and terminates.
//
// Failures of bus handlers and initializers take the fatal path: app:fatal
// prints "Exiting. Uncaught fatal error: <err>" to stderr and terminates with
// code 1, without a shutdown broadcast.
//
// # Events
//
//   - app:boot, once every initializer succeeded
//   - app:shutdown, at the start of each shutdown
//   - app:fatal, with a *FatalError argument
//
// A component emitting "ready" through its scope emits "<name>:ready" on the
// application bus; emitting "app:custom" reaches subscribers of "app:custom".
//
// # Usage
//
//	a, err := app.New("shop")
//	if err != nil { return err }
//	a.MustRegister(app.Component{
//		Name: "db",
//		Init: func(ctx context.Context, s *app.Scope, cfg configx.Config) (any, error) {
//			return sql.Open("pgx", cfg.String("dsn", ""))
//		},
//	}).MustRegister(app.Component{
//		Name: "api",
//		Init: func(ctx context.Context, s *app.Scope, cfg configx.Config) (any, error) {
//			db, err := app.AwaitAs[*sql.DB](ctx, s, "db")
//			if err != nil { return nil, err }
//			return newServer(db), nil
//		},
//	})
//	return a.Run(ctx)
package app
