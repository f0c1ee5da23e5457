// Package runtimex provides the diagnostics endpoint of an application as a
// component.
//
// # Overview
//
// Diagnostics listens during boot and serves:
//
//   - /healthz, 200 as long as the process serves requests
//   - /readyz, 200 once every other component resolved successfully and all
//     health checkers pass, 503 with the pending or failed names otherwise
//   - /metrics, when a metrics handler is given
//
// The server shuts down when app:shutdown is emitted.
//
// # Usage
//
//	provider, _ := obsx.NewProvider(ctx, obsx.Options{ServiceName: "shop"})
//	a.MustRegister(runtimex.Diagnostics(":8081",
//		runtimex.WithMetricsHandler(provider.Handler()),
//	))
package runtimex
