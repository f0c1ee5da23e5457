// Package obsx provides OpenTelemetry metrics with Prometheus export for
// applications built on the lifecycle host.
//
// # Overview
//
// obsx wires an OpenTelemetry meter provider to a private Prometheus registry
// and exposes it through a promhttp handler. Metrics implements the bus and
// application observer interfaces, so attaching it with app.WithMetrics is
// enough to record:
//
//   - app_events_emitted and app_handler_failures, labelled by event path
//   - app_components, labelled by state (pending, ready, failed)
//   - app_component_init_seconds and app_component_init_failures
//   - app_boot_seconds, app_shutdown_seconds and app_shutdown_timeouts
//
// EnableRuntimeMetrics adds goroutine, heap, GC and uptime observations.
//
// # Usage
//
//	provider, err := obsx.NewProvider(ctx, obsx.Options{ServiceName: "apphost"})
//	if err != nil { return err }
//	metrics, err := obsx.NewMetrics(provider)
//	if err != nil { return err }
//	defer provider.Shutdown(ctx)
package obsx
