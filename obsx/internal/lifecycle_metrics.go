package internal

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Buckets for lifecycle durations, in seconds.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// Instruments holds the lifecycle instruments of one application.
type Instruments struct {
	EventsEmitted    metric.Int64Counter
	HandlerFailures  metric.Int64Counter
	Components       metric.Int64UpDownCounter
	InitDuration     metric.Float64Histogram
	InitFailures     metric.Int64Counter
	BootDuration     metric.Float64Histogram
	ShutdownDuration metric.Float64Histogram
	ShutdownTimeouts metric.Int64Counter
}

// NewInstruments creates the lifecycle instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)

	if in.EventsEmitted, err = meter.Int64Counter("app_events_emitted",
		metric.WithDescription("Events emitted on the bus, by path")); err != nil {
		return nil, fmt.Errorf("app_events_emitted: %w", err)
	}
	if in.HandlerFailures, err = meter.Int64Counter("app_handler_failures",
		metric.WithDescription("Bus handlers that returned an error or panicked, by path")); err != nil {
		return nil, fmt.Errorf("app_handler_failures: %w", err)
	}
	if in.Components, err = meter.Int64UpDownCounter("app_components",
		metric.WithDescription("Registered components, by state")); err != nil {
		return nil, fmt.Errorf("app_components: %w", err)
	}
	if in.InitDuration, err = meter.Float64Histogram("app_component_init_seconds",
		metric.WithDescription("Duration of component initializers"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, fmt.Errorf("app_component_init_seconds: %w", err)
	}
	if in.InitFailures, err = meter.Int64Counter("app_component_init_failures",
		metric.WithDescription("Component initializers that failed")); err != nil {
		return nil, fmt.Errorf("app_component_init_failures: %w", err)
	}
	if in.BootDuration, err = meter.Float64Histogram("app_boot_seconds",
		metric.WithDescription("Duration of the boot phase"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, fmt.Errorf("app_boot_seconds: %w", err)
	}
	if in.ShutdownDuration, err = meter.Float64Histogram("app_shutdown_seconds",
		metric.WithDescription("Duration of the shutdown phase"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, fmt.Errorf("app_shutdown_seconds: %w", err)
	}
	if in.ShutdownTimeouts, err = meter.Int64Counter("app_shutdown_timeouts",
		metric.WithDescription("Shutdowns ended by the timeout instead of settled handlers")); err != nil {
		return nil, fmt.Errorf("app_shutdown_timeouts: %w", err)
	}

	return &in, nil
}
