// Package internal provides internal implementation for obsx.
package internal

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RegisterRuntimeMetrics observes goroutines, heap usage, GC cycles and
// process uptime on every collection.
func RegisterRuntimeMetrics(meter metric.Meter, started time.Time) error {
	goroutines, err := meter.Int64ObservableGauge(
		"app_runtime_goroutines",
		metric.WithDescription("Number of goroutines that currently exist"),
	)
	if err != nil {
		return err
	}

	heapBytes, err := meter.Int64ObservableGauge(
		"app_runtime_heap_bytes",
		metric.WithDescription("Heap memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"app_runtime_gc_cycles",
		metric.WithDescription("Total number of GC cycles completed"),
	)
	if err != nil {
		return err
	}

	uptime, err := meter.Float64ObservableGauge(
		"app_uptime_seconds",
		metric.WithDescription("Seconds since the application was created"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))

			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			observer.ObserveInt64(heapBytes, int64(m.HeapAlloc))
			observer.ObserveInt64(gcCount, int64(m.NumGC))

			observer.ObserveFloat64(uptime, time.Since(started).Seconds())
			return nil
		},
		goroutines,
		heapBytes,
		gcCount,
		uptime,
	)

	return err
}
