package obsx

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/PaulAvery/app/obsx/internal"
)

// MeterName is the instrumentation scope of the lifecycle instruments.
const MeterName = "github.com/PaulAvery/app"

// Options holds configuration for the metrics provider.
type Options struct {
	ServiceName    string            // Service name recorded on the resource
	ServiceVersion string            // Service version
	InstanceID     string            // Instance id; a random UUID when empty
	ResourceAttrs  map[string]string // Additional resource attributes
}

// Provider manages the OpenTelemetry meter provider and its Prometheus registry.
// The provider should be shut down when no longer needed.
type Provider struct {
	impl    *internal.Provider
	started time.Time
}

// NewProvider creates a metrics provider exporting to a private Prometheus registry.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	impl, err := internal.NewProvider(ctx, internal.ProviderOptions{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.ServiceVersion,
		InstanceID:     opts.InstanceID,
		ResourceAttrs:  opts.ResourceAttrs,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{impl: impl, started: time.Now()}, nil
}

// Handler returns an HTTP handler serving the metrics in Prometheus text format.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", provider.Handler())
func (p *Provider) Handler() http.Handler {
	return p.impl.Handler()
}

// InstanceID returns the service.instance.id recorded on the resource.
func (p *Provider) InstanceID() string {
	return p.impl.InstanceID
}

// Registry returns the Prometheus registry the exporter writes to.
func (p *Provider) Registry() *promclient.Registry {
	return p.impl.Registry
}

// Meter returns a Meter for custom instruments, e.g. one per component.
func (p *Provider) Meter(name string) api.Meter {
	return p.impl.MeterProvider.Meter(name)
}

// EnableRuntimeMetrics observes goroutines, heap, GC cycles and uptime.
// Call it at most once per provider.
func (p *Provider) EnableRuntimeMetrics() error {
	return internal.RegisterRuntimeMetrics(p.Meter(MeterName+"/runtime"), p.started)
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.impl.Shutdown(ctx)
}

// Component states recorded on app_components.
const (
	StatePending = "pending"
	StateReady   = "ready"
	StateFailed  = "failed"
)

// Metrics records bus activity and lifecycle transitions. It satisfies the
// observer interfaces of both busx and app.
type Metrics struct {
	in *internal.Instruments
}

// NewMetrics creates the lifecycle instruments on the provider.
func NewMetrics(p *Provider) (*Metrics, error) {
	in, err := internal.NewInstruments(p.Meter(MeterName))
	if err != nil {
		return nil, err
	}
	return &Metrics{in: in}, nil
}

// EventEmitted counts one emit of path.
func (m *Metrics) EventEmitted(path string, handlers int) {
	m.in.EventsEmitted.Add(context.Background(), 1, api.WithAttributes(attribute.String("event", path)))
}

// HandlerFailed counts one failed handler for path.
func (m *Metrics) HandlerFailed(path string, err error) {
	m.in.HandlerFailures.Add(context.Background(), 1, api.WithAttributes(attribute.String("event", path)))
}

// ComponentRegistered records a component entering the pending state.
func (m *Metrics) ComponentRegistered(name string) {
	m.in.Components.Add(context.Background(), 1, stateAttr(StatePending))
}

// ComponentInitialized records the outcome and duration of an initializer.
func (m *Metrics) ComponentInitialized(name string, elapsed time.Duration, err error) {
	ctx := context.Background()
	component := attribute.String("component", name)

	m.in.Components.Add(ctx, -1, stateAttr(StatePending))
	if err != nil {
		m.in.Components.Add(ctx, 1, stateAttr(StateFailed))
		m.in.InitFailures.Add(ctx, 1, api.WithAttributes(component))
	} else {
		m.in.Components.Add(ctx, 1, stateAttr(StateReady))
	}
	m.in.InitDuration.Record(ctx, elapsed.Seconds(), api.WithAttributes(component))
}

// BootCompleted records the duration of the boot phase.
func (m *Metrics) BootCompleted(elapsed time.Duration, err error) {
	m.in.BootDuration.Record(context.Background(), elapsed.Seconds(),
		api.WithAttributes(attribute.Bool("success", err == nil)))
}

// ShutdownCompleted records the duration of a shutdown and whether the
// timeout ended it.
func (m *Metrics) ShutdownCompleted(elapsed time.Duration, timedOut bool) {
	ctx := context.Background()
	m.in.ShutdownDuration.Record(ctx, elapsed.Seconds())
	if timedOut {
		m.in.ShutdownTimeouts.Add(ctx, 1)
	}
}

func stateAttr(state string) api.AddOption {
	return api.WithAttributes(attribute.String("state", state))
}
