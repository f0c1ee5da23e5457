package obsx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Provider, *Metrics) {
	t.Helper()
	ctx := context.Background()

	provider, err := NewProvider(ctx, Options{ServiceName: "obsx-test", ServiceVersion: "0.0.1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	metrics, err := NewMetrics(provider)
	require.NoError(t, err)
	return provider, metrics
}

// find returns the first series of family name whose labels include want.
func find(t *testing.T, reg *promclient.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			return m
		}
	}
	t.Fatalf("series %s%v not found", name, want)
	return nil
}

func TestNewProviderRequiresServiceName(t *testing.T) {
	_, err := NewProvider(context.Background(), Options{})
	assert.Error(t, err)
}

func TestMetricsBusActivity(t *testing.T) {
	provider, metrics := newTestMetrics(t)

	metrics.EventEmitted("app:boot", 2)
	metrics.EventEmitted("app:boot", 0)
	metrics.EventEmitted("db:ready", 1)
	metrics.HandlerFailed("db:ready", errors.New("boom"))

	reg := provider.Registry()
	assert.Equal(t, 2.0, find(t, reg, "app_events_emitted", map[string]string{"event": "app:boot"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "app_handler_failures", map[string]string{"event": "db:ready"}).GetCounter().GetValue())

	count, err := testutil.GatherAndCount(reg, "app_events_emitted")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsComponentStates(t *testing.T) {
	provider, metrics := newTestMetrics(t)

	metrics.ComponentRegistered("db")
	metrics.ComponentRegistered("api")
	metrics.ComponentRegistered("cache")
	metrics.ComponentInitialized("db", 10*time.Millisecond, nil)
	metrics.ComponentInitialized("api", time.Millisecond, errors.New("refused"))

	reg := provider.Registry()
	assert.Equal(t, 1.0, find(t, reg, "app_components", map[string]string{"state": StatePending}).GetGauge().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "app_components", map[string]string{"state": StateReady}).GetGauge().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "app_components", map[string]string{"state": StateFailed}).GetGauge().GetValue())
	assert.Equal(t, 1.0, find(t, reg, "app_component_init_failures", map[string]string{"component": "api"}).GetCounter().GetValue())
	assert.EqualValues(t, 1, find(t, reg, "app_component_init_seconds", map[string]string{"component": "db"}).GetHistogram().GetSampleCount())
}

func TestMetricsBootAndShutdown(t *testing.T) {
	provider, metrics := newTestMetrics(t)

	metrics.BootCompleted(20*time.Millisecond, nil)
	metrics.ShutdownCompleted(50*time.Millisecond, true)
	metrics.ShutdownCompleted(5*time.Millisecond, false)

	reg := provider.Registry()
	assert.EqualValues(t, 1, find(t, reg, "app_boot_seconds", map[string]string{"success": "true"}).GetHistogram().GetSampleCount())
	assert.EqualValues(t, 2, find(t, reg, "app_shutdown_seconds", nil).GetHistogram().GetSampleCount())
	assert.Equal(t, 1.0, find(t, reg, "app_shutdown_timeouts", nil).GetCounter().GetValue())
}

func TestRuntimeMetrics(t *testing.T) {
	provider, _ := newTestMetrics(t)
	require.NoError(t, provider.EnableRuntimeMetrics())

	reg := provider.Registry()
	assert.Greater(t, find(t, reg, "app_runtime_goroutines", nil).GetGauge().GetValue(), 0.0)
	assert.GreaterOrEqual(t, find(t, reg, "app_uptime_seconds", nil).GetGauge().GetValue(), 0.0)
}

func TestHandlerServesMetrics(t *testing.T) {
	provider, metrics := newTestMetrics(t)
	metrics.EventEmitted("app:shutdown", 1)

	srv := httptest.NewServer(provider.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `app_events_emitted{event="app:shutdown"`)
}
