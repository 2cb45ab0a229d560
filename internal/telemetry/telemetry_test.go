package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewSyncMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	m, err := NewSyncMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// Should not panic
	m.RecordFetch(context.Background(), true, true)
	m.RecordPushMessage(context.Background(), "applied")
	m.RecordReconnect(context.Background(), true)
	m.RecordPushConnected(context.Background(), true)
}

func TestSyncMetrics_Records(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFetch(ctx, true, true)
	m.RecordFetch(ctx, false, false)
	m.RecordPushMessage(ctx, "dropped")
	m.RecordReconnect(ctx, false)
	m.RecordPushConnected(ctx, true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != SyncMetricsMeterName {
			continue
		}
		for _, metric := range scope.Metrics {
			names[metric.Name] = true
		}
	}
	for _, want := range []string{
		"dashsync_fetches_total",
		"dashsync_push_messages_total",
		"dashsync_push_reconnects_total",
		"dashsync_push_connected",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestRouter_MetricsAndHealth(t *testing.T) {
	t.Parallel()

	provider, err := NewPrometheusProvider()
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewSyncMetrics(provider)
	require.NoError(t, err)
	m.RecordFetch(context.Background(), true, true)

	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(Router(provider.Handler(), healthy.Load))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dashsync_fetches")

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
