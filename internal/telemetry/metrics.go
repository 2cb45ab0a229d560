// Package telemetry provides OpenTelemetry instrumentation for the
// synchronizer and an optional Prometheus scrape endpoint.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the synchronizer meter
const SyncMetricsMeterName = "github.com/five82/dashsync/sync"

// SyncMetrics holds the instruments recorded by the synchronizer. A nil
// *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	fetches       metric.Int64Counter
	pushMessages  metric.Int64Counter
	reconnects    metric.Int64Counter
	pushConnected metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	fetches, err := meter.Int64Counter(
		"dashsync_fetches_total",
		metric.WithDescription("Status fetches by kind, result and endpoint"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}
	pushMessages, err := meter.Int64Counter(
		"dashsync_push_messages_total",
		metric.WithDescription("Push frames received, by result"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}
	reconnects, err := meter.Int64Counter(
		"dashsync_push_reconnects_total",
		metric.WithDescription("Push reconnects scheduled or abandoned"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return nil, err
	}
	pushConnected, err := meter.Int64Gauge(
		"dashsync_push_connected",
		metric.WithDescription("1 while the push channel is connected"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		fetches:       fetches,
		pushMessages:  pushMessages,
		reconnects:    reconnects,
		pushConnected: pushConnected,
	}, nil
}

// RecordFetch counts a completed fetch.
func (m *SyncMetrics) RecordFetch(ctx context.Context, light, success bool) {
	if m == nil || m.fetches == nil {
		return
	}
	kind := "full"
	if light {
		kind = "light"
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	))
}

// RecordPushMessage counts an inbound frame. result is "applied" or
// "dropped".
func (m *SyncMetrics) RecordPushMessage(ctx context.Context, result string) {
	if m == nil || m.pushMessages == nil {
		return
	}
	m.pushMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordReconnect counts a supervisor decision.
func (m *SyncMetrics) RecordReconnect(ctx context.Context, scheduled bool) {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.Bool("scheduled", scheduled)))
}

// RecordPushConnected records the push connection state.
func (m *SyncMetrics) RecordPushConnected(ctx context.Context, connected bool) {
	if m == nil || m.pushConnected == nil {
		return
	}
	var v int64
	if connected {
		v = 1
	}
	m.pushConnected.Record(ctx, v)
}
