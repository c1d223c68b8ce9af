package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RefreshMetricsMeterName is the name used for the refresh metrics meter
const RefreshMetricsMeterName = "github.com/clemenko/dzver/refresher"

// RefreshMetrics holds the OpenTelemetry instruments recorded by the
// refresh loop. A nil *RefreshMetrics is a no-op.
type RefreshMetrics struct {
	cyclesTotal     metric.Int64Counter
	cycleDuration   metric.Float64Histogram
	degradedSources metric.Int64Gauge
}

// NewRefreshMetrics creates a new RefreshMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewRefreshMetrics(provider metric.MeterProvider) (*RefreshMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RefreshMetricsMeterName)

	cyclesTotal, err := meter.Int64Counter(
		"dzver_refresh_cycles_total",
		metric.WithDescription("Completed refresh cycles by outcome"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"dzver_refresh_duration_seconds",
		metric.WithDescription("Duration of refresh cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	degradedSources, err := meter.Int64Gauge(
		"dzver_degraded_sources",
		metric.WithDescription("Number of sources carrying a degraded sentinel in the latest snapshot"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshMetrics{
		cyclesTotal:     cyclesTotal,
		cycleDuration:   cycleDuration,
		degradedSources: degradedSources,
	}, nil
}

// RecordCycle records the outcome of one refresh cycle.
func (m *RefreshMetrics) RecordCycle(ctx context.Context, duration time.Duration, success bool, degraded int64) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.cyclesTotal.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		m.degradedSources.Record(ctx, degraded)
	}
}
