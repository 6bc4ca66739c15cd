package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DaemonMetrics holds operational metrics using OTEL semantic conventions
type DaemonMetrics struct {
	checks          metric.Int64Counter
	checkDuration   metric.Float64Histogram
	unreserved      metric.Int64Gauge
	lastSuccessTime metric.Int64Gauge
}

// NewDaemonMetrics creates daemon metrics on the global meter provider
func NewDaemonMetrics() (*DaemonMetrics, error) {
	return newDaemonMetricsWithProvider(otel.GetMeterProvider())
}

func newDaemonMetricsWithProvider(provider metric.MeterProvider) (*DaemonMetrics, error) {
	meter := provider.Meter("richeck.daemon")

	checks, err := meter.Int64Counter(
		"richeck.daemon.checks",
		metric.WithDescription("Number of scheduled reservation checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		"richeck.daemon.check.duration",
		metric.WithDescription("Duration of scheduled reservation checks"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	unreserved, err := meter.Int64Gauge(
		"richeck.resources.unreserved",
		metric.WithDescription("Number of running resources without a reservation"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	lastSuccessTime, err := meter.Int64Gauge(
		"richeck.daemon.last_success",
		metric.WithDescription("Unix time of the last successful check"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		checks:          checks,
		checkDuration:   checkDuration,
		unreserved:      unreserved,
		lastSuccessTime: lastSuccessTime,
	}, nil
}

// RecordCheck records a check run with status
func (m *DaemonMetrics) RecordCheck(ctx context.Context, status string, region string) {
	m.checks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("cloud.provider", "aws"),
			attribute.String("cloud.region", region),
		),
	)
}

// RecordCheckDuration records check duration
func (m *DaemonMetrics) RecordCheckDuration(ctx context.Context, durationSeconds float64, status string) {
	m.checkDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordUnreserved records the number of unreserved resources for a family
func (m *DaemonMetrics) RecordUnreserved(ctx context.Context, count int64, family string, region string) {
	m.unreserved.Record(ctx, count,
		metric.WithAttributes(
			attribute.String("resource.family", family),
			attribute.String("cloud.provider", "aws"),
			attribute.String("cloud.region", region),
		),
	)
}

// RecordLastSuccess records the time of the last successful check
func (m *DaemonMetrics) RecordLastSuccess(ctx context.Context, unixSeconds int64) {
	m.lastSuccessTime.Record(ctx, unixSeconds)
}
