package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// PrometheusEmitter exposes the latest report as metrics via OTEL.
type PrometheusEmitter struct {
	meter metric.Meter

	// Metrics
	unreservedResources metric.Int64ObservableGauge
	excludedResources   metric.Int64ObservableGauge
	unusedUnits         metric.Int64ObservableGauge
	checkDuration       metric.Float64Histogram
	checksTotal         metric.Int64Counter

	// State for observable gauges
	mu     sync.RWMutex
	latest reservation.Report
}

// NewPrometheusEmitter creates a Prometheus emitter on the global meter provider.
func NewPrometheusEmitter() (*PrometheusEmitter, error) {
	return NewPrometheusEmitterWithMeter(otel.Meter("richeck"))
}

// NewPrometheusEmitterWithMeter creates a Prometheus emitter on the given meter.
func NewPrometheusEmitterWithMeter(meter metric.Meter) (*PrometheusEmitter, error) {
	e := &PrometheusEmitter{meter: meter}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *PrometheusEmitter) initMetrics() error {
	var err error

	e.unreservedResources, err = e.meter.Int64ObservableGauge(
		"richeck_unreserved_resources",
		metric.WithDescription("Running resources not covered by a reservation"),
	)
	if err != nil {
		return fmt.Errorf("create unreserved_resources gauge: %w", err)
	}

	e.excludedResources, err = e.meter.Int64ObservableGauge(
		"richeck_excluded_resources",
		metric.WithDescription("Unreserved resources matching the exclude pattern"),
	)
	if err != nil {
		return fmt.Errorf("create excluded_resources gauge: %w", err)
	}

	e.unusedUnits, err = e.meter.Int64ObservableGauge(
		"richeck_unused_reservation_units",
		metric.WithDescription("Reservation units left unused after matching"),
	)
	if err != nil {
		return fmt.Errorf("create unused_reservation_units gauge: %w", err)
	}

	e.checkDuration, err = e.meter.Float64Histogram(
		"richeck_check_duration_seconds",
		metric.WithDescription("Time taken to run a reservation check"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create check_duration histogram: %w", err)
	}

	e.checksTotal, err = e.meter.Int64Counter(
		"richeck_checks_total",
		metric.WithDescription("Total reservation checks emitted"),
	)
	if err != nil {
		return fmt.Errorf("create checks counter: %w", err)
	}

	_, err = e.meter.RegisterCallback(e.observe, e.unreservedResources, e.excludedResources, e.unusedUnits)
	if err != nil {
		return fmt.Errorf("register callback: %w", err)
	}

	return nil
}

// Emit records the report as metrics.
func (e *PrometheusEmitter) Emit(ctx context.Context, report reservation.Report) error {
	attrs := metric.WithAttributes(attribute.String("region", report.Region))
	e.checkDuration.Record(ctx, report.Duration.Seconds(), attrs)
	e.checksTotal.Add(ctx, 1, attrs)

	e.mu.Lock()
	e.latest = report
	e.mu.Unlock()

	log.Debug().
		Str("region", report.Region).
		Int("unreserved", report.UnreservedCount()).
		Msg("metrics updated")

	return nil
}

// observe reports the latest check, one point per family and resource type.
func (e *PrometheusEmitter) observe(_ context.Context, o metric.Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	region := e.latest.Region
	for _, fr := range e.latest.Families {
		for typ, n := range countByType(fr.Unreserved) {
			o.ObserveInt64(e.unreservedResources, n, metric.WithAttributes(typeAttrs(region, fr.Family, typ)...))
		}
		for typ, n := range countByType(fr.Excluded) {
			o.ObserveInt64(e.excludedResources, n, metric.WithAttributes(typeAttrs(region, fr.Family, typ)...))
		}
		units := make(map[string]int64)
		for _, r := range fr.Unused {
			units[r.ResourceType] += int64(r.InstanceCount)
		}
		for typ, n := range units {
			o.ObserveInt64(e.unusedUnits, n, metric.WithAttributes(typeAttrs(region, fr.Family, typ)...))
		}
	}

	return nil
}

func countByType(resources []reservation.RunningResource) map[string]int64 {
	counts := make(map[string]int64)
	for _, r := range resources {
		counts[r.ResourceType]++
	}
	return counts
}

func typeAttrs(region string, family reservation.Family, typ string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("region", region),
		attribute.String("family", string(family)),
		attribute.String("type", typ),
	}
}

// Close is a no-op for Prometheus emitter.
func (e *PrometheusEmitter) Close() error {
	return nil
}
