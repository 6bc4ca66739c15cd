package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Metrics{}
}

func TestDaemonMetrics_RecordCheck(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	dm, err := newDaemonMetricsWithProvider(provider)
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordCheck(ctx, "success", "us-east-1")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sum := findMetric(t, rm, "richeck.daemon.checks").Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)

	attrs := dp.Attributes.ToSlice()
	assert.Contains(t, attrs, attribute.String("status", "success"))
	assert.Contains(t, attrs, attribute.String("cloud.provider", "aws"))
	assert.Contains(t, attrs, attribute.String("cloud.region", "us-east-1"))
}

func TestDaemonMetrics_RecordCheckDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	dm, err := newDaemonMetricsWithProvider(provider)
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordCheckDuration(ctx, 5.5, "failure")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	hist := findMetric(t, rm, "richeck.daemon.check.duration").Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, float64(5.5), dp.Sum)
	assert.Equal(t, uint64(1), dp.Count)
	assert.Contains(t, dp.Attributes.ToSlice(), attribute.String("status", "failure"))
}

func TestDaemonMetrics_RecordUnreserved(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	dm, err := newDaemonMetricsWithProvider(provider)
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordUnreserved(ctx, 7, "rds", "eu-west-1")
	dm.RecordUnreserved(ctx, 3, "rds", "eu-west-1")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	gauge := findMetric(t, rm, "richeck.resources.unreserved").Data.(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)

	dp := gauge.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value) // last value wins
	attrs := dp.Attributes.ToSlice()
	assert.Contains(t, attrs, attribute.String("resource.family", "rds"))
	assert.Contains(t, attrs, attribute.String("cloud.region", "eu-west-1"))
}

func TestDaemonMetrics_RecordLastSuccess(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	dm, err := newDaemonMetricsWithProvider(provider)
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordLastSuccess(ctx, 1700000000)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	gauge := findMetric(t, rm, "richeck.daemon.last_success").Data.(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1700000000), gauge.DataPoints[0].Value)
}
