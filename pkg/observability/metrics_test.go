package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.ScanMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewScanMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return metrics, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumInt64(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestScanMetrics_RecordFile(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordFile(ctx, "c", observability.StatusParsed, 4, 10, 2*time.Millisecond)
	metrics.RecordFile(ctx, "cpp", observability.StatusCached, 1, 0, 0)
	metrics.RecordFile(ctx, "c", observability.StatusFailed, 0, 0, 0)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(3), sumInt64(t, findMetric(rm, "funcscan.files")))
	assert.Equal(t, int64(5), sumInt64(t, findMetric(rm, "funcscan.functions")))
	assert.Equal(t, int64(10), sumInt64(t, findMetric(rm, "funcscan.calls")))

	hist := findMetric(rm, "funcscan.parse.duration")
	require.NotNil(t, hist)

	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)
}

func TestScanMetrics_RecordCacheLookup(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordCacheLookup(ctx, true)
	metrics.RecordCacheLookup(ctx, false)
	metrics.RecordCacheLookup(ctx, false)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(3), sumInt64(t, findMetric(rm, "funcscan.cache.lookups")))
}

func TestScanMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var metrics *observability.ScanMetrics

	assert.NotPanics(t, func() {
		metrics.RecordFile(context.Background(), "c", observability.StatusParsed, 1, 1, time.Millisecond)
		metrics.RecordCacheLookup(context.Background(), true)
	})
}
