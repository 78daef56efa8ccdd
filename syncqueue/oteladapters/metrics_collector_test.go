package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/david1995/datasync-queue-go/syncqueue/oteladapters"
)

func Test_NewMetricsCollector_Construction(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)

	assert.NotNil(t, collector, "NewMetricsCollector should return non-nil collector")
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)

	testDuration := 150 * time.Millisecond
	labels := map[string]string{
		"action": "record write",
	}

	collector.RecordDuration("syncqueue_operation_duration_seconds", testDuration, labels)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	histogram := findHistogramMetric(t, resourceMetrics, "syncqueue_operation_duration_seconds")
	require.Len(t, histogram.DataPoints, 1, "Expected exactly one data point")

	dataPoint := histogram.DataPoints[0]

	// 150 ms = 0.15 seconds
	assert.Equal(t, uint64(1), dataPoint.Count, "Histogram count should be 1")
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "Histogram sum should be 0.15 seconds")

	expectedAttrs := attribute.NewSet(attribute.String("action", "record write"))
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)

	labels := map[string]string{
		"outcome": "coalesced",
	}

	collector.IncrementCounter("syncqueue_record_writes_total", labels)
	collector.IncrementCounter("syncqueue_record_writes_total", labels)
	collector.IncrementCounter("syncqueue_record_writes_total", labels)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "syncqueue_record_writes_total")
	require.Len(t, counter.DataPoints, 1, "Expected exactly one data point")

	dataPoint := counter.DataPoints[0]

	assert.Equal(t, int64(3), dataPoint.Value, "Counter should have been incremented 3 times")

	expectedAttrs := attribute.NewSet(attribute.String("outcome", "coalesced"))
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordValue("syncqueue_pending_operations", 7, nil)
	collector.RecordValue("syncqueue_pending_operations", 4, nil)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	gauge := findGaugeMetric(t, resourceMetrics, "syncqueue_pending_operations")
	require.Len(t, gauge.DataPoints, 1, "Expected exactly one data point")

	assert.Equal(t, 4.0, gauge.DataPoints[0].Value, "Gauge should report the latest value")
}

func Test_MetricsCollector_ReusesInstrumentsPerName(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	collector := oteladapters.NewMetricsCollector(meter)

	collector.IncrementCounter("syncqueue_record_writes_total", map[string]string{"outcome": "inserted"})
	collector.IncrementCounter("syncqueue_record_writes_total", map[string]string{"outcome": "inserted"})

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "syncqueue_record_writes_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(2), counter.DataPoints[0].Value)
}

func findHistogramMetric(
	t *testing.T,
	resourceMetrics metricdata.ResourceMetrics,
	name string,
) metricdata.Histogram[float64] {

	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				histogram, isHistogram := m.Data.(metricdata.Histogram[float64])
				require.True(t, isHistogram, "Metric %s should be a float64 histogram", name)

				return histogram
			}
		}
	}

	t.Fatalf("Histogram metric %s not found", name)

	return metricdata.Histogram[float64]{}
}

func findCounterMetric(
	t *testing.T,
	resourceMetrics metricdata.ResourceMetrics,
	name string,
) metricdata.Sum[int64] {

	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				sum, isSum := m.Data.(metricdata.Sum[int64])
				require.True(t, isSum, "Metric %s should be an int64 sum", name)

				return sum
			}
		}
	}

	t.Fatalf("Counter metric %s not found", name)

	return metricdata.Sum[int64]{}
}

func findGaugeMetric(
	t *testing.T,
	resourceMetrics metricdata.ResourceMetrics,
	name string,
) metricdata.Gauge[float64] {

	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				gauge, isGauge := m.Data.(metricdata.Gauge[float64])
				require.True(t, isGauge, "Metric %s should be a float64 gauge", name)

				return gauge
			}
		}
	}

	t.Fatalf("Gauge metric %s not found", name)

	return metricdata.Gauge[float64]{}
}
