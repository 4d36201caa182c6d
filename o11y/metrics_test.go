package o11y

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewMetrics_RegistersAllInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, m)

	m.CallsActive.Add(context.Background(), 1)
	m.CallDuration.Record(context.Background(), 12.5)
	m.CallsRejected.Add(context.Background(), 1)
	m.RecordTrunkStatus(context.Background(), "trunk-1", 1)
	m.RecordTrunkProbe(context.Background(), "trunk-1", 42.0)
	m.RecordReconnectAttempt(context.Background(), "trunk-1")
	m.AudioLowConfidence.Add(context.Background(), 1)
	m.RecordWebhookEvent(context.Background(), "room_started")

	rm := collectMetrics(t, reader)

	names := []string{
		"voxgate.calls.active",
		"voxgate.call.duration",
		"voxgate.calls.rejected_total",
		"voxgate.sip_trunk.status",
		"voxgate.sip_trunk.response_time",
		"voxgate.sip_trunk.reconnection_attempts_total",
		"voxgate.audio.low_confidence_total",
		"voxgate.webhook.events_total",
	}
	for _, name := range names {
		_, ok := findMetric(rm, name)
		assert.True(t, ok, "expected metric %s to be recorded", name)
	}
}

func TestMetrics_RecordTrunkStatus_LabelsByTrunk(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	m.RecordTrunkStatus(context.Background(), "trunk-a", 1)
	m.RecordTrunkStatus(context.Background(), "trunk-b", 3)

	rm := collectMetrics(t, reader)
	metricData, ok := findMetric(rm, "voxgate.sip_trunk.status")
	require.True(t, ok)

	gauge, ok := metricData.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Len(t, gauge.DataPoints, 2)
}

func TestMetrics_RecordWebhookEvent_CountsPerEventType(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp)
	require.NoError(t, err)

	m.RecordWebhookEvent(context.Background(), "room_started")
	m.RecordWebhookEvent(context.Background(), "room_started")
	m.RecordWebhookEvent(context.Background(), "room_finished")

	rm := collectMetrics(t, reader)
	metricData, ok := findMetric(rm, "voxgate.webhook.events_total")
	require.True(t, ok)

	sum, ok := metricData.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
}
