package o11y

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the call gateway's set of named instruments, built from an
// explicit metric.Meter rather than the package-level meter so tests can
// wire a manual reader without touching global state.
type Metrics struct {
	CallsActive             metric.Int64UpDownCounter
	CallDuration            metric.Float64Histogram
	CallsRejected           metric.Int64Counter
	TrunkStatus             metric.Int64Gauge
	TrunkResponseTime       metric.Float64Histogram
	TrunkReconnectAttempts  metric.Int64Counter
	AudioLowConfidence      metric.Int64Counter
	WebhookEventsTotal      metric.Int64Counter
}

// NewMetrics registers the gateway's instruments against the given
// meter provider. Each component (CO, TS, WI) records into the subset of
// fields it owns.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/voxgate/callgateway/o11y")

	m := &Metrics{}
	var err error

	m.CallsActive, err = meter.Int64UpDownCounter(
		"voxgate.calls.active",
		metric.WithDescription("Number of calls currently in an active or processing state"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	m.CallDuration, err = meter.Float64Histogram(
		"voxgate.call.duration",
		metric.WithDescription("Call duration from start to end"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsRejected, err = meter.Int64Counter(
		"voxgate.calls.rejected_total",
		metric.WithDescription("Calls rejected by the admission gate"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	m.TrunkStatus, err = meter.Int64Gauge(
		"voxgate.sip_trunk.status",
		metric.WithDescription("Current trunk health: 0=unknown 1=healthy 2=degraded 3=down"),
	)
	if err != nil {
		return nil, err
	}

	m.TrunkResponseTime, err = meter.Float64Histogram(
		"voxgate.sip_trunk.response_time",
		metric.WithDescription("Trunk reachability probe latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.TrunkReconnectAttempts, err = meter.Int64Counter(
		"voxgate.sip_trunk.reconnection_attempts_total",
		metric.WithDescription("Reconnection attempts made per trunk"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.AudioLowConfidence, err = meter.Int64Counter(
		"voxgate.audio.low_confidence_total",
		metric.WithDescription("Transcription results below the configured confidence threshold"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, err
	}

	m.WebhookEventsTotal, err = meter.Int64Counter(
		"voxgate.webhook.events_total",
		metric.WithDescription("Webhook events received, by event type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTrunkStatus records a trunk's numeric health code, labeled by trunk name.
func (m *Metrics) RecordTrunkStatus(ctx context.Context, trunkName string, code int64) {
	m.TrunkStatus.Record(ctx, code, metric.WithAttributes(attribute.String("trunk", trunkName)))
}

// RecordTrunkProbe records a reachability probe's latency for a trunk.
func (m *Metrics) RecordTrunkProbe(ctx context.Context, trunkName string, latencyMs float64) {
	m.TrunkResponseTime.Record(ctx, latencyMs, metric.WithAttributes(attribute.String("trunk", trunkName)))
}

// RecordReconnectAttempt increments the reconnection counter for a trunk.
func (m *Metrics) RecordReconnectAttempt(ctx context.Context, trunkName string) {
	m.TrunkReconnectAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("trunk", trunkName)))
}

// RecordWebhookEvent increments the webhook counter for an event type.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string) {
	m.WebhookEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordCallAdmitted increments the active-calls gauge on admission.
func (m *Metrics) RecordCallAdmitted(ctx context.Context) {
	m.CallsActive.Add(ctx, 1)
}

// RecordCallEnded decrements the active-calls gauge and records the call's
// total duration.
func (m *Metrics) RecordCallEnded(ctx context.Context, duration time.Duration) {
	m.CallsActive.Add(ctx, -1)
	m.CallDuration.Record(ctx, duration.Seconds())
}

// RecordCallRejected increments the admission-rejection counter, labeled by
// reason (§8 scenario 2: "max_concurrent_calls_reached").
func (m *Metrics) RecordCallRejected(ctx context.Context, reason string) {
	m.CallsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordLowConfidence increments the low-confidence transcription counter
// (§8 scenario 5).
func (m *Metrics) RecordLowConfidence(ctx context.Context) {
	m.AudioLowConfidence.Add(ctx, 1)
}
