// Package o11y provides the call gateway's observability primitives:
// OpenTelemetry-based tracing and metrics, structured logging via slog, and
// health checks for the components wired up in cmd/gateway.
//
// # Tracing
//
// [StartSpan] creates spans with typed attributes, and [InitTracer]
// configures the global OTel tracer provider:
//
//	shutdown, err := o11y.InitTracer("call-gateway",
//	    o11y.WithSpanExporter(exporter),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shutdown()
//
//	ctx, span := o11y.StartSpan(ctx, "call.audio_turn", o11y.Attrs{
//	    o11y.AttrCallID:         callID,
//	    o11y.AttrTurnSequence:   seq,
//	})
//	defer span.End()
//
// The [Span] interface wraps OTel spans with a simplified API for setting
// attributes, recording errors, and setting status codes.
//
// # Metrics
//
// [Metrics], built by [NewMetrics] against an explicit meter provider, holds
// the gateway's named instruments: active/rejected call counts, call
// duration, trunk health and probe latency, reconnection attempts, low
// confidence transcriptions, and webhook event counts. Package-level
// [TokenUsage], [OperationDuration], and [Cost] remain available for any
// external LLM/STT/TTS collaborator that reports token or cost usage; the
// generic [Counter] and [Histogram] functions cover ad-hoc metrics.
//
// # Logging
//
// [Logger] wraps slog.Logger with context-aware convenience methods and
// functional options for configuration:
//
//	logger := o11y.NewLogger(
//	    o11y.WithLogLevel("debug"),
//	    o11y.WithJSON(),
//	)
//	logger.Info(ctx, "call started", "call_id", callID, "trunk", trunkName)
//
// Loggers propagate through context via [WithLogger] and [FromContext].
//
// # Health Checks
//
// The [HealthChecker] interface provides health probes for components.
// [HealthRegistry] aggregates named checkers and runs them concurrently
// via [HealthRegistry.CheckAll]:
//
//	registry := o11y.NewHealthRegistry()
//	registry.Register("journal", journalChecker)
//	registry.Register("media_api", mediaChecker)
//	results := registry.CheckAll(ctx)
//
// [HealthCheckerFunc] adapts plain functions to the HealthChecker interface.
package o11y
