// Command gateway is the voice-AI call gateway's composition root. It loads
// sip.yaml, wires the Token Authority, Media API Client, Trunk Supervisor,
// Conversation Journal, Call Orchestrator, Webhook Ingestor, and SIP
// Front-End together, and serves the webhook and operator HTTP endpoints
// until signaled to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voxgate/callgateway/internal/config"
	"github.com/voxgate/callgateway/internal/httputil"
	"github.com/voxgate/callgateway/o11y"
	"github.com/voxgate/callgateway/pkg/call"
	"github.com/voxgate/callgateway/pkg/journal"
	"github.com/voxgate/callgateway/pkg/media"
	"github.com/voxgate/callgateway/pkg/providers"
	"github.com/voxgate/callgateway/pkg/sip"
	"github.com/voxgate/callgateway/pkg/token"
	"github.com/voxgate/callgateway/pkg/trunk"
	"github.com/voxgate/callgateway/pkg/webhook"
)

func main() {
	configPath := flag.String("config", "sip.yaml", "path to sip.yaml")
	flag.Parse()

	logger := o11y.NewLogger()
	ctx := context.Background()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error(ctx, "gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, logger *o11y.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracer, err := o11y.InitTracer("voxgate-call-gateway")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer()

	promExporter, err := otelprometheus.New()
	if err != nil {
		return fmt.Errorf("init prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	metrics, err := o11y.NewMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	if err := journal.MigrateToLatest(cfg.Gateway.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.Gateway.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Token Authority signs/validates every capability token MC and SF use.
	authority, err := token.NewAuthority(
		token.WithCredentials(cfg.Gateway.MediaAPIKey, cfg.Gateway.MediaAPISecret),
	)
	if err != nil {
		return fmt.Errorf("init token authority: %w", err)
	}
	defer authority.Shutdown(ctx)

	mediaClient := media.New(authority,
		media.WithBaseURL(cfg.Gateway.MediaBaseURL),
		media.WithAdminIdentity(cfg.Gateway.MediaAdminIdentity),
		media.WithRetryPolicy(media.DefaultRetryPolicy()),
	)

	trunkConfigs := make([]trunk.Config, len(cfg.SIPTrunks))
	for i, t := range cfg.SIPTrunks {
		trunkConfigs[i] = trunk.Config{
			Name:                t.Name,
			Host:                t.Host,
			Port:                t.Port,
			HealthCheckEnabled:  t.HealthCheck.Enabled,
			HealthCheckInterval: t.HealthCheck.Interval,
			MaxFailures:         t.HealthCheck.MaxFailures,
			RetryEnabled:        t.Retry.Enabled,
			RetryInitial:        time.Duration(t.Retry.InitialDelayMs) * time.Millisecond,
			RetryMax:            time.Duration(t.Retry.MaxDelayMs) * time.Millisecond,
			RetryMultiplier:     t.Retry.Multiplier,
			RetryMaxAttempts:    t.Retry.MaxAttempts,
		}
	}
	supervisor := trunk.NewSupervisor(trunkConfigs, trunk.WithMetrics(metrics))
	defer supervisor.Shutdown(ctx)

	journalStore := journal.New(pool)

	sttProvider := providers.NewSTT(cfg.Gateway.STTBaseURL, cfg.Gateway.STTAPIKey, 10*time.Second)
	llmProvider := providers.NewLLM(cfg.Gateway.LLMBaseURL, cfg.Gateway.LLMAPIKey, 30*time.Second)
	ttsProvider := providers.NewTTS(cfg.Gateway.TTSBaseURL, cfg.Gateway.TTSAPIKey, 15*time.Second)

	orchestrator := call.NewOrchestrator(
		journalStore, mediaClient, sttProvider, llmProvider, ttsProvider,
		call.WithMaxConcurrentCalls(cfg.Gateway.MaxConcurrentCalls),
		call.WithAudioFlushChunkCount(cfg.Gateway.AudioFlushChunkCount),
		call.WithResponseTimeout(cfg.Gateway.ResponseTimeout),
		call.WithModel(cfg.Gateway.LLMModel),
		call.WithMetrics(metrics),
	)

	consumer := webhook.NewConsumer(orchestrator, metrics, 1024)
	webhookServer := webhook.NewServer(consumer, cfg.Gateway.WebhookSigningKey)

	agentClient := providers.NewAgent(cfg.Gateway.AgentBaseURL, cfg.Gateway.AgentAPIKey, 10*time.Second)
	frontend := sip.NewFrontend(mediaClient, authority, agentClient, orchestrator,
		sip.WithRoutingRules(routingRules(cfg.RoutingRules)),
		sip.WithMetrics(metrics),
	)
	sipServer := sip.NewServer(frontend)

	health := o11y.NewHealthRegistry()

	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runRetentionLoop(shutdownCtx, journalStore, cfg.Gateway.JournalRetentionDays, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info(ctx, "shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 3)
	go func() {
		errCh <- webhookServer.Serve(shutdownCtx, cfg.Gateway.WebhookAddr)
	}()
	go func() {
		errCh <- sipServer.Serve(shutdownCtx, cfg.Gateway.SipAddr)
	}()
	go func() {
		errCh <- serveOperator(shutdownCtx, cfg.Gateway.OperatorAddr, health)
	}()

	var firstErr error
	for range 3 {
		if err := <-errCh; err != nil && err != context.Canceled && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// routingRules converts sip.yaml's routing_rules[] into SF's internal
// RoutingRule table, preserving declared order (§4.6 step 2: first match
// wins).
func routingRules(in []config.RoutingRuleConfig) []sip.RoutingRule {
	out := make([]sip.RoutingRule, len(in))
	for i, r := range in {
		out[i] = sip.RoutingRule{
			CallerPattern:  r.CallerPattern,
			CalledPattern:  r.CalledPattern,
			TrunkPattern:   r.TrunkPattern,
			HeaderPatterns: r.HeaderConditions,
			Action:         sip.RouteAction(r.Action),
		}
	}
	return out
}

// runRetentionLoop applies the journal's retention policy (§4.7) once a day
// until ctx is cancelled.
func runRetentionLoop(ctx context.Context, store *journal.Store, retentionDays int, logger *o11y.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.Cleanup(ctx, retentionDays)
			if err != nil {
				logger.Error(ctx, "journal retention cleanup failed", "error", err)
				continue
			}
			logger.Info(ctx, "journal retention cleanup complete", "deleted_calls", deleted)
		}
	}
}

// serveOperator runs the read-only metrics/health endpoint until ctx is
// cancelled.
func serveOperator(ctx context.Context, addr string, health *o11y.HealthRegistry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		results := health.CheckAll(r.Context())
		for _, res := range results {
			if res.Status != o11y.Healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	var lifecycle httputil.ServerLifecycle
	return lifecycle.Serve(ctx, addr, mux, 15*time.Second, 15*time.Second, 60*time.Second, "operator")
}
