package trunk

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/voxgate/callgateway/o11y"
)

// Dialer abstracts the reachability probe's transport so tests can avoid
// real network I/O. net.DialTimeout satisfies it.
type Dialer func(network, address string, timeout time.Duration) (net.Conn, error)

type entry struct {
	cfg Config

	mu           sync.Mutex
	health       Health
	reconnecting bool
}

// Supervisor is the Trunk Supervisor (TS): it runs one health-probe loop per
// configured trunk and, on sustained failure, at most one concurrent
// reconnection task per trunk (§8 property 5).
type Supervisor struct {
	dial    Dialer
	logger  *o11y.Logger
	metrics *o11y.Metrics

	mu     sync.Mutex
	trunks map[string]*entry

	stop chan struct{}
	wg   sync.WaitGroup
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithDialer overrides the reachability probe's dial function (for tests).
func WithDialer(d Dialer) SupervisorOption {
	return func(s *Supervisor) { s.dial = d }
}

// WithMetrics attaches an o11y.Metrics sink for sip_trunk_status,
// sip_trunk_response_time, and sip_trunk_reconnection_attempts.
func WithMetrics(m *o11y.Metrics) SupervisorOption {
	return func(s *Supervisor) { s.metrics = m }
}

// NewSupervisor constructs a Supervisor and starts a probe loop for each
// configured trunk.
func NewSupervisor(configs []Config, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		dial:   net.DialTimeout,
		logger: o11y.NewLogger(),
		trunks: make(map[string]*entry, len(configs)),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, cfg := range configs {
		cfg = cfg.withDefaults()
		e := &entry{cfg: cfg, health: Health{Trunk: cfg.Name, State: StateUnknown}}
		s.trunks[cfg.Name] = e

		if cfg.HealthCheckEnabled {
			s.wg.Add(1)
			go s.probeLoop(e)
		}
	}

	return s
}

func (s *Supervisor) probeLoop(e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.cfg.HealthCheckInterval)
	defer ticker.Stop()

	s.probeOnce(e)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.probeOnce(e)
		}
	}
}

func (s *Supervisor) probeOnce(e *entry) {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	start := time.Now()
	conn, err := s.dial("tcp", addr, e.cfg.ProbeTimeout)
	latency := time.Since(start)
	if conn != nil {
		conn.Close()
	}

	e.mu.Lock()
	e.health.LastProbeAt = start
	e.health.LastLatency = latency

	if err != nil {
		e.health.FailureCount++
		e.health.LastError = err.Error()
		if e.health.State != StateConnecting {
			if e.health.FailureCount >= e.cfg.MaxFailures {
				e.health.State = StateFailed
			} else {
				e.health.State = StateDisconnected
			}
		}
	} else {
		e.health.FailureCount = 0
		e.health.LastError = ""
		e.health.State = StateConnected
	}

	failureCount := e.health.FailureCount
	needsReconnect := failureCount >= e.cfg.MaxFailures && e.cfg.RetryEnabled && !e.reconnecting
	if needsReconnect {
		e.reconnecting = true
	}
	e.mu.Unlock()

	s.recordProbeMetrics(e, latency, err == nil)

	if needsReconnect {
		s.wg.Add(1)
		go s.reconnect(e)
	}
}

func (s *Supervisor) recordProbeMetrics(e *entry, latency time.Duration, healthy bool) {
	if s.metrics == nil {
		return
	}
	ctx := context.Background()
	s.metrics.RecordTrunkProbe(ctx, e.cfg.Name, float64(latency.Milliseconds()))

	code := int64(1)
	if !healthy {
		code = 3
	}
	s.metrics.RecordTrunkStatus(ctx, e.cfg.Name, code)
}

// reconnect runs the bounded exponential-backoff reconnection task for one
// trunk. Only one such task may run per trunk at a time; probeOnce enforces
// that via entry.reconnecting before launching this goroutine.
func (s *Supervisor) reconnect(e *entry) {
	defer s.wg.Done()
	defer func() {
		e.mu.Lock()
		e.reconnecting = false
		e.mu.Unlock()
	}()

	e.mu.Lock()
	e.health.State = StateConnecting
	e.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	for attempt := 0; attempt < e.cfg.RetryMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-s.stop:
				return
			case <-time.After(backoffDelay(e.cfg, attempt-1)):
			}
		}

		if s.metrics != nil {
			s.metrics.RecordReconnectAttempt(context.Background(), e.cfg.Name)
		}

		conn, err := s.dial("tcp", addr, e.cfg.ProbeTimeout)
		if conn != nil {
			conn.Close()
		}

		e.mu.Lock()
		if err == nil {
			e.health.State = StateConnected
			e.health.FailureCount = 0
			e.health.LastError = ""
			e.mu.Unlock()
			s.logger.Info(context.Background(), "trunk reconnected", "trunk", e.cfg.Name, "attempt", attempt+1)
			return
		}
		e.health.LastError = err.Error()
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.health.State = StateFailed
	e.mu.Unlock()
	s.logger.Error(context.Background(), "trunk reconnection exhausted", "trunk", e.cfg.Name, "attempts", e.cfg.RetryMaxAttempts)
}

// backoffDelay computes attempt n's delay (0-indexed) per §4.3:
// min(initial·multiplier^n, max).
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.RetryInitial) * math.Pow(cfg.RetryMultiplier, float64(attempt))
	if max := float64(cfg.RetryMax); d > max {
		d = max
	}
	return time.Duration(d)
}

// HealthStatus returns a snapshot of every configured trunk's health.
func (s *Supervisor) HealthStatus() map[string]Health {
	s.mu.Lock()
	trunks := make([]*entry, 0, len(s.trunks))
	for _, e := range s.trunks {
		trunks = append(trunks, e)
	}
	s.mu.Unlock()

	out := make(map[string]Health, len(trunks))
	for _, e := range trunks {
		e.mu.Lock()
		out[e.cfg.Name] = e.health
		e.mu.Unlock()
	}
	return out
}

// Trunk returns the current health of one named trunk.
func (s *Supervisor) Trunk(name string) (Health, bool) {
	s.mu.Lock()
	e, ok := s.trunks[name]
	s.mu.Unlock()
	if !ok {
		return Health{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health, true
}

// Shutdown stops every probe and reconnection loop. Idempotent.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
		return nil
	default:
		close(s.stop)
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
