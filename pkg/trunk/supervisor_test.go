package trunk

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysFail(network, address string, timeout time.Duration) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func alwaysSucceed(network, address string, timeout time.Duration) (net.Conn, error) {
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func TestSupervisor_ProbeSuccess_SetsConnected(t *testing.T) {
	cfg := Config{Name: "novofon", Host: "sip.example", Port: 5060, HealthCheckEnabled: true, HealthCheckInterval: time.Hour}
	s := NewSupervisor([]Config{cfg}, WithDialer(alwaysSucceed))
	defer s.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		h, ok := s.Trunk("novofon")
		return ok && h.State == StateConnected
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisor_RepeatedFailuresTriggerReconnect(t *testing.T) {
	var dialCount atomic.Int64
	dial := func(network, address string, timeout time.Duration) (net.Conn, error) {
		dialCount.Add(1)
		return nil, errors.New("refused")
	}

	cfg := Config{
		Name: "flappy", Host: "h", Port: 1,
		HealthCheckEnabled: true, HealthCheckInterval: 5 * time.Millisecond,
		MaxFailures: 2, RetryEnabled: true,
		RetryInitial: time.Millisecond, RetryMax: 5 * time.Millisecond, RetryMultiplier: 2, RetryMaxAttempts: 2,
	}
	s := NewSupervisor([]Config{cfg}, WithDialer(dial))
	defer s.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		h, ok := s.Trunk("flappy")
		return ok && h.State == StateFailed && h.FailureCount >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisor_OnlyOneConcurrentReconnectPerTrunk(t *testing.T) {
	var inFlight atomic.Int64
	var maxInFlight atomic.Int64

	dial := func(network, address string, timeout time.Duration) (net.Conn, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if cur <= m || maxInFlight.CompareAndSwap(m, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil, errors.New("refused")
	}

	cfg := Config{
		Name: "busy", Host: "h", Port: 1,
		HealthCheckEnabled: true, HealthCheckInterval: 2 * time.Millisecond,
		MaxFailures: 1, RetryEnabled: true,
		RetryInitial: time.Millisecond, RetryMax: 2 * time.Millisecond, RetryMultiplier: 1, RetryMaxAttempts: 10,
	}
	s := NewSupervisor([]Config{cfg}, WithDialer(dial))

	time.Sleep(100 * time.Millisecond)
	s.Shutdown(context.Background())

	// The probe loop dials concurrently with any in-flight reconnection
	// attempt, so at most 2 dials (one probe + one reconnect) overlap.
	assert.LessOrEqual(t, maxInFlight.Load(), int64(2))
}

func TestSupervisor_HealthStatus_ReturnsAllTrunks(t *testing.T) {
	cfgs := []Config{
		{Name: "a", Host: "h", Port: 1},
		{Name: "b", Host: "h", Port: 2},
	}
	s := NewSupervisor(cfgs, WithDialer(alwaysSucceed))
	defer s.Shutdown(context.Background())

	status := s.HealthStatus()
	assert.Len(t, status, 2)
	assert.Contains(t, status, "a")
	assert.Contains(t, status, "b")
}

func TestBackoffDelay_ExponentialWithCap(t *testing.T) {
	cfg := Config{RetryInitial: time.Second, RetryMultiplier: 2, RetryMax: 3 * time.Second}
	assert.Equal(t, time.Second, backoffDelay(cfg, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(cfg, 1))
	assert.Equal(t, 3*time.Second, backoffDelay(cfg, 2))
}

func TestSupervisor_ShutdownIsIdempotent(t *testing.T) {
	s := NewSupervisor([]Config{{Name: "a", Host: "h", Port: 1, HealthCheckEnabled: true, HealthCheckInterval: time.Hour}}, WithDialer(alwaysSucceed))
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}
