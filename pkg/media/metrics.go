package media

import (
	"sync"
	"sync/atomic"
)

// CallMetrics is the per-client rolling metrics record §4.2 requires: total,
// success, failure, retries, and average latency across every RPC made by
// this Client.
type CallMetrics struct {
	total    atomic.Int64
	success  atomic.Int64
	failure  atomic.Int64
	retries  atomic.Int64

	mu          sync.Mutex
	latencySumMs float64
	latencyCount int64
}

// Snapshot is an immutable read of CallMetrics at one point in time.
type Snapshot struct {
	Total        int64
	Success      int64
	Failure      int64
	Retries      int64
	AvgLatencyMs float64
}

func (m *CallMetrics) recordAttempt(success bool, latencyMs float64, wasRetry bool) {
	m.total.Add(1)
	if success {
		m.success.Add(1)
	} else {
		m.failure.Add(1)
	}
	if wasRetry {
		m.retries.Add(1)
	}

	m.mu.Lock()
	m.latencySumMs += latencyMs
	m.latencyCount++
	m.mu.Unlock()
}

// Snapshot returns the current metrics.
func (m *CallMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	sum, count := m.latencySumMs, m.latencyCount
	m.mu.Unlock()

	var avg float64
	if count > 0 {
		avg = sum / float64(count)
	}

	return Snapshot{
		Total:        m.total.Load(),
		Success:      m.success.Load(),
		Failure:      m.failure.Load(),
		Retries:      m.retries.Load(),
		AvgLatencyMs: avg,
	}
}
