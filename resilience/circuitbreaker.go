package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a circuit breaker's current position in its closed → open →
// half-open cycle.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned by Execute when the breaker is open and the
// reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// CircuitBreaker trips to open after failureThreshold consecutive failures,
// rejecting calls until resetTimeout elapses, at which point it becomes
// half-open and lets calls through again. A half-open success closes the
// breaker and a half-open failure re-opens it. Calls made while half-open
// are not limited to one: every such call runs.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	state            State
	failures         int
	openedAt         time.Time
}

// NewCircuitBreaker creates a CircuitBreaker. failureThreshold defaults to 5
// and resetTimeout to 30s when given as zero.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// State returns the breaker's current state, resolving Open → HalfOpen
// transitions lazily based on elapsed time.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Execute runs fn if the breaker allows it. In the closed state, fn always
// runs. In the open state, Execute rejects immediately with ErrCircuitOpen
// until the reset timeout elapses. In the half-open state every call runs,
// with no limit on concurrent callers; each result transitions the breaker
// back to closed (success) or open (failure).
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	cb.mu.Lock()
	state := cb.stateLocked()
	if state == StateOpen {
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	}
	cb.mu.Unlock()

	result, err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return result, err
	}

	cb.failures = 0
	cb.state = StateClosed
	return result, nil
}

// Reset forces the breaker back to closed with a clean failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}
