// Package resilience provides the retry, circuit-breaking, and admission
// primitives shared across the gateway. Retry drives the media API client's
// retry policy (§4.2) and the SIP front-end's agent-join retry (§4.6).
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/voxgate/callgateway/internal/core"
)

// RetryPolicy configures Retry's backoff schedule and which errors it
// retries. Retry fills zero MaxAttempts, InitialBackoff, MaxBackoff and
// BackoffFactor with DefaultRetryPolicy's values; Jitter is used as given.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay for any attempt.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the delay after each attempt.
	BackoffFactor float64

	// Jitter adds up to ±25% uniform jitter to each computed delay.
	Jitter bool

	// RetryableErrors, if non-empty, overrides core.IsRetryable: only
	// *core.Error values with one of these codes are retried.
	RetryableErrors []core.ErrorCode
}

// DefaultRetryPolicy returns the package defaults: three attempts, 500ms
// initial backoff doubling to a 30s cap, with jitter enabled. The media
// client's §4.2 defaults are set separately by media.DefaultRetryPolicy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = d.BackoffFactor
	}
	return p
}

func (p RetryPolicy) isRetryable(err error) bool {
	if len(p.RetryableErrors) == 0 {
		return core.IsRetryable(err)
	}
	code, ok := core.Code(err)
	if !ok {
		return false
	}
	for _, c := range p.RetryableErrors {
		if c == code {
			return true
		}
	}
	return false
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))
	if max := float64(p.MaxBackoff); backoff > max {
		backoff = max
	}
	d := time.Duration(backoff)
	if p.Jitter {
		// Uniform jitter in [-25%, +25%].
		spread := float64(d) * 0.25
		d = time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Retry invokes fn until it succeeds, a non-retryable error is returned, the
// context is cancelled, or policy.MaxAttempts is exhausted. Attempts are
// 0-indexed internally; the delay before attempt n (n≥1) is
// min(InitialBackoff·BackoffFactor^(n-1), MaxBackoff), optionally jittered.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalize()

	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(policy.delay(attempt - 1)):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.isRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
