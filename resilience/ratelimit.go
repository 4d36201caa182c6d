package resilience

import (
	"context"
	"sync"
	"time"
)

// ProviderLimits bounds how often and how concurrently a downstream
// collaborator (a media-server endpoint or an STT/LLM/TTS provider) may be
// called. Zero fields mean "unlimited".
type ProviderLimits struct {
	// RPM is the maximum requests per minute.
	RPM int

	// TPM is the maximum tokens (or other weighted units) per minute.
	TPM int

	// MaxConcurrent is the maximum number of in-flight calls.
	MaxConcurrent int

	// CooldownOnRetry is a fixed delay Wait enforces before a caller retries.
	CooldownOnRetry time.Duration
}

// RateLimiter enforces ProviderLimits using a token-bucket for RPM/TPM and a
// counting slot for concurrency. The zero value is not usable; construct
// with NewRateLimiter.
type RateLimiter struct {
	mu sync.Mutex

	limits ProviderLimits

	rpmTokens   float64
	rpmLastFill time.Time

	tpmTokens   float64
	tpmLastFill time.Time

	concurrent int
}

// NewRateLimiter creates a RateLimiter starting with full token buckets.
func NewRateLimiter(limits ProviderLimits) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		limits:      limits,
		rpmTokens:   float64(limits.RPM),
		rpmLastFill: now,
		tpmTokens:   float64(limits.TPM),
		tpmLastFill: now,
	}
}

func (rl *RateLimiter) refillRPM() {
	if rl.limits.RPM <= 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(rl.rpmLastFill).Seconds()
	rl.rpmTokens += elapsed * (float64(rl.limits.RPM) / 60.0)
	if rl.rpmTokens > float64(rl.limits.RPM) {
		rl.rpmTokens = float64(rl.limits.RPM)
	}
	rl.rpmLastFill = now
}

func (rl *RateLimiter) refillTPM() {
	if rl.limits.TPM <= 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(rl.tpmLastFill).Seconds()
	rl.tpmTokens += elapsed * (float64(rl.limits.TPM) / 60.0)
	if rl.tpmTokens > float64(rl.limits.TPM) {
		rl.tpmTokens = float64(rl.limits.TPM)
	}
	rl.tpmLastFill = now
}

// Allow blocks until an RPM token and a concurrency slot are both available,
// or ctx is done. On success the caller holds one concurrency slot and must
// call Release when the call completes.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refillRPM()

		rpmOK := rl.limits.RPM <= 0 || rl.rpmTokens >= 1
		concurrencyOK := rl.limits.MaxConcurrent <= 0 || rl.concurrent < rl.limits.MaxConcurrent

		if rpmOK && concurrencyOK {
			if rl.limits.RPM > 0 {
				rl.rpmTokens--
			}
			if rl.limits.MaxConcurrent > 0 {
				rl.concurrent++
			}
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Release frees a concurrency slot acquired by Allow. It is safe to call
// even if no slot was held; the counter never goes negative.
func (rl *RateLimiter) Release() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.concurrent > 0 {
		rl.concurrent--
	}
}

// Wait blocks for CooldownOnRetry, or returns immediately if it is zero. It
// returns early with ctx.Err() if ctx is cancelled first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.limits.CooldownOnRetry <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rl.limits.CooldownOnRetry):
		return nil
	}
}

// ConsumeTokens blocks until count TPM tokens are available, or ctx is done.
// A zero TPM limit means unlimited; count=0 is always a no-op.
func (rl *RateLimiter) ConsumeTokens(ctx context.Context, count int) error {
	if count <= 0 || rl.limits.TPM <= 0 {
		return nil
	}
	for {
		rl.mu.Lock()
		rl.refillTPM()
		if rl.tpmTokens >= float64(count) {
			rl.tpmTokens -= float64(count)
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}
