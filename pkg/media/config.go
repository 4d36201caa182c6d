package media

import (
	"context"
	"time"

	"github.com/voxgate/callgateway/pkg/token"
)

// AdminTokenMinter mints the admin-scoped bearer token MC attaches to every
// request. Satisfied by *token.Authority.
type AdminTokenMinter interface {
	Mint(ctx context.Context, tokenType token.Type, identity, room string, ttl time.Duration, autoRenew bool) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	AdminIdentity string
	AdminTokenTTL time.Duration
	Timeout       time.Duration
	RetryPolicy   RetryPolicy
}

// RetryPolicy is MC's §4.2 retry schedule: max_attempts=3, base=1s
// doubling to a 60s cap, jitter on.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      bool
}

// DefaultRetryPolicy returns §4.2's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        time.Second,
		Max:         60 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Option configures a Config.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		AdminIdentity: "media-api-client",
		AdminTokenTTL: time.Hour,
		Timeout:       10 * time.Second,
		RetryPolicy:   DefaultRetryPolicy(),
	}
}

// WithBaseURL sets the media server's control-plane base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAdminIdentity overrides the identity minted for the admin token.
func WithAdminIdentity(identity string) Option {
	return func(c *Config) { c.AdminIdentity = identity }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetryPolicy overrides the default retry schedule.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) { c.RetryPolicy = p }
}
