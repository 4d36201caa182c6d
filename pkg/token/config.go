package token

import "time"

// Config configures an Authority.
type Config struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	APISecret       string        `mapstructure:"api_secret" validate:"required"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	RenewalInterval time.Duration `mapstructure:"renewal_interval"`
	RenewalWindow   time.Duration `mapstructure:"renewal_window"`
}

// Option configures a Config.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		DefaultTTL:      10 * time.Minute,
		RenewalInterval: time.Minute,
		RenewalWindow:   2 * time.Minute,
	}
}

// WithCredentials sets the media server API key/secret pair tokens are signed with.
func WithCredentials(apiKey, apiSecret string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
		c.APISecret = apiSecret
	}
}

// WithDefaultTTL sets the TTL applied to Mint calls that don't specify one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.DefaultTTL = ttl
	}
}

// WithRenewalInterval sets how often the auto-renewal loop checks live tokens.
func WithRenewalInterval(d time.Duration) Option {
	return func(c *Config) {
		c.RenewalInterval = d
	}
}

// WithRenewalWindow sets how far ahead of expiry a token is renewed.
func WithRenewalWindow(d time.Duration) Option {
	return func(c *Config) {
		c.RenewalWindow = d
	}
}
