package trunk

import "time"

// Config is one trunk's supervision parameters, sourced from sip.yaml's
// sip_trunks[] entries (internal/config.TrunkConfig).
type Config struct {
	Name         string
	Host         string
	Port         int
	ProbeTimeout time.Duration

	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration
	MaxFailures         int

	RetryEnabled     bool
	RetryInitial     time.Duration
	RetryMax         time.Duration
	RetryMultiplier  float64
	RetryMaxAttempts int
}

// withDefaults fills in §4.3's defaults for any unset field.
func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.RetryMultiplier <= 0 {
		c.RetryMultiplier = 2.0
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 5
	}
	return c
}
