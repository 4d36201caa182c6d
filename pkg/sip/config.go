package sip

import (
	"time"

	"github.com/voxgate/callgateway/o11y"
)

// Config configures a Frontend (§4.6).
type Config struct {
	// EmptyTimeout is seconds a room may sit empty before the media server
	// reclaims it.
	EmptyTimeout int

	// DepartureTimeout is seconds after the last participant departs before
	// the media server tears the room down.
	DepartureTimeout int

	// MaxParticipants bounds room occupancy (caller + agent).
	MaxParticipants int

	// AgentTokenTTL is the lifetime minted for the agent's capability token.
	AgentTokenTTL time.Duration

	// AgentJoinAttempts and AgentJoinDelay configure the agent-join retry
	// (§4.6 step 3: "retried up to 3x with 1s delay").
	AgentJoinAttempts int
	AgentJoinDelay    time.Duration
}

func defaultConfig() Config {
	return Config{
		EmptyTimeout:      300,
		DepartureTimeout:  20,
		MaxParticipants:   2,
		AgentTokenTTL:     10 * time.Minute,
		AgentJoinAttempts: 3,
		AgentJoinDelay:    time.Second,
	}
}

// Option configures a Frontend: either a Config tunable or a dependency.
type Option func(*Frontend)

// WithRoutingRules sets SF's ordered routing table.
func WithRoutingRules(rules []RoutingRule) Option {
	return func(f *Frontend) { f.rules = rules }
}

// WithEmptyTimeout overrides the room empty-timeout passed to MC.CreateRoom.
func WithEmptyTimeout(seconds int) Option {
	return func(f *Frontend) { f.cfg.EmptyTimeout = seconds }
}

// WithDepartureTimeout overrides the room departure-timeout.
func WithDepartureTimeout(seconds int) Option {
	return func(f *Frontend) { f.cfg.DepartureTimeout = seconds }
}

// WithMaxParticipants overrides room occupancy.
func WithMaxParticipants(n int) Option {
	return func(f *Frontend) { f.cfg.MaxParticipants = n }
}

// WithAgentTokenTTL overrides the agent token's lifetime.
func WithAgentTokenTTL(d time.Duration) Option {
	return func(f *Frontend) { f.cfg.AgentTokenTTL = d }
}

// WithAgentJoinRetry overrides the agent-join retry attempts/delay.
func WithAgentJoinRetry(attempts int, delay time.Duration) Option {
	return func(f *Frontend) {
		f.cfg.AgentJoinAttempts = attempts
		f.cfg.AgentJoinDelay = delay
	}
}

// WithMetrics attaches an o11y.Metrics sink for calls_rejected_total.
func WithMetrics(m *o11y.Metrics) Option {
	return func(f *Frontend) { f.metrics = m }
}
