// Package config loads sip.yaml, the gateway's single configuration file,
// and unmarshals it into validated Go structs via Viper.
package config

import "time"

// SIPConfig is the top-level shape of sip.yaml.
type SIPConfig struct {
	SIPTrunks    []TrunkConfig       `mapstructure:"sip_trunks" validate:"required,min=1,dive"`
	AudioCodecs  []CodecConfig       `mapstructure:"audio_codecs" validate:"omitempty,dive"`
	RoutingRules []RoutingRuleConfig `mapstructure:"routing_rules" validate:"omitempty,dive"`
	Gateway      GatewayConfig       `mapstructure:"gateway"`
}

// TrunkConfig describes one configured SIP trunk (§5 sip.yaml sip_trunks[]).
type TrunkConfig struct {
	Name              string            `mapstructure:"name" validate:"required"`
	Host              string            `mapstructure:"host" validate:"required"`
	Port              int               `mapstructure:"port" validate:"required,min=1,max=65535"`
	Transport         string            `mapstructure:"transport" validate:"omitempty,oneof=udp tcp tls"`
	Username          string            `mapstructure:"username"`
	Password          string            `mapstructure:"password"`
	Register          bool              `mapstructure:"register"`
	RegisterInterval  time.Duration     `mapstructure:"register_interval"`
	KeepAliveInterval time.Duration     `mapstructure:"keep_alive_interval"`
	HealthCheck       HealthCheckConfig `mapstructure:"health_check"`
	Retry             RetryConfig       `mapstructure:"retry"`
}

// HealthCheckConfig configures TS's per-trunk probe loop.
type HealthCheckConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures int           `mapstructure:"max_failures"`
}

// RetryConfig configures TS's reconnection backoff for a trunk.
type RetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
	Multiplier     float64 `mapstructure:"multiplier"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
}

// CodecConfig describes one entry in audio_codecs[].
type CodecConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	PayloadType int    `mapstructure:"payload_type"`
	SampleRate  int    `mapstructure:"sample_rate"`
	Channels    int    `mapstructure:"channels"`
	Priority    int    `mapstructure:"priority"`
	Enabled     bool   `mapstructure:"enabled"`
}

// RoutingRuleConfig describes one entry in routing_rules[]. Patterns use
// shell-style wildcards (* and ?) and are matched in declared order; the
// first match wins.
type RoutingRuleConfig struct {
	CallerPattern    string            `mapstructure:"caller_pattern"`
	CalledPattern    string            `mapstructure:"called_pattern"`
	TrunkPattern     string            `mapstructure:"trunk_pattern"`
	HeaderConditions map[string]string `mapstructure:"header_conditions"`
	Action           string            `mapstructure:"action" validate:"required,oneof=voice_ai reject forward"`
}

// GatewayConfig holds the gateway's own tunables that sip.yaml does not
// scope per-trunk: admission control, turn timing, HTTP server binds, and
// the credentials (filled in via ${VAR} substitution) for the gateway's
// external dependencies (§6: "credentials for the media server, STT/LLM/TTS
// providers, the HMAC webhook secret, a process-wide signing secret, and the
// database URL").
type GatewayConfig struct {
	MaxConcurrentCalls   int           `mapstructure:"max_concurrent_calls"`
	ResponseTimeout      time.Duration `mapstructure:"response_timeout"`
	AudioFlushChunkCount int           `mapstructure:"audio_flush_chunk_count"`
	WebhookAddr          string        `mapstructure:"webhook_addr"`
	OperatorAddr         string        `mapstructure:"operator_addr"`
	SipAddr              string        `mapstructure:"sip_addr"`
	WebhookSigningKey    string        `mapstructure:"webhook_signing_key"`
	JournalRetentionDays int           `mapstructure:"journal_retention_days"`

	DatabaseURL string `mapstructure:"database_url" validate:"required"`

	MediaBaseURL       string `mapstructure:"media_base_url" validate:"required"`
	MediaAdminIdentity string `mapstructure:"media_admin_identity"`
	MediaAPIKey        string `mapstructure:"media_api_key" validate:"required"`
	MediaAPISecret     string `mapstructure:"media_api_secret" validate:"required"`

	AgentBaseURL string `mapstructure:"agent_base_url"`
	AgentAPIKey  string `mapstructure:"agent_api_key"`

	STTBaseURL string `mapstructure:"stt_base_url"`
	STTAPIKey  string `mapstructure:"stt_api_key"`

	LLMBaseURL string `mapstructure:"llm_base_url"`
	LLMAPIKey  string `mapstructure:"llm_api_key"`
	LLMModel   string `mapstructure:"llm_model"`

	TTSBaseURL string `mapstructure:"tts_base_url"`
	TTSAPIKey  string `mapstructure:"tts_api_key"`
}
