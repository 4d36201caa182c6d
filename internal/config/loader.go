package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// envPattern matches ${VAR} and ${VAR:-default} references inside a config
// file's raw text, shell-style. Viper has no equivalent substitution, so this
// pass runs before the YAML reaches it.
var envPattern = regexp.MustCompile(`\$\{(\w+)(:-([^}]*))?\}`)

func expandEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envPattern.FindSubmatch(match)
		name := string(groups[1])
		def := string(groups[3])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		return []byte(def)
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.max_concurrent_calls", 10)
	v.SetDefault("gateway.response_timeout", 30*time.Second)
	v.SetDefault("gateway.audio_flush_chunk_count", 10)
	v.SetDefault("gateway.webhook_addr", ":8081")
	v.SetDefault("gateway.operator_addr", ":8082")
	v.SetDefault("gateway.sip_addr", ":8083")
	v.SetDefault("gateway.journal_retention_days", 90)
}

// Load reads, env-expands, and unmarshals the sip.yaml file at path into a
// validated SIPConfig.
func Load(path string) (*SIPConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := expandEnv(raw)

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var cfg SIPConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	applyTrunkDefaults(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return &cfg, nil
}

// applyTrunkDefaults fills in the §4.3 defaults for fields sip.yaml leaves
// unset: health_check interval (60s) and max_failures (3), retry backoff
// (initial=1s, multiplier=2, max=30s).
func applyTrunkDefaults(cfg *SIPConfig) {
	for i := range cfg.SIPTrunks {
		t := &cfg.SIPTrunks[i]
		if t.HealthCheck.Interval <= 0 {
			t.HealthCheck.Interval = 60 * time.Second
		}
		if t.HealthCheck.MaxFailures <= 0 {
			t.HealthCheck.MaxFailures = 3
		}
		if t.Retry.InitialDelayMs <= 0 {
			t.Retry.InitialDelayMs = 1000
		}
		if t.Retry.MaxDelayMs <= 0 {
			t.Retry.MaxDelayMs = 30000
		}
		if t.Retry.Multiplier <= 0 {
			t.Retry.Multiplier = 2.0
		}
		if t.Retry.MaxAttempts <= 0 {
			t.Retry.MaxAttempts = 5
		}
	}
}
