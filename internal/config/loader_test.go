package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sip_trunks:
  - name: novofon
    host: sip.novofon.example
    port: 5060
    transport: udp
    username: ${TRUNK_USER:-default_user}
    password: ${TRUNK_PASS}
    register: true
    health_check:
      enabled: true
      max_failures: 2
    retry:
      enabled: true

audio_codecs:
  - name: PCMU
    payload_type: 0
    sample_rate: 8000
    channels: 1
    priority: 1
    enabled: true

routing_rules:
  - caller_pattern: "+1*"
    action: voice_ai
  - action: reject

gateway:
  max_concurrent_calls: 25
  database_url: postgres://localhost/voxgate
  media_base_url: https://media.example.com
  media_api_key: mk_test
  media_api_secret: ms_test
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ParsesTrunksCodecsAndRules(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.SIPTrunks, 1)
	assert.Equal(t, "novofon", cfg.SIPTrunks[0].Name)
	assert.Equal(t, "default_user", cfg.SIPTrunks[0].Username)

	require.Len(t, cfg.AudioCodecs, 1)
	assert.Equal(t, "PCMU", cfg.AudioCodecs[0].Name)

	require.Len(t, cfg.RoutingRules, 2)
	assert.Equal(t, "voice_ai", cfg.RoutingRules[0].Action)
	assert.Equal(t, "reject", cfg.RoutingRules[1].Action)

	assert.Equal(t, 25, cfg.Gateway.MaxConcurrentCalls)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TRUNK_PASS", "s3cret")
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SIPTrunks[0].Password)
}

func TestLoad_AppliesTrunkDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	trunk := cfg.SIPTrunks[0]
	assert.Equal(t, 2, trunk.HealthCheck.MaxFailures, "explicit value should not be overridden")
	assert.EqualValues(t, 1000, trunk.Retry.InitialDelayMs)
	assert.EqualValues(t, 30000, trunk.Retry.MaxDelayMs)
	assert.Equal(t, 2.0, trunk.Retry.Multiplier)
}

func TestLoad_AppliesGatewayDefaults(t *testing.T) {
	path := writeTempConfig(t, `
sip_trunks:
  - name: t1
    host: h
    port: 5060

gateway:
  database_url: postgres://localhost/voxgate
  media_base_url: https://media.example.com
  media_api_key: mk_test
  media_api_secret: ms_test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Gateway.MaxConcurrentCalls)
	assert.Equal(t, 10, cfg.Gateway.AudioFlushChunkCount)
	assert.Equal(t, ":8081", cfg.Gateway.WebhookAddr)
	assert.Equal(t, ":8083", cfg.Gateway.SipAddr)
}

func TestLoad_MissingRequiredFieldFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
sip_trunks:
  - host: h
    port: 5060
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sip.yaml")
	assert.Error(t, err)
}
