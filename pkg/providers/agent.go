package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/voxgate/callgateway/internal/httpclient"
)

// Agent adapts the voice-AI agent runtime's join/leave control plane to
// pkg/sip's AgentJoiner. Like STT/LLM/TTS, the agent runtime is an external
// system with no wire protocol named by the specification; this is a thin
// internal/httpclient consumer, grounded the same way as the STT/LLM/TTS
// adapters in this package.
type Agent struct {
	http *httpclient.Client
}

// NewAgent builds an Agent adapter against baseURL, authenticating with apiKey.
func NewAgent(baseURL, apiKey string, timeout time.Duration) *Agent {
	return &Agent{http: httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithBearerToken(apiKey),
		httpclient.WithTimeout(timeout),
		httpclient.WithRetries(0), // pkg/sip drives its own join retry policy
	)}
}

// JoinAgent implements sip.AgentJoiner.
func (a *Agent) JoinAgent(ctx context.Context, roomName, agentToken string) error {
	_, err := httpclient.DoJSON[struct{}](ctx, a.http, http.MethodPost, "/v1/agent/join", map[string]string{
		"room":  roomName,
		"token": agentToken,
	})
	return err
}

// RemoveAgent implements sip.AgentJoiner.
func (a *Agent) RemoveAgent(ctx context.Context, roomName string) error {
	_, err := httpclient.DoJSON[struct{}](ctx, a.http, http.MethodPost, "/v1/agent/leave", map[string]string{
		"room": roomName,
	})
	return err
}
