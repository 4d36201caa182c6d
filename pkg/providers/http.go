// Package providers adapts STT/LLM/TTS vendors to pkg/call's narrow
// collaborator interfaces over a generic JSON/HTTP contract (§1 treats these
// providers as external systems with no wire protocol named by the
// specification). Each adapter is a thin internal/httpclient consumer.
package providers

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/voxgate/callgateway/internal/httpclient"
	"github.com/voxgate/callgateway/pkg/call"
)

// STT adapts a transcription endpoint to call.STTProvider.
type STT struct {
	http *httpclient.Client
}

// NewSTT builds an STT adapter against baseURL, authenticating with apiKey.
func NewSTT(baseURL, apiKey string, timeout time.Duration) *STT {
	return &STT{http: httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithBearerToken(apiKey),
		httpclient.WithTimeout(timeout),
		httpclient.WithRetries(2),
	)}
}

type sttResponse struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	LatencyMs      int64   `json:"latency_ms"`
	EndOfUtterance bool    `json:"end_of_utterance"`
}

// Transcribe implements call.STTProvider.
func (s *STT) Transcribe(ctx context.Context, audio []byte) (call.STTResult, error) {
	resp, err := httpclient.DoJSON[sttResponse](ctx, s.http, http.MethodPost, "/v1/transcribe", map[string]string{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		return call.STTResult{}, err
	}
	return call.STTResult{
		Text:           resp.Text,
		Confidence:     resp.Confidence,
		LatencyMs:      resp.LatencyMs,
		EndOfUtterance: resp.EndOfUtterance,
	}, nil
}

// LLM adapts a completion endpoint to call.LLMProvider.
type LLM struct {
	http *httpclient.Client
}

// NewLLM builds an LLM adapter against baseURL, authenticating with apiKey.
func NewLLM(baseURL, apiKey string, timeout time.Duration) *LLM {
	return &LLM{http: httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithBearerToken(apiKey),
		httpclient.WithTimeout(timeout),
		httpclient.WithRetries(2),
	)}
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmRequest struct {
	SystemPrompt string       `json:"system_prompt"`
	History      []llmMessage `json:"history"`
}

type llmResponse struct {
	Text      string  `json:"text"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
	LatencyMs int64   `json:"latency_ms"`
}

// Complete implements call.LLMProvider.
func (l *LLM) Complete(ctx context.Context, systemPrompt string, history []call.LLMMessage) (call.LLMResult, error) {
	req := llmRequest{SystemPrompt: systemPrompt, History: make([]llmMessage, len(history))}
	for i, m := range history {
		req.History[i] = llmMessage{Role: string(m.Role), Content: m.Content}
	}
	resp, err := httpclient.DoJSON[llmResponse](ctx, l.http, http.MethodPost, "/v1/complete", req)
	if err != nil {
		return call.LLMResult{}, err
	}
	return call.LLMResult{
		Text:      resp.Text,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		CostUSD:   resp.CostUSD,
		LatencyMs: resp.LatencyMs,
	}, nil
}

// TTS adapts a speech-synthesis endpoint to call.TTSProvider.
type TTS struct {
	http *httpclient.Client
}

// NewTTS builds a TTS adapter against baseURL, authenticating with apiKey.
func NewTTS(baseURL, apiKey string, timeout time.Duration) *TTS {
	return &TTS{http: httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithBearerToken(apiKey),
		httpclient.WithTimeout(timeout),
		httpclient.WithRetries(2),
	)}
}

type ttsResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	CostUSD     float64 `json:"cost_usd"`
	LatencyMs   int64   `json:"latency_ms"`
}

// Synthesize implements call.TTSProvider.
func (t *TTS) Synthesize(ctx context.Context, text string) (call.TTSResult, error) {
	resp, err := httpclient.DoJSON[ttsResponse](ctx, t.http, http.MethodPost, "/v1/synthesize", map[string]string{
		"text": text,
	})
	if err != nil {
		return call.TTSResult{}, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return call.TTSResult{}, err
	}
	return call.TTSResult{Audio: audio, CostUSD: resp.CostUSD, LatencyMs: resp.LatencyMs}, nil
}
