package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/callgateway/pkg/call"
	"github.com/voxgate/callgateway/pkg/journal"
)

func TestSTT_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcribe", r.URL.Path)
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["audio_base64"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sttResponse{
			Text: "hello world", Confidence: 0.97, LatencyMs: 120, EndOfUtterance: true,
		})
	}))
	defer srv.Close()

	s := NewSTT(srv.URL, "key123", 5*time.Second)
	result, err := s.Transcribe(context.Background(), []byte("pcm-audio"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, 0.97, result.Confidence)
	assert.True(t, result.EndOfUtterance)
}

func TestSTT_Transcribe_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSTT(srv.URL, "key123", 5*time.Second)
	_, err := s.Transcribe(context.Background(), []byte("pcm-audio"))
	assert.Error(t, err)
}

func TestLLM_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/complete", r.URL.Path)

		var req llmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be helpful", req.SystemPrompt)
		require.Len(t, req.History, 1)
		assert.Equal(t, "user", req.History[0].Role)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(llmResponse{
			Text: "hi there", TokensIn: 10, TokensOut: 5, CostUSD: 0.001, LatencyMs: 300,
		})
	}))
	defer srv.Close()

	l := NewLLM(srv.URL, "key123", 5*time.Second)
	result, err := l.Complete(context.Background(), "be helpful", []call.LLMMessage{
		{Role: journal.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Text)
	assert.Equal(t, int64(10), result.TokensIn)
	assert.Equal(t, 0.001, result.CostUSD)
}

func TestTTS_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req["text"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ttsResponse{
			AudioBase64: "aGVsbG8=", CostUSD: 0.002, LatencyMs: 80,
		})
	}))
	defer srv.Close()

	ts := NewTTS(srv.URL, "key123", 5*time.Second)
	result, err := ts.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), result.Audio)
	assert.Equal(t, 0.002, result.CostUSD)
}

func TestTTS_Synthesize_InvalidBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ttsResponse{AudioBase64: "not-valid-base64!!"})
	}))
	defer srv.Close()

	ts := NewTTS(srv.URL, "key123", 5*time.Second)
	_, err := ts.Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}
