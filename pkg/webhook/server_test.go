package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_WebhookEndpoint_ValidSignatureAccepted(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "s3cret")

	body := []byte(`{"event":"room_started","room":{"name":"voice-ai-call-abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/livekit", bytes.NewReader(body))
	req.Header.Set("x-livekit-signature", sign("s3cret", body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "received", resp["status"])
	assert.NotEmpty(t, resp["event_id"])
}

func TestServer_WebhookEndpoint_BadSignatureRejected(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "s3cret")

	body := []byte(`{"event":"room_started","room":{"name":"voice-ai-call-abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/livekit", bytes.NewReader(body))
	req.Header.Set("x-livekit-signature", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_WebhookEndpoint_InvalidJSONRejected(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/livekit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HealthEndpoint(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CallsEndpoints(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "")

	require.NoError(t, c.Enqueue(RoomStarted{base: base{roomName: "voice-ai-call-xyz"}}))
	require.Eventually(t, func() bool { _, ok := c.Call("xyz"); return ok }, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/calls", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/webhooks/calls/xyz", nil)
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/webhooks/calls/missing", nil)
	rec3 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusNotFound, rec3.Code)
}

func TestServer_CleanupEndpoint(t *testing.T) {
	c := NewConsumer(&fakeNotifier{}, nil, 8)
	defer c.Shutdown(context.Background())
	srv := NewServer(c, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/cleanup?max_age_hours=1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["max_age_hours"])
}
