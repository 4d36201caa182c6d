package sip

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	f := NewFrontend(&fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{},
		WithRoutingRules(rules), WithAgentJoinRetry(1, time.Millisecond))
	return NewServer(f)
}

func TestServer_IncomingCallEndpoint_Admits(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(incomingCallRequest{
		CallID: "call1", CallerNumber: "+15551234567", CalledNumber: "+15557654321", TrunkName: "trunk-a",
	})
	req := httptest.NewRequest(http.MethodPost, "/sip/calls", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ActionVoiceAI, resp.Action)
	assert.Equal(t, "voice-ai-call-call1", resp.RoomName)
}

func TestServer_IncomingCallEndpoint_InvalidJSONRejected(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/sip/calls", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EndCallEndpoint(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(incomingCallRequest{CallID: "call2", CallerNumber: "+1555"})
	req := httptest.NewRequest(http.MethodPost, "/sip/calls", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	endBody, _ := json.Marshal(endCallRequest{Reason: "caller_hangup"})
	endReq := httptest.NewRequest(http.MethodPost, "/sip/calls/call2/end", bytes.NewReader(endBody))
	endRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(endRec, endReq)

	require.Equal(t, http.StatusOK, endRec.Code)
	assert.Equal(t, 0, srv.frontend.ActiveCount())
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/sip/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
