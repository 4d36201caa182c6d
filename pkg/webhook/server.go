package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/voxgate/callgateway/internal/httputil"
	"github.com/voxgate/callgateway/o11y"
)

// Server exposes the webhook endpoint (§6: POST /webhooks/<tag>) and the
// read-mostly operator endpoints over the same Consumer.
type Server struct {
	consumer     *Consumer
	secret       string
	staleMaxAge  time.Duration
	logger       *o11y.Logger
	lifecycle    httputil.ServerLifecycle
	router       *mux.Router
}

// NewServer builds the router for a Consumer. secret is the HMAC webhook
// signing key; an empty secret disables signature verification (§8
// invariant 4).
func NewServer(consumer *Consumer, secret string) *Server {
	s := &Server{
		consumer:    consumer,
		secret:      secret,
		staleMaxAge: 24 * time.Hour,
		logger:      o11y.NewLogger(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhooks/{tag}", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/calls", s.handleListCalls).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/calls/{call_id}", s.handleGetCall).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/cleanup", s.handleCleanup).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Handler exposes the router for composition into a larger mux, or for
// tests via httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

// Serve runs the webhook HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	return s.lifecycle.Serve(ctx, addr, s.router, 15*time.Second, 15*time.Second, 60*time.Second, "webhook")
}

// Shutdown gracefully stops the HTTP server and the underlying Consumer.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.lifecycle.Shutdown(ctx, "webhook"); err != nil {
		return err
	}
	return s.consumer.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("x-livekit-signature")
	timestamp := r.Header.Get("x-livekit-timestamp")
	if !VerifySignature(s.secret, body, sig, timestamp, time.Now()) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := ParseEvent(body, eventID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.consumer.Enqueue(event); err != nil {
		s.logger.Error(r.Context(), "webhook queue full", "event_id", eventID, "error", err)
		http.Error(w, "queue full", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "received",
		"event_id":        event.EventID(),
		"timestamp":       start.UTC().Format(time.RFC3339Nano),
		"processing_time": time.Since(start).Seconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"queue_depth": s.consumer.QueueDepth(),
	})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls := s.consumer.ActiveCalls()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls": calls,
		"total_count":  len(calls),
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]
	snap, ok := s.consumer.Call(callID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("call %q not found", callID)})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	maxAgeHours := 24
	if v := r.URL.Query().Get("max_age_hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxAgeHours = parsed
		}
	}
	removed := s.consumer.CleanupStale(time.Duration(maxAgeHours) * time.Hour)
	writeJSON(w, http.StatusOK, map[string]any{
		"max_age_hours": maxAgeHours,
		"cleaned_up":    removed,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
