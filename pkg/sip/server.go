package sip

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/voxgate/callgateway/internal/httputil"
	"github.com/voxgate/callgateway/o11y"
)

// incomingCallRequest is the body the upstream SIP signaling stack posts for
// every new INVITE it accepts on SF's behalf (§4.6 step 1's
// handle_incoming_call(caller, called, trunk, headers)).
type incomingCallRequest struct {
	CallID       string            `json:"call_id,omitempty"`
	CallerNumber string            `json:"caller_number"`
	CalledNumber string            `json:"called_number"`
	TrunkName    string            `json:"trunk_name"`
	Headers      map[string]string `json:"headers,omitempty"`
}

type endCallRequest struct {
	Reason string `json:"reason"`
}

// Server exposes SF's decision surface over HTTP (§4.6) so the SIP
// signaling stack terminating actual INVITE/BYE dialogs can drive it
// without linking against this process, the same boundary WI draws around
// CO with its webhook endpoint.
type Server struct {
	frontend  *Frontend
	logger    *o11y.Logger
	lifecycle httputil.ServerLifecycle
	router    *mux.Router
}

// NewServer builds the router for a Frontend.
func NewServer(frontend *Frontend) *Server {
	s := &Server{frontend: frontend, logger: o11y.NewLogger()}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sip/calls", s.handleIncomingCall).Methods(http.MethodPost)
	r.HandleFunc("/sip/calls/{call_id}/end", s.handleEndCall).Methods(http.MethodPost)
	r.HandleFunc("/sip/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Handler exposes the router for tests or composition into a larger mux.
func (s *Server) Handler() http.Handler { return s.router }

// Serve runs the SIP front-end HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	return s.lifecycle.Serve(ctx, addr, s.router, 15*time.Second, 15*time.Second, 60*time.Second, "sip")
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.lifecycle.Shutdown(ctx, "sip")
}

func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	var req incomingCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := s.frontend.HandleIncomingCall(r.Context(), SIPCallInfo{
		CallID:       req.CallID,
		CallerNumber: req.CallerNumber,
		CalledNumber: req.CalledNumber,
		TrunkName:    req.TrunkName,
		Headers:      req.Headers,
	})
	if err != nil {
		s.logger.Error(r.Context(), "handle_incoming_call failed", "caller", req.CallerNumber, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]

	var req endCallRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // a body-less BYE notification is valid; reason stays empty

	if err := s.frontend.EndCall(r.Context(), callID, req.Reason); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended", "call_id": callID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"active_calls": s.frontend.ActiveCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
