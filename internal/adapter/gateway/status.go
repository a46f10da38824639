package gateway

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// StatusResponse is the JSON body returned by GET /status.
type StatusResponse struct {
	Service   ServiceStatus   `json:"service"`
	Sessions  SessionStatus   `json:"sessions"`
	Turns     TurnStatus      `json:"turns"`
	Assistant AssistantStatus `json:"assistant"`
	Analyzer  AnalyzerStatus  `json:"analyzer"`
}

// ServiceStatus holds service overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// SessionStatus holds chat connection counts.
type SessionStatus struct {
	Active int64 `json:"active"`
	Total  int64 `json:"total"`
}

// TurnStatus holds reply counters.
type TurnStatus struct {
	Total  int64 `json:"total"`
	Errors int64 `json:"errors"`
}

// AssistantStatus names the responder backend.
type AssistantStatus struct {
	Provider string `json:"provider"`
}

// AnalyzerStatus reports whether /analyze-food is proxied.
type AnalyzerStatus struct {
	Enabled  bool  `json:"enabled"`
	Requests int64 `json:"requests"`
}

// Metrics tracks gateway counters for the status API.
type Metrics struct {
	SessionsActive atomic.Int64
	SessionsTotal  atomic.Int64
	MessagesRecv   atomic.Int64
	MessagesSent   atomic.Int64
	TurnsTotal     atomic.Int64
	TurnErrors     atomic.Int64
	Analyses       atomic.Int64
}

// statusHandler returns an HTTP handler for GET /status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Service: ServiceStatus{
			Name:          "virtualfit",
			UptimeSeconds: int64(time.Since(s.started).Seconds()),
		},
		Sessions: SessionStatus{
			Active: s.metrics.SessionsActive.Load(),
			Total:  s.metrics.SessionsTotal.Load(),
		},
		Turns: TurnStatus{
			Total:  s.metrics.TurnsTotal.Load(),
			Errors: s.metrics.TurnErrors.Load(),
		},
		Assistant: AssistantStatus{Provider: s.responder.Name()},
		Analyzer: AnalyzerStatus{
			Enabled:  s.analyzer != nil,
			Requests: s.metrics.Analyses.Load(),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

// bannerHandler serves GET / with the service description.
func bannerHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the VirtualFit API",
		"endpoints": map[string]string{
			"analyze_food": "POST /analyze-food - Upload and analyze a food image",
			"chat":         "WebSocket /chat - Connect to the fitness assistant chatbot",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
