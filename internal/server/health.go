package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves the liveness and readiness probes of the main
// listener. The server starts ready; HTTPServer.Shutdown flips it so load
// balancers drain before connections close.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. sc may be nil in tests.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse reports aggregate login state. No identity is
// ever included.
type DetailedHealthResponse struct {
	Status                  string `json:"status"`
	Uptime                  string `json:"uptime"`
	PendingLogins           int    `json:"pending_logins"`
	AuthenticatedIdentities int    `json:"authenticated_identities"`
	BoundSessions           int    `json:"bound_sessions"`
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 while the process runs.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 once the server is draining or the server
// context has shut down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK}
		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
		}
		if h.shuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
		}

		status, resp := h.status(), HealthResponse{Checks: checks}
		resp.Status = healthStatusOK
		if status != healthStatusOK {
			resp.Status = healthStatusNotReady
		}
		writeHealthJSON(w, httpStatus(status), resp)
	})
}

// DetailedHealthHandler adds uptime and login counters to the readiness
// status.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := h.status()
		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.sc != nil {
			resp.PendingLogins = h.sc.Registry().Len()
			resp.AuthenticatedIdentities = h.sc.Tokens().Count()
			resp.BoundSessions = h.sc.Sessions().Len()
		}
		writeHealthJSON(w, httpStatus(status), resp)
	})
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

func (h *HealthChecker) status() string {
	switch {
	case !h.ready.Load():
		return healthStatusNotReady
	case h.shuttingDown():
		return healthStatusShuttingDown
	default:
		return healthStatusOK
	}
}

func httpStatus(status string) int {
	if status == healthStatusOK {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeHealthJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
