// Package health composes pool and job-store status into the four health
// endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"docs-mcp-server/internal/dbpool"
	"docs-mcp-server/internal/jobs"
)

// Status labels used across every health body, always lowercase.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Handler composes health checks from the pool and job store.
type Handler struct {
	Pool        *dbpool.Pool
	Store       *jobs.Store
	ServiceName string
	Version     string
}

// body is the common JSON shape every health endpoint renders.
type body struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Live handles /health/live: no dependencies, always 200.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, body{
		Status: StatusHealthy,
		Details: map[string]any{
			"service": h.ServiceName,
			"version": h.Version,
		},
	})
}

// Health handles /health: ping pool with a 5s timeout.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Pool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, body{Status: StatusUnhealthy, Details: map[string]any{"error": err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, body{Status: StatusHealthy})
}

// Ready handles /health/ready: ping pool (10s) AND inspect pool status
// (utilization < 95%, success rate > 90%); 200 if both ready, else 503
// with per-check diagnostics.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	details := map[string]any{}
	ready := true

	if err := h.Pool.Ping(ctx); err != nil {
		ready = false
		details["ping"] = err.Error()
	} else {
		details["ping"] = "ok"
	}

	snap := h.Pool.Status(ctx)
	details["utilization_percent"] = snap.UtilizationPercent
	details["success_rate_percent"] = snap.SuccessRatePercent
	if snap.UtilizationPercent >= 95 {
		ready = false
		details["utilization"] = "too high"
	}
	if snap.SuccessRatePercent <= 90 {
		ready = false
		details["success_rate"] = "too low"
	}

	status := StatusHealthy
	code := http.StatusOK
	if !ready {
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body{Status: status, Details: details})
}

// Detailed handles /health/detailed: component-by-component health with
// response-time-ms and thresholds: healthy (util<=80, success>=95,
// response<=2000ms), degraded (util<=95, success>=90, response<=5000ms),
// else unhealthy.
func (h *Handler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	result, pingErr := h.Pool.HealthCheck(ctx)
	responseMS := time.Since(start).Milliseconds()
	snap := h.Pool.Status(ctx)

	poolStatus := classifyPool(snap.UtilizationPercent, snap.SuccessRatePercent, responseMS, pingErr == nil)

	counts, _ := h.Store.Counts(ctx)

	overall := poolStatus
	writeJSON(w, statusCode(overall), body{
		Status: overall,
		Details: map[string]any{
			"pool": map[string]any{
				"status":               poolStatus,
				"response_time_ms":     responseMS,
				"utilization_percent":  snap.UtilizationPercent,
				"success_rate_percent": snap.SuccessRatePercent,
				"active_connections":   snap.ActiveConnections,
				"idle_estimate":        result.IdleEstimate,
			},
			"jobs": counts,
		},
	})
}

func classifyPool(utilization, successRate float64, responseMS int64, pingOK bool) string {
	if !pingOK {
		return StatusUnhealthy
	}
	if utilization <= 80 && successRate >= 95 && responseMS <= 2000 {
		return StatusHealthy
	}
	if utilization <= 95 && successRate >= 90 && responseMS <= 5000 {
		return StatusDegraded
	}
	return StatusUnhealthy
}

func statusCode(status string) int {
	switch status {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}
