package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_Live(t *testing.T) {
	h := &Handler{ServiceName: "docs-mcp-server", Version: "0.1.0"}
	r := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()

	h.Live(rr, r)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var b body
	if err := json.Unmarshal(rr.Body.Bytes(), &b); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if b.Status != StatusHealthy {
		t.Fatalf("Status = %q, want %q", b.Status, StatusHealthy)
	}
	if b.Details["service"] != "docs-mcp-server" {
		t.Fatalf("Details[service] = %v", b.Details["service"])
	}
}

func TestClassifyPool(t *testing.T) {
	tests := []struct {
		name        string
		utilization float64
		successRate float64
		responseMS  int64
		pingOK      bool
		want        string
	}{
		{"ping failed", 10, 100, 10, false, StatusUnhealthy},
		{"fully healthy", 50, 99, 100, true, StatusHealthy},
		{"at healthy boundary", 80, 95, 2000, true, StatusHealthy},
		{"degraded utilization", 90, 95, 100, true, StatusDegraded},
		{"degraded response time", 50, 95, 4000, true, StatusDegraded},
		{"unhealthy utilization", 99, 95, 100, true, StatusUnhealthy},
		{"unhealthy success rate", 50, 50, 100, true, StatusUnhealthy},
		{"unhealthy response time", 50, 95, 9000, true, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyPool(tt.utilization, tt.successRate, tt.responseMS, tt.pingOK); got != tt.want {
				t.Fatalf("classifyPool(%v,%v,%v,%v) = %q, want %q", tt.utilization, tt.successRate, tt.responseMS, tt.pingOK, got, tt.want)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{StatusHealthy, http.StatusOK},
		{StatusDegraded, http.StatusOK},
		{StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := statusCode(tt.status); got != tt.want {
			t.Fatalf("statusCode(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}
