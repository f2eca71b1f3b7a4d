package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"docs-mcp-server/internal/wire"
)

func newRequest(origin, host string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "http://"+host+"/mcp", nil)
	r.Host = host
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func transportKind(t *testing.T, err error) wire.Kind {
	t.Helper()
	te, ok := err.(*wire.TransportError)
	if !ok {
		t.Fatalf("error is not a *wire.TransportError: %v (%T)", err, err)
	}
	return te.Kind
}

func TestGate_Check_NoOriginHeader(t *testing.T) {
	g := New(DefaultConfig())
	r := newRequest("", "127.0.0.1:8080")
	if err := g.Check(r); err != nil {
		t.Fatalf("Check with no Origin and RequireOriginHeader=false returned error: %v", err)
	}
}

func TestGate_Check_RequireOriginHeader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireOriginHeader = true
	g := New(cfg)

	r := newRequest("", "127.0.0.1:8080")
	err := g.Check(r)
	if err == nil {
		t.Fatalf("expected error when Origin header missing and required")
	}
	if got := transportKind(t, err); got != wire.KindMissingOriginHeader {
		t.Fatalf("kind = %q, want %q", got, wire.KindMissingOriginHeader)
	}
}

func TestGate_Check_LoopbackAlwaysAllowed(t *testing.T) {
	g := New(DefaultConfig())
	r := newRequest("http://localhost:5173", "localhost:8080")
	if err := g.Check(r); err != nil {
		t.Fatalf("Check for loopback origin returned error: %v", err)
	}
}

func TestGate_Check_InvalidOriginFormat(t *testing.T) {
	g := New(DefaultConfig())
	r := newRequest("://not-a-url", "127.0.0.1:8080")
	err := g.Check(r)
	if err == nil {
		t.Fatalf("expected error for malformed Origin")
	}
	if got := transportKind(t, err); got != wire.KindInvalidOriginFormat {
		t.Fatalf("kind = %q, want %q", got, wire.KindInvalidOriginFormat)
	}
}

func TestGate_Check_OriginNotAllowed(t *testing.T) {
	g := New(DefaultConfig())
	r := newRequest("https://evil.example.com", "127.0.0.1:8080")
	err := g.Check(r)
	if err == nil {
		t.Fatalf("expected error for disallowed origin")
	}
	if got := transportKind(t, err); got != wire.KindOriginNotAllowed {
		t.Fatalf("kind = %q, want %q", got, wire.KindOriginNotAllowed)
	}
}

func TestGate_Check_AllowListedOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://docs.example.com"}
	g := New(cfg)

	r := newRequest("https://docs.example.com", "docs.example.com")
	if err := g.Check(r); err != nil {
		t.Fatalf("Check for allow-listed origin returned error: %v", err)
	}
}

func TestGate_Check_DNSRebindingDetected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://docs.example.com"}
	g := New(cfg)

	// Origin is allow-listed but the request's Host header names a
	// different, non-loopback host: a classic rebinding attempt.
	r := newRequest("https://docs.example.com", "attacker.example.com")
	err := g.Check(r)
	if err == nil {
		t.Fatalf("expected DNS rebinding error")
	}
	if got := transportKind(t, err); got != wire.KindDNSRebindingDetected {
		t.Fatalf("kind = %q, want %q", got, wire.KindDNSRebindingDetected)
	}
}

func TestGate_Check_StrictOriginValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://docs.example.com"}
	cfg.StrictOriginValidation = true
	g := New(cfg)

	// Scheme mismatch should be rejected under strict validation even
	// though the hostname matches.
	r := newRequest("http://docs.example.com", "docs.example.com")
	err := g.Check(r)
	if err == nil {
		t.Fatalf("expected error under strict validation for scheme mismatch")
	}
	if got := transportKind(t, err); got != wire.KindOriginNotAllowed {
		t.Fatalf("kind = %q, want %q", got, wire.KindOriginNotAllowed)
	}
}

func TestGate_ValidateBindAddress(t *testing.T) {
	g := New(DefaultConfig())

	if err := g.ValidateBindAddress("127.0.0.1:8080"); err != nil {
		t.Fatalf("ValidateBindAddress(loopback) returned error: %v", err)
	}
	if err := g.ValidateBindAddress("localhost:8080"); err != nil {
		t.Fatalf("ValidateBindAddress(localhost) returned error: %v", err)
	}

	err := g.ValidateBindAddress("0.0.0.0:8080")
	if err == nil {
		t.Fatalf("expected error for wildcard bind address")
	}
	if got := transportKind(t, err); got != wire.KindLocalhostBindingReq {
		t.Fatalf("kind = %q, want %q", got, wire.KindLocalhostBindingReq)
	}
}

func TestGate_ValidateBindAddress_LocalhostOnlyDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalhostOnly = false
	g := New(cfg)

	if err := g.ValidateBindAddress("0.0.0.0:8080"); err != nil {
		t.Fatalf("ValidateBindAddress with LocalhostOnly=false returned error: %v", err)
	}
}
