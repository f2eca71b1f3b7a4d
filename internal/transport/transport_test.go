package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docs-mcp-server/internal/metrics"
	"docs-mcp-server/internal/security"
	"docs-mcp-server/internal/session"
	"docs-mcp-server/internal/tools"
	"docs-mcp-server/internal/wire"
)

func newTestHandler() *Handler {
	registry := tools.NewRegistry()
	sessions := session.New(session.DefaultConfig())
	gate := security.New(security.DefaultConfig())
	counters := &metrics.Counters{}
	return New(registry, sessions, gate, counters)
}

func postRequest(body string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Protocol-Version", "2025-06-18")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) wire.ErrorBody {
	t.Helper()
	var body wire.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v; raw=%s", err, rr.Body.String())
	}
	return body
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHandler()
	r := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if rr.Header().Get(wire.HeaderProtocolVersion) == "" {
		t.Fatalf("expected Protocol-Version header on every response")
	}
}

func TestHandler_MissingProtocolVersion(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{"jsonrpc":"2.0","method":"initialize"}`, nil)
	r.Header.Del("Protocol-Version")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body.Error.Code != wire.RequestErrorCode {
		t.Fatalf("error code = %d, want %d", body.Error.Code, wire.RequestErrorCode)
	}
}

func TestHandler_UnsupportedProtocolVersion(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{"jsonrpc":"2.0","method":"initialize"}`, map[string]string{"Protocol-Version": "2024-01-01"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandler_MalformedJSON(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{not json`, nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if got := h.Metrics.Snapshot().JSONParseErrors; got != 1 {
		t.Fatalf("JSONParseErrors = %d, want 1", got)
	}
}

func TestHandler_Initialize_HappyPath(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(wire.HeaderProtocolVersion) != "2025-06-18" {
		t.Fatalf("Protocol-Version header = %q", rr.Header().Get(wire.HeaderProtocolVersion))
	}
	if rr.Header().Get(wire.HeaderSessionID) == "" {
		t.Fatalf("expected a Session-Id header to be set on the first request")
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}

	var result wire.InitializeResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode initialize result: %v", err)
	}
	if result.ProtocolVersion != "2025-06-18" {
		t.Fatalf("ProtocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != ServerInfo.Name {
		t.Fatalf("ServerInfo.Name = %q", result.ServerInfo.Name)
	}
}

func TestHandler_SessionReuseAcrossRequests(t *testing.T) {
	h := newTestHandler()

	first := postRequest(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	firstRR := httptest.NewRecorder()
	h.ServeHTTP(firstRR, first)
	sessionID := firstRR.Header().Get(wire.HeaderSessionID)
	if sessionID == "" {
		t.Fatalf("expected a session id from the first response")
	}

	second := postRequest(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, map[string]string{"Session-Id": sessionID})
	secondRR := httptest.NewRecorder()
	h.ServeHTTP(secondRR, second)

	if secondRR.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", secondRR.Code, secondRR.Body.String())
	}
	if secondRR.Header().Get(wire.HeaderSessionID) != sessionID {
		t.Fatalf("session id changed between requests: %q vs %q", secondRR.Header().Get(wire.HeaderSessionID), sessionID)
	}
}

func TestHandler_ToolsCall_UnknownTool(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}`, nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", rr.Code, rr.Body.String())
	}
	body := decodeErrorBody(t, rr)
	if !strings.Contains(body.Error.Message, "does_not_exist") {
		t.Fatalf("error message = %q, want it to name the unknown tool", body.Error.Message)
	}
}

func TestHandler_ToolsCall_ToolErrorIsA200WithIsError(t *testing.T) {
	h := newTestHandler()
	_ = h.Registry.Register(&erroringTool{})

	r := postRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"always_fails","arguments":{}}}`, nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (a tool-level error is not a transport error)", rr.Code)
	}
	var result wire.ToolsCallResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode tools/call result: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected isError true")
	}
}

func TestHandler_UnrecognizedMethod(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{"jsonrpc":"2.0","id":1,"method":"not/a/real/method"}`, nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandler_WrongContentType(t *testing.T) {
	h := newTestHandler()
	r := postRequest(`{}`, map[string]string{"Content-Type": "text/plain"})
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rr.Code)
	}
}

type erroringTool struct{}

func (erroringTool) Definition() tools.Definition {
	return tools.Definition{Name: "always_fails", InputSchema: json.RawMessage(`{}`)}
}

func (erroringTool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	return "", errors.New("always fails")
}
