// Package wire defines the JSON-RPC-over-HTTP envelope and header contract
// shared by every request the transport handler serves.
package wire

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// Header names are part of the wire protocol and must match bit-exactly.
const (
	HeaderProtocolVersion = "Protocol-Version"
	HeaderSessionID       = "Session-Id"
)

// Request is the inbound JSON-RPC envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ErrorBody is the canonical error envelope body.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a JSON-RPC-flavored error code, a short message, and
// optional structured detail.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// InitializeResult is the body returned for the "initialize" method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises the (currently empty) tools capability object.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsListResult is the body returned for "tools/list".
type ToolsListResult struct {
	Tools []json.RawMessage `json:"tools"`
}

// ToolsCallParams is the parsed params object for "tools/call".
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolsCallResult is the envelope wrapping a tool's output, success or error.
type ToolsCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is a single piece of tool output content.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult builds a ToolsCallResult from plain text, optionally marked
// as an error result (a tool error is not a transport error).
func TextResult(text string, isError bool) ToolsCallResult {
	return ToolsCallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// ExtractProtocolVersion returns the Protocol-Version header value, or ""
// if absent. Presence/validity is judged by the caller via protocolver.
func ExtractProtocolVersion(h http.Header) string {
	return strings.TrimSpace(h.Get(HeaderProtocolVersion))
}

// ExtractSessionID returns the Session-Id header value, or "" if absent.
func ExtractSessionID(h http.Header) string {
	return strings.TrimSpace(h.Get(HeaderSessionID))
}

// acceptableContentTypes are the media types the transport handler accepts
// on inbound POST bodies; text/event-stream is reserved for forward
// compatibility with a future streaming transport and is not served today.
var acceptableContentTypes = map[string]bool{
	"application/json":  true,
	"text/event-stream": true,
}

// ValidateContentType parses the Content-Type header and reports whether it
// names an acceptable media type.
func ValidateContentType(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return acceptableContentTypes[mt]
}

// ValidateAccept reports whether the Accept header (absent defaults to
// acceptable) is compatible with a JSON response.
func ValidateAccept(h http.Header) bool {
	accept := strings.TrimSpace(h.Get("Accept"))
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/json", "application/*", "*/*":
			return true
		}
	}
	return false
}

// SetResponseHeaders sets the protocol-version header and, when sessionID
// is non-empty, the session-id header. It never sets Content-Type.
func SetResponseHeaders(h http.Header, protocolVersion, sessionID string) {
	h.Set(HeaderProtocolVersion, protocolVersion)
	if sessionID != "" {
		h.Set(HeaderSessionID, sessionID)
	}
}

// SetJSONResponseHeaders is SetResponseHeaders plus Content-Type: application/json.
func SetJSONResponseHeaders(h http.Header, protocolVersion, sessionID string) {
	SetResponseHeaders(h, protocolVersion, sessionID)
	h.Set("Content-Type", "application/json")
}
