// Package transport implements the single protocol endpoint handler:
// it sequences the header contract, protocol-version registry, security
// gate, session manager, and tool dispatch, emitting every response —
// success or error — in the canonical wire format.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"docs-mcp-server/internal/metrics"
	"docs-mcp-server/internal/protocolver"
	"docs-mcp-server/internal/security"
	"docs-mcp-server/internal/session"
	"docs-mcp-server/internal/tools"
	"docs-mcp-server/internal/wire"
	"docs-mcp-server/pkg/crypto"
	"docs-mcp-server/pkg/mcptypes"
)

// DefaultMaxJSONBodyBytes is the default body-size ceiling.
const DefaultMaxJSONBodyBytes = 2 << 20 // 2 MiB

// ServerInfo identifies this server in the initialize response.
var ServerInfo = wire.ServerInfo{Name: "docs-mcp-server", Version: "0.1.0"}

// Handler is the single entry point for the protocol endpoint.
type Handler struct {
	Registry *tools.Registry
	Sessions *session.Manager
	Security *security.Gate
	Metrics  *metrics.Counters
	Versions protocolver.Registry

	MaxJSONBodyBytes int64
}

// New constructs a Handler with DefaultMaxJSONBodyBytes.
func New(registry *tools.Registry, sessions *session.Manager, gate *security.Gate, counters *metrics.Counters) *Handler {
	return &Handler{
		Registry:         registry,
		Sessions:         sessions,
		Security:         gate,
		Metrics:          counters,
		MaxJSONBodyBytes: DefaultMaxJSONBodyBytes,
	}
}

// ServeHTTP dispatches by verb: all non-POST verbs are refused with 405;
// POST runs the nine-step request pipeline.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Metrics.IncRequestsTotal()

	if r.Method != http.MethodPost {
		h.Metrics.IncMethodNotAllowed()
		h.writeTransportError(w, wire.NewTransportError(wire.KindMethodNotAllowed, "Method Not Allowed"), "")
		return
	}

	h.handlePost(w, r)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	// Step 1: Content-Type present and acceptable.
	if !wire.ValidateContentType(r.Header) {
		h.writeTransportError(w, wire.NewTransportError(wire.KindUnsupportedContentType, "Content-Type must be application/json"), "")
		return
	}

	// Step 2: Accept compatible.
	if !wire.ValidateAccept(r.Header) {
		h.writeTransportError(w, wire.NewTransportError(wire.KindUnacceptableMediaType, "Accept header is not compatible with application/json"), "")
		return
	}

	// Step 3: Protocol-version extractor passes.
	versionToken := wire.ExtractProtocolVersion(r.Header)
	if versionToken == "" {
		h.Metrics.IncProtocolVersionErrors()
		h.writeTransportError(w, wire.NewTransportError(wire.KindMissingProtocolVersion, "Protocol-Version header is required"), "")
		return
	}
	if err := h.Versions.Validate(versionToken); err != nil {
		h.Metrics.IncProtocolVersionErrors()
		h.writeTransportError(w, wire.NewTransportError(wire.KindUnsupportedProtocolVersion, "Unsupported protocol version"), "")
		return
	}

	// Step 4: body size limit.
	maxBytes := h.MaxJSONBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxJSONBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		h.writeTransportError(w, wire.NewTransportError(wire.KindInternalError, "failed to read request body"), "")
		return
	}
	if int64(len(body)) > maxBytes {
		h.writeTransportError(w, wire.NewTransportError(wire.KindBodyTooLarge, "request body exceeds maximum size"), "")
		return
	}

	// Step 5: JSON parse.
	var req wire.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.Metrics.IncJSONParseErrors()
		h.writeTransportError(w, wire.NewTransportError(wire.KindJSONParseError, "failed to parse request body as JSON"), "")
		return
	}

	// Step 6: security gate.
	if err := h.Security.Check(r); err != nil {
		h.Metrics.IncSecurityValidationErrors()
		if te, ok := err.(*wire.TransportError); ok {
			h.writeTransportError(w, te, "")
			return
		}
		h.writeTransportError(w, wire.NewTransportError(wire.KindOriginNotAllowed, err.Error()), "")
		return
	}

	// Step 7: session resolution.
	sessionID, sessErr := h.resolveSession(r, versionToken)
	if sessErr != nil {
		if te, ok := sessErr.(*wire.TransportError); ok {
			h.writeTransportError(w, te, "")
			return
		}
		h.writeTransportError(w, wire.NewTransportError(wire.KindSessionNotFound, sessErr.Error()), "")
		return
	}

	// Step 8: dispatch.
	result, dispatchErr := h.dispatch(r.Context(), req)
	if dispatchErr != nil {
		if te, ok := dispatchErr.(*wire.TransportError); ok {
			h.writeTransportError(w, te, sessionID)
			return
		}
		h.Metrics.IncInternalErrors()
		h.writeTransportError(w, wire.NewTransportError(wire.KindInternalError, "internal error"), sessionID)
		return
	}

	// Step 9: success response.
	wire.SetJSONResponseHeaders(w.Header(), h.Versions.Current(), sessionID)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
	h.Metrics.IncPostRequestsSuccess()
}

func (h *Handler) resolveSession(r *http.Request, versionToken string) (string, error) {
	client := mcptypes.ClientInfo{
		UserAgent: r.Header.Get("User-Agent"),
		Origin:    r.Header.Get("Origin"),
		PeerAddr:  r.RemoteAddr,
	}

	existing := wire.ExtractSessionID(r.Header)
	if existing == "" {
		id, err := h.Sessions.Create(client, versionToken)
		if err != nil {
			return "", classifySessionErr(err)
		}
		h.Metrics.IncSessionsCreated()
		return id, nil
	}

	if err := h.Sessions.Touch(existing); err != nil {
		return "", classifySessionErr(err)
	}
	return existing, nil
}

func classifySessionErr(err error) error {
	switch err {
	case session.ErrNotFound:
		return wire.NewTransportError(wire.KindSessionNotFound, "session not found")
	case session.ErrExpired:
		return wire.NewTransportError(wire.KindSessionExpired, "session expired")
	case session.ErrMaxSessionsReached:
		return wire.NewTransportError(wire.KindMaxSessionsReached, "maximum session count reached")
	default:
		return err
	}
}

func (h *Handler) dispatch(ctx context.Context, req wire.Request) (any, error) {
	switch req.Method {
	case "initialize":
		return wire.InitializeResult{
			ProtocolVersion: h.Versions.Current(),
			ServerInfo:      ServerInfo,
		}, nil

	case "tools/list":
		defs := h.Registry.List()
		raw := make([]json.RawMessage, 0, len(defs))
		for _, def := range defs {
			encoded, err := json.Marshal(def)
			if err != nil {
				return nil, err
			}
			raw = append(raw, encoded)
		}
		return wire.ToolsListResult{Tools: raw}, nil

	case "tools/call":
		var params wire.ToolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return nil, wire.NewTransportError(wire.KindMissingToolName, "params.name is required")
		}
		logToolCallArguments(ctx, params.Name, params.Arguments)
		return h.Registry.Call(ctx, params.Name, params.Arguments)

	default:
		return nil, wire.NewTransportError(wire.KindMissingToolName, "unrecognized method: "+req.Method)
	}
}

// logToolCallArguments logs a dispatched tool call's arguments at debug
// level with sensitive fields (API keys, tokens, passwords) redacted, since
// tool arguments are attacker- and user-supplied request metadata.
func logToolCallArguments(ctx context.Context, toolName string, raw json.RawMessage) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) || len(raw) == 0 {
		return
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return
	}
	slog.DebugContext(ctx, "dispatching tool call", "tool", toolName, "arguments", crypto.RedactMap(args))
}

func (h *Handler) writeTransportError(w http.ResponseWriter, te *wire.TransportError, sessionID string) {
	wire.SetJSONResponseHeaders(w.Header(), h.Versions.Current(), sessionID)
	w.WriteHeader(te.Status())
	if err := json.NewEncoder(w).Encode(te.Body()); err != nil {
		slog.Error("failed to encode error response body", "error", err)
	}
}

// TimeoutBody is the canonical wire-format error body used by the top-level
// http.TimeoutHandler wrapping this Handler (per-request deadline is a
// server-wide value; on expiry, 504/Timeout with the standard header
// contract — the Protocol-Version header is set by the caller since
// http.TimeoutHandler only lets us supply a body, not headers).
func TimeoutBody(versions protocolver.Registry) string {
	encoded, _ := json.Marshal(wire.NewTransportError(wire.KindTimeout, "request timed out").Body())
	return string(encoded)
}
