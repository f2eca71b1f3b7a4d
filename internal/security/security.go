// Package security implements the security gate: origin allow-listing,
// DNS-rebinding detection, and loopback-binding enforcement.
package security

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"docs-mcp-server/internal/wire"
)

// Config controls the security gate's behavior. The zero value is not
// useful; start from DefaultConfig.
type Config struct {
	AllowedOrigins         []string
	StrictOriginValidation bool
	RequireOriginHeader    bool
	LocalhostOnly          bool
}

// DefaultConfig allow-lists loopback origins on any port and requires
// neither strict validation nor a present Origin header, matching the
// permissive-by-default posture of a local developer tool.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:         nil,
		StrictOriginValidation: false,
		RequireOriginHeader:    false,
		LocalhostOnly:          true,
	}
}

// Gate validates request origin and the server's own bind address.
type Gate struct {
	cfg Config
}

// New constructs a Gate from cfg.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Check runs the four ordered checks against r.
func (g *Gate) Check(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))

	if origin == "" {
		if g.cfg.RequireOriginHeader {
			return wire.NewTransportError(wire.KindMissingOriginHeader, "Origin header is required")
		}
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return wire.NewTransportError(wire.KindInvalidOriginFormat, "Origin header is not a valid URL")
	}

	if !g.allowed(originURL) {
		return wire.NewTransportError(wire.KindOriginNotAllowed, "Origin is not allowed: "+origin)
	}

	host := r.Host
	if host != "" && !hostsMatch(host, originURL.Host) && !isLoopbackHost(originURL.Hostname()) {
		return wire.NewTransportError(wire.KindDNSRebindingDetected, "Origin host does not match request Host")
	}

	return nil
}

func (g *Gate) allowed(originURL *url.URL) bool {
	if isLoopbackHost(originURL.Hostname()) {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if g.cfg.StrictOriginValidation {
			if allowedURL.Scheme == originURL.Scheme && allowedURL.Host == originURL.Host {
				return true
			}
		} else if allowedURL.Hostname() == originURL.Hostname() {
			return true
		}
	}
	return false
}

func hostsMatch(requestHost, originHost string) bool {
	return stripPort(requestHost) == stripPort(originHost)
}

func stripPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateBindAddress enforces loopback-only binding at startup when
// LocalhostOnly is set, returning LocalhostBindingRequired otherwise.
func (g *Gate) ValidateBindAddress(addr string) error {
	if !g.cfg.LocalhostOnly {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		return wire.NewTransportError(wire.KindLocalhostBindingReq, "server must bind to a loopback address")
	}
	if !isLoopbackHost(host) {
		return wire.NewTransportError(wire.KindLocalhostBindingReq, "server must bind to a loopback address")
	}
	return nil
}
