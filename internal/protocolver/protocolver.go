// Package protocolver holds the single supported wire-protocol version and
// validates inbound version tokens against it. It is the sole place the
// version literal is allowed to appear; no other package should inline it.
package protocolver

import (
	"errors"
	"strings"
)

// Supported is the only wire-protocol version this server accepts.
const Supported = "2025-06-18"

// ErrUnsupported is returned by Validate when a token does not match Supported.
var ErrUnsupported = errors.New("unsupported protocol version")

// Registry validates protocol-version tokens against the single supported
// version. Its zero value is ready to use.
type Registry struct{}

// Current returns the single supported version string.
func (Registry) Current() string {
	return Supported
}

// Validate trims surrounding whitespace from token and compares it against
// the supported version, returning ErrUnsupported wrapped with the offending
// token on mismatch.
func (Registry) Validate(token string) error {
	if strings.TrimSpace(token) != Supported {
		return &UnsupportedVersionError{Token: token}
	}
	return nil
}

// UnsupportedVersionError carries the offending token for diagnostics.
type UnsupportedVersionError struct {
	Token string
}

func (e *UnsupportedVersionError) Error() string {
	if e.Token == "" {
		return "missing protocol version"
	}
	return "unsupported protocol version: " + e.Token
}

func (e *UnsupportedVersionError) Unwrap() error {
	return ErrUnsupported
}

func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupported
}
