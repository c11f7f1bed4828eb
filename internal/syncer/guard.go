package syncer

import (
	"errors"
	"fmt"
	"net/url"
)

// Configuration errors. These are never retried automatically; the
// caller must fix the settings first.
var (
	// ErrNotConfigured marks a missing server URL or client identity.
	ErrNotConfigured = errors.New("sync not configured")

	// ErrInsecureURL marks a plaintext URL pointing at a non-loopback
	// host.
	ErrInsecureURL = errors.New("server URL must use HTTPS")
)

// ValidateServerURL checks that a candidate endpoint is safe to talk
// to: either the host is loopback (plain HTTP allowed for local
// development) or the scheme is HTTPS. Every outbound call goes through
// this guard before any network I/O; a guard failure is a configuration
// error, not a network error.
func ValidateServerURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("server URL is empty: %w", ErrNotConfigured)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing server URL %q: %w", raw, err)
	}

	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return nil
	}

	if u.Scheme == "https" {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInsecureURL, raw)
}
