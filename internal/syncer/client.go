package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// TransientError wraps an error that is likely temporary and safe to
// retry on the next sync cycle.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RemoteError is a logical failure reported by a reachable server
// (success:false). The server's message is preserved verbatim for
// diagnostics.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "server reported failure"
	}

	return e.Message
}

const (
	// healthTimeout bounds the lightweight health probe.
	healthTimeout = 5 * time.Second

	// registerTimeout bounds client registration.
	registerTimeout = 10 * time.Second

	// bulkTimeout bounds full-snapshot upload and download calls,
	// which can carry a semester's worth of entries.
	bulkTimeout = 30 * time.Second

	// maxResponseBytes caps response body reads so a misbehaving
	// server cannot consume unbounded memory.
	maxResponseBytes = 4 * 1024 * 1024
)

// Client talks to a ClassTop management server. The base URL is
// supplied per call because it lives in the settings store and can
// change at runtime.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an API client. If httpClient is nil a default
// client is used; per-call deadlines come from context timeouts, not
// the http.Client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{httpClient: httpClient}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// do sends one request and decodes the enveloped JSON response into
// result. The envelope's success flag is checked here: a reachable
// server answering success:false becomes a RemoteError.
func (c *Client) do(ctx context.Context, method, rawURL string, body, result interface{}) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS
		// failures) are transient by nature.
		return &TransientError{Err: fmt.Errorf("sending request to %s: %w", rawURL, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env Envelope
		if json.Unmarshal(respBody, &env) == nil && env.Message != "" {
			err := fmt.Errorf("server returned status %d: %s", resp.StatusCode, env.Message)
			if isTransientStatus(resp.StatusCode) {
				return &TransientError{Err: err}
			}

			return err
		}

		err := fmt.Errorf("server returned status %d: %s", resp.StatusCode, sanitizeResponseBody(respBody))
		if isTransientStatus(resp.StatusCode) {
			return &TransientError{Err: err}
		}

		return err
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	if !env.Success {
		return &RemoteError{Message: env.Message}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", rawURL, err)
		}
	}

	return nil
}

// joinURL appends a path to the configured server URL, tolerating a
// trailing slash in settings.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// Register announces this client's identity to the server.
// Idempotent: re-registering the same UUID succeeds.
func (c *Client) Register(ctx context.Context, baseURL string, req RegisterRequest) error {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	if err := c.do(ctx, http.MethodPost, joinURL(baseURL, "/api/clients/register"), req, nil); err != nil {
		return fmt.Errorf("registering client: %w", err)
	}

	return nil
}

// HealthData is the optional payload of the health endpoint.
type HealthData map[string]interface{}

// Health probes the server's health endpoint.
func (c *Client) Health(ctx context.Context, baseURL string) (HealthData, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var resp struct {
		Envelope
		Data HealthData `json:"data"`
	}

	if err := c.do(ctx, http.MethodGet, joinURL(baseURL, "/api/health"), nil, &resp); err != nil {
		return nil, fmt.Errorf("checking server health: %w", err)
	}

	return resp.Data, nil
}

// PushSnapshot uploads one full dataset snapshot and returns the
// server's stored counts.
func (c *Client) PushSnapshot(ctx context.Context, baseURL string, req SyncRequest) (SyncCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, bulkTimeout)
	defer cancel()

	var resp struct {
		Envelope
		Data SyncCounts `json:"data"`
	}

	if err := c.do(ctx, http.MethodPost, joinURL(baseURL, "/api/sync"), req, &resp); err != nil {
		return SyncCounts{}, fmt.Errorf("uploading snapshot: %w", err)
	}

	return resp.Data, nil
}

// FetchCourses downloads this client's remote-visible courses.
func (c *Client) FetchCourses(ctx context.Context, baseURL, clientUUID string) ([]WireCourse, error) {
	ctx, cancel := context.WithTimeout(ctx, bulkTimeout)
	defer cancel()

	var resp struct {
		Envelope
		Data struct {
			Courses []WireCourse `json:"courses"`
		} `json:"data"`
	}

	url := joinURL(baseURL, "/api/clients/"+clientUUID+"/courses")
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("downloading courses: %w", err)
	}

	return resp.Data.Courses, nil
}

// FetchSchedule downloads this client's remote-visible schedule entries.
func (c *Client) FetchSchedule(ctx context.Context, baseURL, clientUUID string) ([]WireEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, bulkTimeout)
	defer cancel()

	var resp struct {
		Envelope
		Data struct {
			Entries []WireEntry `json:"schedule_entries"`
		} `json:"data"`
	}

	url := joinURL(baseURL, "/api/clients/"+clientUUID+"/schedule")
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("downloading schedule: %w", err)
	}

	return resp.Data.Entries, nil
}
