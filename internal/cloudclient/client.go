// Package cloudclient is a small HTTP/JSON client for the cloud system of
// record. Credentials and base URL are read live from config on every call
// so re-pairing takes effect without a restart.
package cloudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// CredentialSource supplies identity and connection details live, read fresh
// on every call so that re-pairing or config reload takes effect immediately.
type CredentialSource interface {
	CloudBaseURL() string
	CloudAPIKey() string
	CloudTenantID() string
	CloudLocationID() string
}

// Client calls the cloud system of record's hub API.
type Client struct {
	httpClient *http.Client
	creds      CredentialSource
}

// New creates a cloud client with the default per-call timeout.
func New(creds CredentialSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		creds:      creds,
	}
}

// Envelope is the uniform response shape every call returns, whether the
// underlying HTTP call succeeded, failed, or never reached the network.
type Envelope struct {
	OK     bool
	Status int
	Data   json.RawMessage
	Error  string
}

// IsConfigured reports whether the base URL and API key are both present.
// Engines must gate their work on this before attempting any call.
func (c *Client) IsConfigured() bool {
	return c.creds.CloudBaseURL() != "" && c.creds.CloudAPIKey() != ""
}

func (c *Client) setIdentityHeaders(req *http.Request) {
	req.Header.Set("X-API-Key", c.creds.CloudAPIKey())
	req.Header.Set("X-Tenant-ID", c.creds.CloudTenantID())
	req.Header.Set("X-Location-ID", c.creds.CloudLocationID())
}

// Get issues a GET request against path (relative to the configured base
// URL) with the given raw query string, and returns the uniform envelope.
// The client never retries; retry policy belongs to the caller.
func (c *Client) Get(ctx context.Context, path, rawQuery string) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, path, rawQuery, nil)
}

// Post issues a POST request with a JSON-encoded body and returns the
// uniform envelope.
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "", bytes.NewReader(encoded))
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, body io.Reader) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	url := strings.TrimRight(c.creds.CloudBaseURL(), "/") + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setIdentityHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failure or timeout: still a well-formed envelope, not a
		// Go error, so callers can treat every outcome uniformly.
		return &Envelope{OK: false, Status: 0, Error: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	env := &Envelope{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if len(raw) > 0 {
			env.Data = json.RawMessage(raw)
		}
	}

	if !env.OK && env.Error == "" {
		env.Error = fmt.Sprintf("cloud returned HTTP %d", resp.StatusCode)
	}

	return env, nil
}
