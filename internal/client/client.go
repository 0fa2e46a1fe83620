// Package client implements the engine's remote collaborators over HTTP:
// the song catalog, the answer judge, the reveal endpoint and the score
// ledger. Each call is fire-once; classification of failures happens here so
// the round only ever sees typed errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CredentialProvider supplies the opaque bearer token attached to
// authenticated requests. The client never parses or issues tokens.
type CredentialProvider interface {
	Token() string
}

// StaticToken is a CredentialProvider for a fixed token. Empty means guest.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Config holds client settings.
type Config struct {
	// BaseURL is the API root, e.g. "http://127.0.0.1:5000/api/v1".
	BaseURL string

	// HTTPClient allows injecting a custom client (useful for testing).
	// Defaults to a client with a 15s timeout.
	HTTPClient *http.Client

	// Credentials supplies the bearer token when no per-call credential
	// is given. Optional.
	Credentials CredentialProvider
}

// Client talks to the songdle API.
type Client struct {
	base string
	http *http.Client
	cred CredentialProvider
}

// New creates a client with the given configuration.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: cfg.BaseURL, http: hc, cred: cfg.Credentials}
}

// apiError is the error body shape the server emits.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// do issues one request and decodes a JSON body into out when the status is
// 2xx. Non-2xx responses are returned as *httpError with the parsed body.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" && c.cred != nil {
		bearer = c.cred.Token()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		he := &httpError{Status: res.StatusCode}
		_ = json.NewDecoder(res.Body).Decode(&he.Body)
		return he
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("client: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// transportError wraps a failure to reach the server at all.
type transportError struct{ err error }

func (t *transportError) Error() string { return "client: transport: " + t.err.Error() }
func (t *transportError) Unwrap() error { return t.err }

// httpError is a non-2xx response with its decoded body.
type httpError struct {
	Status int
	Body   apiError
}

func (h *httpError) Error() string {
	if h.Body.Error != "" {
		return fmt.Sprintf("client: http %d: %s", h.Status, h.Body.Error)
	}
	return fmt.Sprintf("client: http %d", h.Status)
}
