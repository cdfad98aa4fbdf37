// Package apiclient is the HTTP client for the negotiation API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/farmlink/farmlink/internal/wire"
)

// ErrNotFound matches a 404 StatusError through errors.Is.
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Opts configures a Client.
type Opts struct {
	BaseURL    string
	UserID     string        // sent as X-User-ID
	HTTPClient *http.Client  // optional
	Timeout    time.Duration // used when HTTPClient is nil, default 10s
}

// Client talks to GET and PUT /negotiations/{id}.
type Client struct {
	base   string
	userID string
	http   *http.Client
}

// New returns a Client for opts.BaseURL.
func New(opts Opts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base URL: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		userID: opts.UserID,
		http:   hc,
	}, nil
}

// Get fetches negotiation id.
func (c *Client) Get(ctx context.Context, id string) (*wire.Negotiation, error) {
	return c.do(ctx, http.MethodGet, id, nil, "")
}

// Update applies req to negotiation id. A non-empty idempotencyKey is sent
// as the Idempotency-Key header.
func (c *Client) Update(ctx context.Context, id string, req wire.UpdateRequest, idempotencyKey string) (*wire.Negotiation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPut, id, body, idempotencyKey)
}

func (c *Client) do(ctx context.Context, method, id string, body []byte, idempotencyKey string) (*wire.Negotiation, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.base+"/negotiations/"+url.PathEscape(id), r)
	if err != nil {
		return nil, fmt.Errorf("apiclient: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		httpReq.Header.Set(wire.HeaderUserID, c.userID)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set(wire.HeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	var n wire.Negotiation
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return nil, fmt.Errorf("apiclient: decode response: %w", err)
	}
	return &n, nil
}

// statusError reads the {"error": ...} body if there is one.
func statusError(resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Code: resp.StatusCode}
	var body wire.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		se.Message = body.Error
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
