package kairosdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 64 << 20 // 64 MB

	// defaultHealthTimeout bounds a single health probe.
	defaultHealthTimeout = 5 * time.Second

	// idleConnTimeout is how long a kept-alive connection may sit unused.
	idleConnTimeout = 90 * time.Second

	// maxIdleConnsPerHost is the keep-alive pool size towards the backend.
	maxIdleConnsPerHost = 16

	contentTypeJSON = "application/json"
)

// Client sends requests to a KairosDB REST endpoint.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Response is a fully read backend response.
type Response struct {
	// StatusCode is the numeric HTTP status.
	StatusCode int

	// Reason is the reason phrase ("No Content", "Bad Request", ...).
	Reason string

	// Body is the response body, possibly empty.
	Body []byte
}

// New creates a client for the KairosDB instance at baseURL
// (for example "http://localhost:8080").
//
// Parameters:
//   - baseURL: Scheme, host and port of the backend
//   - timeout: Upper bound for one request/response exchange; 0 disables it
//
// Returns:
//   - *Client: Ready to use; no connection is made until the first request
func New(baseURL string, timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = maxIdleConnsPerHost
	transport.IdleConnTimeout = idleConnTimeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends one request and reads the whole response.
//
// The path is appended to the base URL as given; callers are responsible for
// any escaping. A non-nil body is sent as JSON with an explicit
// Content-Length. Any status code is returned as a Response; only transport
// failures produce an error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - method: HTTP method
//   - path: Absolute path beginning with "/"
//   - body: JSON request body, or nil for none
//
// Returns:
//   - *Response: Status and body
//   - error: ErrInvalidRequest, ErrRequestFailed or ErrReadFailed (wrapped)
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
		req.ContentLength = int64(len(body))
	}
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       data,
	}, nil
}

// HealthCheck verifies the backend answers GET /api/v1/version with 200.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	resp, err := c.Do(ctx, http.MethodGet, "/api/v1/version", nil)
	if err != nil {
		return fmt.Errorf("kairosdb health check: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	return nil
}

// Close releases idle keep-alive connections.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// reasonPhrase extracts the reason phrase from the status line, falling back
// to the standard text for the code.
func reasonPhrase(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if reason, ok := strings.CutPrefix(resp.Status, prefix); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
