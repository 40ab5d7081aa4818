package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultUserAgent is sent when an endpoint does not set its own User-Agent.
const DefaultUserAgent = "pulsewatch/1.0"

// connection pooling limits to prevent resource exhaustion when probing many endpoints
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Request describes a single HTTP probe request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the time until response headers arrived, or until the
	// request failed.
	Latency time.Duration

	// Error contains any transport-level error.
	// nil indicates a response was received (whatever its status).
	Error error
}

// Client is an HTTP client wrapper optimized for probing endpoints.
//
// Client uses per-request timeouts via context rather than a global timeout,
// allowing different endpoints to have different timeout configurations.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new probing [Client].
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
//
// There is no cap on concurrent connections per host; a request queued
// behind a cap would have the wait counted as response time.
func NewClient() *Client {
	return newClient(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		DisableKeepAlives:   false, // explicitly enable connection reuse
	})
}

func newClient(transport http.RoundTripper) *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: transport,
		},
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If the method is empty, GET is used. The body is only attached for methods
// that carry one (POST, PUT, PATCH). A User-Agent header is added unless the
// request supplies one. The timeout is applied via context cancellation.
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Fetch(ctx context.Context, r Request) Response {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != "" && methodTakesBody(method) {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}

	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Response{
			Latency: latency,
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// drain with a size limit so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	return Response{
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func methodTakesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
