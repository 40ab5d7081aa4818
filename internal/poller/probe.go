package poller

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	// SlowThreshold is the response time at or above which an endpoint is
	// considered unavailable even with a 2xx status.
	SlowThreshold = 500 * time.Millisecond

	// DefaultTimeout bounds a probe when the endpoint sets no timeout.
	DefaultTimeout = 10 * time.Second
)

// EndpointInfo contains the configuration needed to probe a single endpoint.
//
// EndpointInfo values are immutable once placed in a registry version.
type EndpointInfo struct {
	// Name is the unique display name of the endpoint.
	Name string

	// URL is the target URL to probe.
	URL string

	// Domain is the lowercased host of URL without the port.
	Domain string

	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// Headers contains custom HTTP headers to send with requests.
	Headers map[string]string

	// Body is sent for methods that carry a body.
	Body string

	// Timeout is the per-request timeout. Zero uses [DefaultTimeout].
	Timeout time.Duration

	// Labels is caller metadata carried through to observers. The prober
	// ignores it.
	Labels map[string]string
}

// Result is the outcome of probing one endpoint once.
type Result struct {
	EndpointName string
	URL          string
	Domain       string

	// StatusCode is zero when no response was received.
	StatusCode int

	// Latency is the time to response headers, or to the point of failure.
	Latency time.Duration

	// Available is the classification under [IsAvailable].
	Available bool

	CheckedAt time.Time

	// Error is set for transport failures and recovered panics.
	Error error
}

// HasStatus reports whether a response status code was received.
func (r Result) HasStatus() bool {
	return r.StatusCode != 0
}

// IsAvailable reports whether a response counts as an UP sample:
// a 2xx status received in under [SlowThreshold].
func IsAvailable(statusCode int, latency time.Duration) bool {
	return statusCode >= 200 && statusCode <= 299 && latency < SlowThreshold
}

// DomainOf returns the lowercased host of rawURL with any port stripped.
// Returns an empty string if rawURL cannot be parsed.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Prober turns an [EndpointInfo] into a [Result].
//
// Prober holds no mutable state and may be invoked concurrently.
type Prober struct {
	client     *Client
	maxTimeout time.Duration
}

// TimeoutBudget returns the probe timeout cap for a cycle interval. It
// leaves a tenth of the interval for recording and the cycle summary so that
// a probe hitting the cap does not push the cycle past the next tick.
// A non-positive interval means no cap.
func TimeoutBudget(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return interval * 9 / 10
}

// NewProber creates a [Prober] using client.
//
// maxTimeout caps every per-request timeout so that probes resolve before the
// next cycle; zero means no cap.
func NewProber(client *Client, maxTimeout time.Duration) *Prober {
	return &Prober{
		client:     client,
		maxTimeout: maxTimeout,
	}
}

// Probe issues one request to ep and classifies the response.
func (p *Prober) Probe(ctx context.Context, ep EndpointInfo) Result {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if p.maxTimeout > 0 && timeout > p.maxTimeout {
		timeout = p.maxTimeout
	}

	domain := ep.Domain
	if domain == "" {
		domain = DomainOf(ep.URL)
	}

	resp := p.client.Fetch(ctx, Request{
		Method:  ep.Method,
		URL:     ep.URL,
		Headers: ep.Headers,
		Body:    ep.Body,
		Timeout: timeout,
	})

	return Result{
		EndpointName: ep.Name,
		URL:          ep.URL,
		Domain:       domain,
		StatusCode:   resp.StatusCode,
		Latency:      resp.Latency,
		Available:    resp.Error == nil && IsAvailable(resp.StatusCode, resp.Latency),
		CheckedAt:    time.Now(),
		Error:        resp.Error,
	}
}

// Close releases idle connections held by the underlying client.
func (p *Prober) Close() {
	p.client.Close()
}
