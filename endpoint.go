package pulsewatch

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const defaultEndpointTimeout = 10 * time.Second

// Endpoint represents an HTTP target to probe for availability.
//
// Endpoint is immutable after creation via [NewEndpoint]. All fields are
// private with getter methods that return copies of mutable data (maps),
// ensuring the endpoint cannot be modified after construction.
//
// Endpoints are configured using the functional options pattern with
// [EndpointOption] functions such as [WithMethod], [WithHeaders], [WithBody],
// [WithTimeout] and [WithLabels].
type Endpoint struct {
	name    string
	url     string
	domain  string
	method  string
	headers map[string]string
	body    string
	timeout time.Duration
	labels  map[string]string
}

// Name returns the endpoint's display name.
// The name identifies the endpoint in logs and metric labels.
func (e Endpoint) Name() string {
	return e.name
}

// URL returns the endpoint's target URL as a string.
func (e Endpoint) URL() string {
	return e.url
}

// Domain returns the lowercased host of the endpoint's URL with any port
// stripped. Availability is aggregated per domain.
func (e Endpoint) Domain() string {
	return e.domain
}

// Method returns the upper-case HTTP method used for probes.
// Defaults to GET.
func (e Endpoint) Method() string {
	return e.method
}

// Headers returns a copy of the endpoint's custom HTTP headers.
// Returns nil if no custom headers are set.
func (e Endpoint) Headers() map[string]string {
	return copyMap(e.headers)
}

// Body returns the request body. It is only sent for POST, PUT and PATCH.
func (e Endpoint) Body() string {
	return e.body
}

// Timeout returns the endpoint's HTTP request timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (e Endpoint) Timeout() time.Duration {
	return e.timeout
}

// Labels returns a copy of the endpoint's labels.
// Labels are key-value metadata passed through to status callbacks.
// Returns nil if no labels are set.
func (e Endpoint) Labels() map[string]string {
	return copyMap(e.labels)
}

// NewEndpoint creates an [Endpoint] with the given name, URL, and options.
//
// The rawURL parameter must be an absolute http:// or https:// URL with a host.
//
// Options are applied in order using the functional options pattern.
//
// Returns an error if the name is empty or the URL is invalid.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("fetch index page", "https://fetch.com/",
//	    pulsewatch.WithHeaders("user-agent", "fetch-synthetic-monitor"),
//	    pulsewatch.WithTimeout(5 * time.Second),
//	)
func NewEndpoint(name, rawURL string, opts ...EndpointOption) (Endpoint, error) {
	if strings.TrimSpace(name) == "" {
		return Endpoint{}, errors.New("endpoint name cannot be empty")
	}

	domain, err := targetDomain(rawURL)
	if err != nil {
		return Endpoint{}, err
	}

	cfg := &endpointConfig{
		method:  "GET",
		labels:  make(map[string]string),
		headers: make(map[string]string),
		timeout: defaultEndpointTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Endpoint{}, err
		}
	}

	return Endpoint{
		name:    name,
		url:     rawURL,
		domain:  domain,
		method:  cfg.method,
		headers: cfg.headers,
		body:    cfg.body,
		timeout: cfg.timeout,
		labels:  cfg.labels,
	}, nil
}

// targetDomain checks that rawURL is an absolute http(s) URL with a host and
// returns its domain: the lowercased hostname without port.
func targetDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.New("invalid URL: " + err.Error())
	}
	if u.Scheme == "" {
		return "", errors.New("URL must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("URL scheme must be http or https")
	}
	if u.Hostname() == "" {
		return "", errors.New("URL must have a host")
	}
	return strings.ToLower(u.Hostname()), nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
