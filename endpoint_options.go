package pulsewatch

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// endpointConfig holds mutable state during endpoint construction.
type endpointConfig struct {
	method  string
	headers map[string]string
	body    string
	timeout time.Duration
	labels  map[string]string
}

// EndpointOption is a function that configures an [Endpoint] during construction.
//
// Options return an error if validation fails.
type EndpointOption func(*endpointConfig) error

// WithLabels adds metadata labels to the endpoint.
//
// Labels are carried into every [StatusResult] for the endpoint so callbacks
// can route or filter on them.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API", url,
//	    pulsewatch.WithLabels("env", "production", "team", "platform"),
//	)
func WithLabels(keyValues ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithHeaders adds custom HTTP headers to probe requests for this endpoint.
//
// A User-Agent identifying pulsewatch is added to requests that do not set
// one.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API", url,
//	    pulsewatch.WithHeaders("content-type", "application/json"),
//	)
func WithHeaders(keyValues ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithBody sets the request body.
//
// The body is only sent for methods that carry one (POST, PUT and PATCH);
// it is ignored otherwise.
func WithBody(body string) EndpointOption {
	return func(cfg *endpointConfig) error {
		cfg.body = body
		return nil
	}
}

// WithTimeout sets the HTTP request timeout for this endpoint.
//
// A probe that does not complete within this duration is recorded as DOWN.
// The effective timeout never exceeds nine tenths of the polling interval.
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) EndpointOption {
	return func(cfg *endpointConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMethod sets the HTTP method for probe requests.
//
// Supported methods are GET (default), HEAD, POST, PUT, PATCH, DELETE and
// OPTIONS. The method is matched case-insensitively and stored upper-case.
//
// Example:
//
//	ep, err := pulsewatch.NewEndpoint("API", url,
//	    pulsewatch.WithMethod("post"),
//	    pulsewatch.WithBody(`{"foo":"bar"}`),
//	)
func WithMethod(method string) EndpointOption {
	return func(cfg *endpointConfig) error {
		m, err := normalizeMethod(method)
		if err != nil {
			return err
		}
		cfg.method = m
		return nil
	}
}

// normalizeMethod upper-cases method and checks it is supported.
// Empty means GET.
func normalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case "":
		return http.MethodGet, nil
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m, nil
	default:
		return "", errors.New("method must be GET, HEAD, POST, PUT, PATCH, DELETE, or OPTIONS")
	}
}
