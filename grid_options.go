package pulsewatch

import (
	"errors"
	"fmt"
	"time"
)

// gridConfig holds configuration during endpoint grid construction.
type gridConfig struct {
	urlTemplate  string
	dimensions   map[string][]string
	staticLabels map[string]string
	headers      map[string]string
	body         string
	timeout      time.Duration
	method       string
}

// GridOption configures endpoint grid generation.
// GridOption implements the functional options pattern for [NewEndpointGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the URL template for endpoint generation.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithURLTemplate("https://api.example.com/health?env={{.env}}&region={{.region}}")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a template variable and a label on every generated
// endpoint.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "env":    {"prod", "staging"},
//	    "region": {"us-east", "eu-west"},
//	})
//
// Returns an error if the map is empty, a dimension has no values, or a
// value is empty or repeated. A repeated value would generate two endpoints
// with the same name.
func WithDimensions(dims map[string][]string) GridOption {
	cp, err := copyDimensions(dims)
	return func(cfg *gridConfig) error {
		if err != nil {
			return err
		}
		cfg.dimensions = cp
		return nil
	}
}

// copyDimensions validates dims and returns a deep copy.
func copyDimensions(dims map[string][]string) (map[string][]string, error) {
	if len(dims) == 0 {
		return nil, errors.New("at least one dimension required")
	}
	cp := make(map[string][]string, len(dims))
	for _, k := range sortedKeys(dims) {
		vals := dims[k]
		if len(vals) == 0 {
			return nil, fmt.Errorf("dimension '%s' has no values", k)
		}
		seen := make(map[string]bool, len(vals))
		for i, v := range vals {
			if v == "" {
				return nil, fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
			}
			if seen[v] {
				return nil, fmt.Errorf("dimension '%s' repeats value '%s'", k, v)
			}
			seen[v] = true
		}
		cp[k] = append([]string(nil), vals...)
	}
	return cp, nil
}

// WithGridLabels adds static labels to all generated endpoints.
// On collision they take precedence over dimension labels and
// [DomainLabel].
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	WithGridLabels("team", "platform", "tier", "critical")
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridLabels requires an even number of arguments (key-value pairs)")
		}
		if cfg.staticLabels == nil {
			cfg.staticLabels = make(map[string]string)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.staticLabels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridHeaders adds HTTP headers to all generated endpoints.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	WithGridHeaders("content-type", "application/json")
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridTimeout sets the HTTP request timeout for all generated endpoints.
//
// Returns an error if the duration is negative.
// A duration of zero is valid and means use the endpoint default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridBody sets the request body for all generated endpoints.
// It is only sent for methods that carry a body.
func WithGridBody(body string) GridOption {
	return func(cfg *gridConfig) error {
		cfg.body = body
		return nil
	}
}

// WithGridMethod sets the HTTP method for all generated endpoints.
//
// Accepts the same methods as [WithMethod].
func WithGridMethod(method string) GridOption {
	return func(cfg *gridConfig) error {
		m, err := normalizeMethod(method)
		if err != nil {
			return err
		}
		cfg.method = m
		return nil
	}
}
