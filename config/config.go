// Package config loads endpoint definitions from YAML files.
//
// A config source is a single .yaml/.yml file or a directory of them. Files
// in a directory are read in lexical order and their endpoints concatenated.
//
// A file is either a plain list of endpoints:
//
//	- name: fetch index page
//	  url: https://fetch.com/
//	- name: fetch some fake post endpoint
//	  url: https://fetch.com/some/post/endpoint
//	  method: POST
//	  headers:
//	    content-type: application/json
//	  body: '{"foo":"bar"}'
//
// or a mapping with endpoints and grids:
//
//	endpoints:
//	  - name: fetch careers page
//	    url: https://fetch.com/careers
//	    timeout: 5s
//
//	grids:
//	  - name: Platform
//	    url_template: "https://{{.env}}.example.com/health"
//	    dimensions:
//	      env: [prod, staging]
//
// An empty file defines no endpoints.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/pulsewatch/internal/source"
)

// minTimeout is the smallest per-endpoint timeout accepted.
const minTimeout = 100 * time.Millisecond

// validMethods lists the accepted HTTP methods, upper-case.
var validMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// Config is the combined content of every file in a config source.
//
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Endpoints defines individual endpoints.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Grids defines endpoint grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// EndpointConfig defines a single endpoint.
type EndpointConfig struct {
	// Name identifies the endpoint in logs and metrics. Must be unique.
	Name string `yaml:"name"`

	// URL is the target URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method, case-insensitive. Defaults to GET.
	Method string `yaml:"method"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Body is sent for POST, PUT and PATCH requests.
	// Supports environment variable substitution.
	Body string `yaml:"body"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Labels are metadata key-value pairs passed to status callbacks.
	Labels map[string]string `yaml:"labels"`
}

// GridConfig defines an endpoint grid that expands via cartesian product.
//
// For example, with dimensions {env: [prod, staging], svc: [api, web]},
// the grid expands to 4 endpoints: prod/api, prod/web, staging/api, staging/web.
type GridConfig struct {
	// Name is the base name for generated endpoints.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating endpoint URLs.
	// Dimension keys are available as template variables: {{.env}}, {{.svc}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Method is the HTTP method for all generated endpoints.
	Method string `yaml:"method"`

	// Headers are custom HTTP headers for all generated endpoints.
	Headers map[string]string `yaml:"headers"`

	// Body is the request body for all generated endpoints.
	Body string `yaml:"body"`

	// Timeout is the request timeout for all generated endpoints.
	Timeout Duration `yaml:"timeout"`

	// Labels are additional labels applied to all generated endpoints.
	// These are merged with auto-generated dimension labels.
	Labels map[string]string `yaml:"labels"`
}

// UnmarshalYAML accepts either a list of endpoints or a mapping with
// endpoints and grids keys.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&c.Endpoints)
	case yaml.MappingNode:
		// plain alias to avoid infinite recursion
		type plain Config
		return node.Decode((*plain)(c))
	default:
		return fmt.Errorf("line %d: config must be a list of endpoints or a mapping", node.Line)
	}
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses every YAML file of the config source at path.
//
// Endpoints and grids from all files are concatenated in file order. A
// directory without YAML files yields an empty Config.
// Returns an error naming the offending file if any file cannot be read or
// parsed.
func Load(path string) (*Config, error) {
	files, err := source.Read(path)
	if err != nil {
		return nil, err
	}

	combined := &Config{}
	for _, f := range files {
		cfg, err := Parse(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		combined.Endpoints = append(combined.Endpoints, cfg.Endpoints...)
		combined.Grids = append(combined.Grids, cfg.Grids...)
	}
	return combined, nil
}

// Parse parses the YAML content of one config file.
//
// Environment variables are expanded in URL, URLTemplate, Body and Header
// values, and methods are normalized to upper case.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]

		if strings.TrimSpace(ep.Name) == "" {
			return fmt.Errorf("endpoints[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("endpoints[%d] (%s)", i, ep.Name)

		if ep.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(ep.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		ep.URL = expanded
		if err := validateURL(ep.URL); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := expandHeaders(ep.Headers); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if ep.Body, err = expandEnvVars(ep.Body); err != nil {
			return fmt.Errorf("%s: body: %w", ctx, err)
		}

		if ep.Method, err = normalizeMethod(ep.Method); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := validateTimeout(ep.Timeout); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		// fail fast before the grid is expanded
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := expandHeaders(g.Headers); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if g.Body, err = expandEnvVars(g.Body); err != nil {
			return fmt.Errorf("%s: body: %w", ctx, err)
		}

		if g.Method, err = normalizeMethod(g.Method); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := validateTimeout(g.Timeout); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	return nil
}

// validateURL checks that raw is an absolute http or https URL with a host.
func validateURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Hostname() == "" {
		return errors.New("url must have a host")
	}
	return nil
}

// expandHeaders expands environment variables in header values in place.
func expandHeaders(headers map[string]string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		headers[k] = expanded
	}
	return nil
}

// normalizeMethod upper-cases method and defaults it to GET.
func normalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return "GET", nil
	}
	if !validMethods[m] {
		return "", fmt.Errorf("method must be one of GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS; got %q", method)
	}
	return m, nil
}

// validateTimeout accepts zero (use the default) or at least minTimeout.
func validateTimeout(d Duration) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", d.Duration())
	}
	if d.Duration() < minTimeout {
		return fmt.Errorf("timeout must be at least %s if specified, got %s", minTimeout, d.Duration())
	}
	return nil
}
