package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/pulsewatch"
)

// LoadEndpoints loads the config source at path and builds its endpoints.
//
// It has the signature of [pulsewatch.EndpointLoader] and is the loader used
// for watched config sources.
func LoadEndpoints(path string) ([]pulsewatch.Endpoint, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return BuildEndpoints(cfg)
}

// BuildEndpoints converts parsed configuration into SDK Endpoint objects.
//
// It processes both direct endpoints and grids, returning a combined slice.
// Grid dimensions are expanded via cartesian product. Endpoint names must be
// unique across the result.
func BuildEndpoints(cfg *Config) ([]pulsewatch.Endpoint, error) {
	endpoints := []pulsewatch.Endpoint{}

	for _, ec := range cfg.Endpoints {
		ep, err := buildEndpoint(ec)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ec.Name, err)
		}
		endpoints = append(endpoints, ep)
	}

	for _, gc := range cfg.Grids {
		gridEndpoints, err := buildGridEndpoints(gc)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", gc.Name, err)
		}
		endpoints = append(endpoints, gridEndpoints...)
	}

	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if seen[ep.Name()] {
			return nil, fmt.Errorf("duplicate endpoint name: %q", ep.Name())
		}
		seen[ep.Name()] = true
	}

	return endpoints, nil
}

// buildEndpoint converts a single EndpointConfig to an SDK Endpoint.
func buildEndpoint(ec EndpointConfig) (pulsewatch.Endpoint, error) {
	opts := []pulsewatch.EndpointOption{
		pulsewatch.WithMethod(ec.Method),
	}

	if ec.Timeout != 0 {
		opts = append(opts, pulsewatch.WithTimeout(ec.Timeout.Duration()))
	}

	if len(ec.Headers) > 0 {
		opts = append(opts, pulsewatch.WithHeaders(mapToKeyValuePairs(ec.Headers)...))
	}

	if ec.Body != "" {
		opts = append(opts, pulsewatch.WithBody(ec.Body))
	}

	if len(ec.Labels) > 0 {
		opts = append(opts, pulsewatch.WithLabels(mapToKeyValuePairs(ec.Labels)...))
	}

	return pulsewatch.NewEndpoint(ec.Name, ec.URL, opts...)
}

// buildGridEndpoints expands a GridConfig via [pulsewatch.NewEndpointGrid].
func buildGridEndpoints(gc GridConfig) ([]pulsewatch.Endpoint, error) {
	opts := []pulsewatch.GridOption{
		pulsewatch.WithURLTemplate(gc.URLTemplate),
		pulsewatch.WithDimensions(gc.Dimensions),
		pulsewatch.WithGridMethod(gc.Method),
	}

	if gc.Timeout != 0 {
		opts = append(opts, pulsewatch.WithGridTimeout(gc.Timeout.Duration()))
	}

	if len(gc.Headers) > 0 {
		opts = append(opts, pulsewatch.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}

	if gc.Body != "" {
		opts = append(opts, pulsewatch.WithGridBody(gc.Body))
	}

	if len(gc.Labels) > 0 {
		opts = append(opts, pulsewatch.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}

	return pulsewatch.NewEndpointGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// Domains returns the distinct domains of endpoints, sorted.
func Domains(endpoints []pulsewatch.Endpoint) []string {
	set := make(map[string]struct{})
	for _, ep := range endpoints {
		set[ep.Domain()] = struct{}{}
	}
	domains := make([]string, 0, len(set))
	for d := range set {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
