package pulsewatch

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
)

// DomainLabel is the label key under which every grid endpoint carries the
// domain its probes are counted against.
const DomainLabel = "domain"

// NewEndpointGrid creates one endpoint per combination of dimension values.
//
// The URL template uses text/template syntax with one variable per dimension.
// Values are query-escaped before rendering and a missing key is an error.
// Every rendered URL must be an absolute http or https URL with a host; the
// grid is rejected as a whole otherwise, naming the offending combination.
//
// Generated endpoints are named "Base (v1/v2)", values ordered by dimension
// key. Their labels are, from lowest to highest precedence: [DomainLabel]
// set to the derived domain, the raw dimension values, and the static labels
// from [WithGridLabels].
//
// Example:
//
//	endpoints, err := pulsewatch.NewEndpointGrid("fetch careers",
//	    pulsewatch.WithURLTemplate("https://{{.region}}.fetch.com/careers"),
//	    pulsewatch.WithDimensions(map[string][]string{
//	        "region": {"us-east", "eu-west"},
//	    }),
//	)
//	// 2 endpoints on domains us-east.fetch.com and eu-west.fetch.com
func NewEndpointGrid(baseName string, opts ...GridOption) ([]Endpoint, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
		headers:      make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	plan, err := newGridPlan(baseName, cfg)
	if err != nil {
		return nil, err
	}
	return plan.expand()
}

// gridPlan is a validated grid ready for expansion.
type gridPlan struct {
	baseName string
	tmpl     *template.Template
	keys     []string
	dims     map[string][]string
	labels   map[string]string
	shared   []EndpointOption
}

func newGridPlan(baseName string, cfg *gridConfig) (*gridPlan, error) {
	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	tmpl, err := template.New(baseName).Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	var shared []EndpointOption
	if len(cfg.headers) > 0 {
		shared = append(shared, WithHeaders(sortedPairs(cfg.headers)...))
	}
	if cfg.timeout > 0 {
		shared = append(shared, WithTimeout(cfg.timeout))
	}
	if cfg.method != "" {
		shared = append(shared, WithMethod(cfg.method))
	}
	if cfg.body != "" {
		shared = append(shared, WithBody(cfg.body))
	}

	return &gridPlan{
		baseName: baseName,
		tmpl:     tmpl,
		keys:     sortedKeys(cfg.dimensions),
		dims:     cfg.dimensions,
		labels:   cfg.staticLabels,
		shared:   shared,
	}, nil
}

// cells returns every combination of dimension values. Keys are taken in
// sorted order and the last key varies fastest. A dimension without values
// yields no cells.
func (p *gridPlan) cells() []map[string]string {
	if len(p.keys) == 0 {
		return nil
	}

	cells := []map[string]string{{}}
	for _, k := range p.keys {
		values := p.dims[k]
		if len(values) == 0 {
			return nil
		}
		next := make([]map[string]string, 0, len(cells)*len(values))
		for _, c := range cells {
			for _, v := range values {
				cell := make(map[string]string, len(c)+1)
				for ck, cv := range c {
					cell[ck] = cv
				}
				cell[k] = v
				next = append(next, cell)
			}
		}
		cells = next
	}
	return cells
}

func (p *gridPlan) expand() ([]Endpoint, error) {
	cells := p.cells()
	endpoints := make([]Endpoint, 0, len(cells))
	for _, cell := range cells {
		ep, err := p.endpoint(cell)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// endpoint builds the endpoint for one cell.
func (p *gridPlan) endpoint(cell map[string]string) (Endpoint, error) {
	name := p.name(cell)

	rawURL, err := p.render(cell)
	if err != nil {
		return Endpoint{}, fmt.Errorf("grid endpoint '%s': template execution failed: %w", name, err)
	}

	domain, err := targetDomain(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("grid endpoint '%s': rendered URL %q: %w", name, rawURL, err)
	}

	labels := map[string]string{DomainLabel: domain}
	for k, v := range cell {
		labels[k] = v
	}
	for k, v := range p.labels {
		labels[k] = v
	}

	opts := make([]EndpointOption, 0, len(p.shared)+1)
	opts = append(opts, WithLabels(sortedPairs(labels)...))
	opts = append(opts, p.shared...)

	ep, err := NewEndpoint(name, rawURL, opts...)
	if err != nil {
		return Endpoint{}, fmt.Errorf("grid endpoint '%s': %w", name, err)
	}
	return ep, nil
}

// render executes the URL template with query-escaped cell values.
func (p *gridPlan) render(cell map[string]string) (string, error) {
	escaped := make(map[string]string, len(cell))
	for k, v := range cell {
		escaped[k] = url.QueryEscape(v)
	}

	var buf strings.Builder
	if err := p.tmpl.Execute(&buf, escaped); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// name formats "Base (v1/v2)" with raw values in key order.
func (p *gridPlan) name(cell map[string]string) string {
	values := make([]string, len(p.keys))
	for i, k := range p.keys {
		values[i] = cell[k]
	}
	return fmt.Sprintf("%s (%s)", p.baseName, strings.Join(values, "/"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedPairs flattens m into key-value pairs ordered by key.
func sortedPairs(m map[string]string) []string {
	pairs := make([]string, 0, len(m)*2)
	for _, k := range sortedKeys(m) {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
