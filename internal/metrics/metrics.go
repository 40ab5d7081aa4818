// Package metrics exposes probe results and domain availability in the
// Prometheus exposition format.
//
// A [Recorder] owns a private registry so that tests and embedded monitors
// never collide on the global default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/pulsewatch/internal/poller"
	"github.com/jpalmerr/pulsewatch/internal/stats"
)

// ErrorCode is the code label used when no HTTP response was received.
const ErrorCode = "error"

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Recorder updates per-endpoint collectors from scheduler output.
//
// Recorder implements [poller.Observer].
type Recorder struct {
	registry *prometheus.Registry

	status    *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	codes     *prometheus.CounterVec
	cycles    prometheus.Counter
	endpoints prometheus.Gauge

	mu     sync.Mutex
	active map[string]string // endpoint name -> domain
}

var _ poller.Observer = (*Recorder)(nil)

// New creates a [Recorder] whose domain collectors read from aggregator at
// scrape time.
func New(aggregator *stats.Aggregator) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "endpoint_status",
			Help: "Whether the last probe of an endpoint was available (1) or not (0).",
		}, []string{"endpoint", "domain"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "endpoint_response_time_seconds",
			Help:    "Time to response headers for endpoint probes.",
			Buckets: latencyBuckets,
		}, []string{"endpoint"}),
		codes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endpoint_status_codes_total",
			Help: "Probe responses by status code, or \"error\" when no response was received.",
		}, []string{"endpoint", "code"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "cycles_total",
			Help:      "Number of completed probe cycles.",
		}),
		endpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulsewatch",
			Name:      "registry_endpoints",
			Help:      "Number of endpoints in the active registry version.",
		}),
		active: make(map[string]string),
	}

	r.registry.MustRegister(
		r.status,
		r.latency,
		r.codes,
		r.cycles,
		r.endpoints,
		newDomainCollector(aggregator),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry all collectors are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// EndpointsChanged drops the series of endpoints that are no longer
// registered.
func (r *Recorder) EndpointsChanged(active []poller.EndpointInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]string, len(active))
	for _, ep := range active {
		next[ep.Name] = ep.Domain
	}

	for name, domain := range r.active {
		newDomain, ok := next[name]
		if ok && newDomain == domain {
			continue
		}
		r.status.DeleteLabelValues(name, domain)
		if !ok {
			r.latency.DeleteLabelValues(name)
			r.codes.DeletePartialMatch(prometheus.Labels{"endpoint": name})
		}
	}

	r.active = next
	r.endpoints.Set(float64(len(active)))
}

// ObserveResult updates the per-endpoint collectors for one probe.
func (r *Recorder) ObserveResult(result poller.Result) {
	up := 0.0
	if result.Available {
		up = 1
	}
	r.status.WithLabelValues(result.EndpointName, result.Domain).Set(up)

	code := ErrorCode
	if result.HasStatus() {
		code = strconv.Itoa(result.StatusCode)
		r.latency.WithLabelValues(result.EndpointName).Observe(result.Latency.Seconds())
	}
	r.codes.WithLabelValues(result.EndpointName, code).Inc()
}

// ObserveCycle counts a completed cycle.
func (r *Recorder) ObserveCycle(stats.CycleSummary) {
	r.cycles.Inc()
}

// domainCollector reports the aggregator's cumulative counters. Values are
// read on every scrape, so they can never drift from the aggregator.
type domainCollector struct {
	aggregator *stats.Aggregator

	percent *prometheus.Desc
	total   *prometheus.Desc
	up      *prometheus.Desc
}

func newDomainCollector(aggregator *stats.Aggregator) *domainCollector {
	return &domainCollector{
		aggregator: aggregator,
		percent: prometheus.NewDesc(
			"domain_availability_percent",
			"Cumulative availability percentage of a domain, rounded half up.",
			[]string{"domain"}, nil,
		),
		total: prometheus.NewDesc(
			"domain_probes_total",
			"Probes recorded for a domain.",
			[]string{"domain"}, nil,
		),
		up: prometheus.NewDesc(
			"domain_probes_up_total",
			"Probes recorded as available for a domain.",
			[]string{"domain"}, nil,
		),
	}
}

func (c *domainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.percent
	ch <- c.total
	ch <- c.up
}

func (c *domainCollector) Collect(ch chan<- prometheus.Metric) {
	for domain, s := range c.aggregator.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(s.Total), domain)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.CounterValue, float64(s.Up), domain)
		if pct, ok := s.Percent(); ok {
			ch <- prometheus.MustNewConstMetric(c.percent, prometheus.GaugeValue, float64(pct), domain)
		}
	}
}
