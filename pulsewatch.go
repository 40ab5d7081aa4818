package pulsewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/pulsewatch/internal/metrics"
	"github.com/jpalmerr/pulsewatch/internal/poller"
	"github.com/jpalmerr/pulsewatch/internal/registry"
	"github.com/jpalmerr/pulsewatch/internal/server"
	"github.com/jpalmerr/pulsewatch/internal/stats"
	"github.com/jpalmerr/pulsewatch/internal/store"
	"github.com/jpalmerr/pulsewatch/internal/watcher"
)

const (
	defaultPollingInterval = 15 * time.Second
	defaultWatchInterval   = 5 * time.Second
	defaultPort            = 8000
)

// Monitor probes endpoints on a fixed interval and aggregates availability
// per domain.
//
// A Monitor is created using [New] with functional options and started with
// [Monitor.Start]. Domain counters live in the Monitor and accumulate across
// every cycle and configuration reload for the life of the value.
//
// The typical lifecycle is:
//
//	m, err := pulsewatch.New(pulsewatch.WithEndpoint(ep))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
type Monitor struct {
	endpoints       []Endpoint
	configPath      string
	loader          EndpointLoader
	pollingInterval time.Duration
	watchInterval   time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	statusCallbacks []func(StatusResult)

	registry   *registry.Registry[poller.EndpointInfo]
	aggregator *stats.Aggregator
	running    atomic.Bool
}

// New creates a new [Monitor] instance with the given options.
//
// Exactly one endpoint source must be configured: a fixed list via
// [WithEndpoint] / [WithEndpoints], or a file or directory via
// [WithConfigSource]. Other options have defaults:
//   - Polling interval: 15 seconds
//   - Watch interval: 5 seconds
//   - Port: 8000
//   - Max concurrency: unbounded
//
// Returns an error if no endpoint source is configured, both are configured,
// endpoint names are not unique, or any option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		pollingInterval: defaultPollingInterval,
		watchInterval:   defaultWatchInterval,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	hasStatic := len(cfg.endpoints) > 0
	hasSource := cfg.configPath != ""
	switch {
	case hasStatic && hasSource:
		return nil, errors.New("static endpoints and a config source cannot be combined")
	case !hasStatic && !hasSource:
		return nil, errors.New("at least one endpoint or a config source is required")
	}

	if err := checkUniqueNames(cfg.endpoints); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		endpoints:       cfg.endpoints,
		configPath:      cfg.configPath,
		loader:          cfg.loader,
		pollingInterval: cfg.pollingInterval,
		watchInterval:   cfg.watchInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		logger:          logger,
		statusCallbacks: cfg.statusCallbacks,
		registry:        registry.New[poller.EndpointInfo](),
		aggregator:      stats.NewAggregator(),
	}
	if hasStatic {
		m.registry.Load(toEndpointInfos(m.endpoints))
	}
	return m, nil
}

// Start probes endpoints and serves metrics until ctx is cancelled.
//
// Start is a blocking call. During execution:
//
//   - A config source, if any, is loaded and then watched for changes
//   - The HTTP server starts on the configured port
//   - All endpoints are probed immediately, then once per polling interval
//   - Per-domain availability is logged after every cycle
//
// A config source that fails its initial load is logged and the monitor
// starts with no endpoints; it is picked up once fixed.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or the monitor is already running.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("monitor is already running")
	}
	defer m.running.Store(false)

	m.logger.Info("pulsewatch starting",
		"interval", m.pollingInterval.String(),
		"metrics_url", fmt.Sprintf("http://localhost:%d/metrics", m.port),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	var w *watcher.Watcher[poller.EndpointInfo]
	if m.configPath != "" {
		w = watcher.New(m.configPath, m.watchInterval, m.loadEndpointInfos, m.registry, m.logger)
		if _, err := w.Check(); err != nil {
			m.logger.Warn("initial config load failed, waiting for a valid config",
				"path", m.configPath,
				"error", err.Error(),
			)
		}
	}

	recorder := metrics.New(m.aggregator)
	latest := store.NewLatest()

	httpServer := server.NewServer(m.aggregator, recorder.Handler(), m.port, m.logger).
		WithEndpoints(latest)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	observers := []poller.Observer{recorder, latest}
	if len(m.statusCallbacks) > 0 {
		observers = append(observers, newCallbackObserver(m.statusCallbacks, m.logger))
	}

	prober := poller.NewProber(poller.NewClient(), m.probeTimeoutCap())
	scheduler := poller.NewScheduler(m.registry, prober, m.aggregator,
		m.pollingInterval, m.maxConcurrency, m.logger, observers...)

	var wg sync.WaitGroup
	if w != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	scheduler.Start(ctx)

	<-ctx.Done()
	scheduler.Stop()
	wg.Wait()
	m.logger.Info("pulsewatch stopped")
	return nil
}

// Availability returns the cumulative availability of every observed domain,
// sorted by domain name.
//
// It is safe to call at any time, including while the monitor is running.
func (m *Monitor) Availability() []DomainAvailability {
	reports := stats.Report(m.aggregator.Snapshot())
	out := make([]DomainAvailability, len(reports))
	for i, r := range reports {
		out[i] = DomainAvailability{
			Domain:  r.Domain,
			Up:      r.Up,
			Total:   r.Total,
			Percent: r.AvailabilityPct,
		}
	}
	return out
}

// Endpoints returns a copy of the fixed endpoint list.
// It is nil for monitors that follow a config source.
func (m *Monitor) Endpoints() []Endpoint {
	if m.endpoints == nil {
		return nil
	}
	cp := make([]Endpoint, len(m.endpoints))
	copy(cp, m.endpoints)
	return cp
}

// Port returns the configured HTTP port for the metrics server.
func (m *Monitor) Port() int {
	return m.port
}

// PollingInterval returns the configured interval between probe cycles.
func (m *Monitor) PollingInterval() time.Duration {
	return m.pollingInterval
}

// probeTimeoutCap bounds every probe so a cycle finishes before the next tick.
func (m *Monitor) probeTimeoutCap() time.Duration {
	return poller.TimeoutBudget(m.pollingInterval)
}

// loadEndpointInfos adapts the configured loader to the watcher.
func (m *Monitor) loadEndpointInfos(path string) ([]poller.EndpointInfo, error) {
	endpoints, err := m.loader(path)
	if err != nil {
		return nil, err
	}
	if err := checkUniqueNames(endpoints); err != nil {
		return nil, err
	}
	return toEndpointInfos(endpoints), nil
}

// checkUniqueNames rejects endpoint lists that reuse a name. Names key the
// per-endpoint metric series.
func checkUniqueNames(endpoints []Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if seen[ep.name] {
			return fmt.Errorf("duplicate endpoint name: %q", ep.name)
		}
		seen[ep.name] = true
	}
	return nil
}

// toEndpointInfos converts Endpoint slice to poller.EndpointInfo slice.
func toEndpointInfos(endpoints []Endpoint) []poller.EndpointInfo {
	result := make([]poller.EndpointInfo, len(endpoints))
	for i, ep := range endpoints {
		result[i] = poller.EndpointInfo{
			Name:    ep.name,
			URL:     ep.url,
			Domain:  ep.domain,
			Method:  ep.method,
			Headers: copyMap(ep.headers),
			Body:    ep.body,
			Timeout: ep.timeout,
			Labels:  copyMap(ep.labels),
		}
	}
	return result
}
