package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pulsewatch/internal/registry"
	"github.com/jpalmerr/pulsewatch/internal/stats"
)

// DefaultInterval is the cycle interval used when none is configured.
const DefaultInterval = 15 * time.Second

// EndpointSource supplies the endpoints to probe at the start of each cycle.
type EndpointSource interface {
	Snapshot() registry.Version[EndpointInfo]
}

// Observer receives probe output after it has been folded into the
// aggregator. Observers are called from the scheduler goroutine only.
type Observer interface {
	// EndpointsChanged is called when a cycle sees a new registry version.
	EndpointsChanged(active []EndpointInfo)

	// ObserveResult is called once per recorded result.
	ObserveResult(result Result)

	// ObserveCycle is called once per completed, uncancelled cycle.
	ObserveCycle(summary stats.CycleSummary)
}

// Scheduler runs probe cycles at a fixed interval.
//
// Each cycle snapshots the registry, probes every endpoint concurrently,
// waits for all probes, then records every result in the aggregator before
// the next cycle may start. Cycles never overlap: a tick that fires while a
// cycle is running is dropped.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	source         EndpointSource
	prober         *Prober
	stats          *stats.Aggregator
	observers      []Observer
	interval       time.Duration
	maxConcurrency int
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	// cycleMu serialises cycles and guards the fields below.
	cycleMu     sync.Mutex
	seenVersion bool
	lastVersion uint64
}

// NewScheduler creates a new probe [Scheduler].
//
// Parameters:
//   - source: registry the endpoints are read from at each cycle start
//   - prober: executes individual probes
//   - aggregator: receives every recorded result
//   - interval: time between cycle starts (DefaultInterval if not positive)
//   - maxConcurrency: maximum in-flight probes per cycle; 0 means unbounded
//   - logger: logger for probe and cycle events
//   - observers: optional result/cycle observers (metrics, callbacks)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(
	source EndpointSource,
	prober *Prober,
	aggregator *stats.Aggregator,
	interval time.Duration,
	maxConcurrency int,
	logger *slog.Logger,
	observers ...Observer,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxConcurrency < 0 {
		maxConcurrency = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:         source,
		prober:         prober,
		stats:          aggregator,
		observers:      observers,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// Interval returns the time between cycle starts.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins the cycle loop in a background goroutine.
//
// Start is non-blocking. The scheduler runs one cycle immediately, then one
// per tick until [Scheduler.Stop] is called or ctx is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runAndSkipOverrun(runCtx, ticker.C)

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.runAndSkipOverrun(runCtx, ticker.C)
			}
		}
	}()
}

// Stop cancels in-flight probes and waits for the loop to exit.
//
// Results of cancelled probes are discarded. Stop is idempotent and safe to
// call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.prober != nil {
		s.prober.Close()
	}
}

// runAndSkipOverrun runs one cycle and drops any tick that fired meanwhile.
func (s *Scheduler) runAndSkipOverrun(ctx context.Context, ticks <-chan time.Time) {
	summary := s.RunCycle(ctx)

	select {
	case <-ticks:
		s.logger.Warn("cycle overran interval, skipping tick",
			"cycle_id", summary.ID,
			"duration", summary.Duration.String(),
			"interval", s.interval.String(),
		)
	default:
	}
}

// RunCycle performs one complete cycle and returns its summary.
//
// Every endpoint in the current registry version is probed concurrently.
// Results are recorded only after all probes have returned. If ctx is
// cancelled, probes still in flight are discarded and the summary is neither
// logged nor published.
//
// RunCycle may be called directly (it is serialised with the loop).
func (s *Scheduler) RunCycle(ctx context.Context) stats.CycleSummary {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	version := s.source.Snapshot()
	started := time.Now()
	cycleID := uuid.NewString()

	if !s.seenVersion || version.Number != s.lastVersion {
		s.seenVersion = true
		s.lastVersion = version.Number
		s.logger.Info("registry version applied",
			"registry_version", version.Number,
			"endpoints", version.Len(),
		)
		for _, obs := range s.observers {
			obs.EndpointsChanged(version.Items)
		}
	}

	if version.Len() == 0 {
		s.logger.Warn("no endpoints registered", "registry_version", version.Number)
	}

	results := make([]Result, len(version.Items))
	completed := make([]bool, len(version.Items))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, ep := range version.Items {
		i, ep := i, ep
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result := s.safeProbe(ctx, ep)
			if ctx.Err() != nil {
				// cancelled: no partial record
				return nil
			}
			results[i] = result
			completed[i] = true
			return nil
		})
	}
	_ = g.Wait()

	recorded := 0
	for i, result := range results {
		if !completed[i] {
			continue
		}
		s.stats.Record(result.Domain, result.Available)
		recorded++
		s.logResult(cycleID, result)
		for _, obs := range s.observers {
			obs.ObserveResult(result)
		}
	}

	summary := stats.CycleSummary{
		ID:              cycleID,
		RegistryVersion: version.Number,
		StartedAt:       started,
		Duration:        time.Since(started),
		Endpoints:       version.Len(),
		Recorded:        recorded,
		Domains:         stats.Report(s.stats.Snapshot()),
	}

	if ctx.Err() != nil {
		s.logger.Info("cycle cancelled",
			"cycle_id", cycleID,
			"endpoints", summary.Endpoints,
			"recorded", recorded,
		)
		return summary
	}

	s.logSummary(summary)
	s.stats.Publish(summary)
	for _, obs := range s.observers {
		obs.ObserveCycle(summary)
	}

	return summary
}

// safeProbe calls the prober with panic recovery.
// If the probe panics, it logs the full stack trace with a correlation ID
// and returns an unavailable result with an error containing the ID.
func (s *Scheduler) safeProbe(ctx context.Context, ep EndpointInfo) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("probe panic",
				"correlation_id", correlationID,
				"endpoint", ep.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			domain := ep.Domain
			if domain == "" {
				domain = DomainOf(ep.URL)
			}
			result = Result{
				EndpointName: ep.Name,
				URL:          ep.URL,
				Domain:       domain,
				CheckedAt:    time.Now(),
				Error:        fmt.Errorf("probe panic (correlation_id: %s)", correlationID),
			}
		}
	}()
	return s.prober.Probe(ctx, ep)
}

// logResult writes the per-probe line (DEBUG for classified responses).
func (s *Scheduler) logResult(cycleID string, r Result) {
	status := "DOWN"
	if r.Available {
		status = "UP"
	}

	attrs := []any{
		"cycle_id", cycleID,
		"endpoint", r.EndpointName,
		"url", r.URL,
		"domain", r.Domain,
		"status", status,
		"latency_ms", r.Latency.Milliseconds(),
	}
	if r.HasStatus() {
		attrs = append(attrs, "status_code", r.StatusCode)
	}

	if r.Error != nil {
		s.logger.Warn("probe failed", append(attrs, "error", r.Error.Error())...)
		return
	}
	s.logger.Debug("probe completed", attrs...)
}

// logSummary writes one INFO line per domain plus a cycle delimiter.
func (s *Scheduler) logSummary(summary stats.CycleSummary) {
	for _, d := range summary.Domains {
		s.logger.Debug("domain counters",
			"domain", d.Domain,
			"up", d.Up,
			"total", d.Total,
		)
		s.logger.Info(fmt.Sprintf("%s has %d%% availability percentage", d.Domain, d.AvailabilityPct),
			"domain", d.Domain,
			"availability_pct", d.AvailabilityPct,
			"up", d.Up,
			"total", d.Total,
		)
	}
	s.logger.Info("cycle complete",
		"cycle_id", summary.ID,
		"registry_version", summary.RegistryVersion,
		"endpoints", summary.Endpoints,
		"recorded", summary.Recorded,
		"duration", summary.Duration.String(),
	)
}
