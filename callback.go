package pulsewatch

import (
	"log/slog"

	"github.com/jpalmerr/pulsewatch/internal/poller"
	"github.com/jpalmerr/pulsewatch/internal/stats"
)

// callbackObserver forwards recorded results to user status callbacks.
// It is only called from the scheduler goroutine.
type callbackObserver struct {
	callbacks []func(StatusResult)
	labels    map[string]map[string]string
	logger    *slog.Logger
}

func newCallbackObserver(callbacks []func(StatusResult), logger *slog.Logger) *callbackObserver {
	return &callbackObserver{
		callbacks: callbacks,
		labels:    make(map[string]map[string]string),
		logger:    logger,
	}
}

func (o *callbackObserver) EndpointsChanged(active []poller.EndpointInfo) {
	labels := make(map[string]map[string]string, len(active))
	for _, ep := range active {
		labels[ep.Name] = ep.Labels
	}
	o.labels = labels
}

func (o *callbackObserver) ObserveResult(r poller.Result) {
	for _, cb := range o.callbacks {
		invokeCallbackSafe(cb, toStatusResult(r, o.labels[r.EndpointName]), o.logger)
	}
}

func (o *callbackObserver) ObserveCycle(stats.CycleSummary) {}

// toStatusResult converts internal poller result to public API type.
// Creates defensive copies of mutable fields to prevent data races.
func toStatusResult(r poller.Result, labels map[string]string) StatusResult {
	status := StatusDown
	if r.Available {
		status = StatusUp
	}
	return StatusResult{
		EndpointName: r.EndpointName,
		URL:          r.URL,
		Domain:       r.Domain,
		Status:       status,
		Labels:       copyMap(labels),
		Latency:      r.Latency,
		CheckedAt:    r.CheckedAt,
		Error:        r.Error,
		StatusCode:   r.StatusCode,
	}
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(StatusResult), result StatusResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"endpoint", result.EndpointName,
			)
		}
	}()
	cb(result)
}
