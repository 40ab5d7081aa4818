package pulsewatch

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

// EndpointLoader parses the configuration source at path into endpoints.
//
// config.LoadEndpoints is the loader used by the pulsewatch binary.
type EndpointLoader func(path string) ([]Endpoint, error)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	endpoints       []Endpoint
	configPath      string
	loader          EndpointLoader
	pollingInterval time.Duration
	watchInterval   time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	statusCallbacks []func(StatusResult)
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithEndpoint adds a single [Endpoint] to the fixed endpoint list.
//
// Can be called multiple times to add multiple endpoints.
// Cannot be combined with [WithConfigSource].
//
// Example:
//
//	m, err := pulsewatch.New(
//	    pulsewatch.WithEndpoint(ep1),
//	    pulsewatch.WithEndpoint(ep2),
//	)
func WithEndpoint(e Endpoint) Option {
	return func(cfg *monitorConfig) error {
		cfg.endpoints = append(cfg.endpoints, e)
		return nil
	}
}

// WithEndpoints adds multiple [Endpoint] values to the fixed endpoint list.
//
// Equivalent to calling [WithEndpoint] multiple times.
func WithEndpoints(endpoints ...Endpoint) Option {
	return func(cfg *monitorConfig) error {
		cfg.endpoints = append(cfg.endpoints, endpoints...)
		return nil
	}
}

// WithConfigSource makes the monitor follow a configuration file or directory.
//
// The source is loaded once when the monitor starts and then checked every
// watch interval (see [WithWatchInterval]). When its contents change, loader
// is called and, on success, the new endpoint list replaces the old one
// between cycles. A source that fails to load is logged and the previous
// endpoint list stays active.
//
// Cannot be combined with [WithEndpoint] or [WithEndpoints].
//
// Returns an error if path is empty or loader is nil.
func WithConfigSource(path string, loader EndpointLoader) Option {
	return func(cfg *monitorConfig) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("config source path cannot be empty")
		}
		if loader == nil {
			return errors.New("config source loader cannot be nil")
		}
		cfg.configPath = path
		cfg.loader = loader
		return nil
	}
}

// WithPollingInterval sets the time between probe cycle starts.
//
// Every endpoint is probed once per cycle. Defaults to 15 seconds if not
// specified. Per-endpoint timeouts are capped at nine tenths of it.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithWatchInterval sets how often the configuration source is checked for
// changes. It is independent of the polling interval.
// Defaults to 5 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithWatchInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("watch interval must be positive")
		}
		cfg.watchInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the metrics and API server.
//
// Metrics are available at http://localhost:<port>/metrics.
// Defaults to 8000 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency limits the number of probes in flight during a cycle.
//
// Zero, the default, probes every endpoint at once.
//
// Returns an error if the value is negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n < 0 {
			return errors.New("max concurrency cannot be negative")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function to be called for every recorded
// probe.
//
// The callback receives a [StatusResult] after the result has been counted
// in its domain's availability. Multiple callbacks may be registered; they
// execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the scheduler
// goroutine between the end of one cycle's probes and the cycle summary, so
// a slow callback delays the next cycle.
//
// Panics within callbacks are recovered and logged; they do not crash the
// scheduler.
//
// Example:
//
//	m, err := pulsewatch.New(
//	    pulsewatch.WithEndpoint(api),
//	    pulsewatch.WithStatusCallback(func(result pulsewatch.StatusResult) {
//	        if result.Status == pulsewatch.StatusDown {
//	            log.Printf("ALERT: %s is down!", result.EndpointName)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(StatusResult)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}
