// Package pulsewatch periodically probes HTTP endpoints and tracks the
// cumulative availability of every domain they belong to.
//
// A probe is UP when the endpoint answers with a 2xx status in under 500ms.
// Every probe is counted against the lowercased host of its URL (port
// stripped), and each domain's availability is the rounded percentage of UP
// probes over the life of the process.
//
// # Quick Start
//
// Create endpoints and start monitoring with graceful shutdown:
//
//	ep, _ := pulsewatch.NewEndpoint("fetch index page", "https://fetch.com/")
//	m, _ := pulsewatch.New(pulsewatch.WithEndpoint(ep))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Monitors use the functional options pattern:
//
//	m, err := pulsewatch.New(
//	    pulsewatch.WithEndpoints(ep1, ep2),
//	    pulsewatch.WithPollingInterval(15 * time.Second),
//	    pulsewatch.WithPort(8000),
//	    pulsewatch.WithMaxConcurrency(5),
//	)
//
// Instead of a fixed endpoint list, a monitor can follow a configuration
// file or directory that is re-read whenever it changes:
//
//	m, err := pulsewatch.New(
//	    pulsewatch.WithConfigSource("endpoints/", config.LoadEndpoints),
//	)
//
// A reload replaces the endpoint list between cycles. Domain counters are
// never reset by a reload.
//
// # Cycles
//
// Every polling interval the monitor snapshots the current endpoint list,
// probes every endpoint concurrently, waits for all probes, then folds the
// results into the domain counters and logs one line per domain:
//
//	fetch.com has 67% availability percentage
//
// Cycles never overlap. A tick that fires while a cycle is still running is
// skipped.
//
// # Metrics
//
// While running, the monitor serves Prometheus metrics at /metrics, the
// availability snapshot at /api/availability, the latest result of every
// endpoint at /api/endpoints, and a Server-Sent Events stream of cycle
// summaries at /api/sse.
package pulsewatch
