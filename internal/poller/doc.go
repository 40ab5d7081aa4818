// Package poller probes HTTP endpoints in fixed-interval cycles.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with pooled connections and per-request timeouts
//   - [Prober]: issues one request per endpoint and classifies the outcome
//   - [Scheduler]: runs cycles over the current registry version and folds
//     results into the availability aggregator
//   - [EndpointInfo] and [Result]: the probe input and output records
//
// An endpoint is available when it answers with a 2xx status in under
// [SlowThreshold]. Transport failures are recorded as unavailable samples
// without a status code; they are never retried within a cycle.
package poller
