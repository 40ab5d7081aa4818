// Package server provides the HTTP surface of a running monitor.
//
// Routes:
//
//   - GET /metrics: Prometheus exposition of probe and availability metrics
//   - GET /healthz: liveness check
//   - GET /api/availability: JSON snapshot of per-domain availability
//   - GET /api/endpoints: latest result of every active endpoint
//   - GET /api/sse: Server-Sent Events stream of cycle summaries
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the pulsewatch library should not need to interact with this
// package directly. The server is started automatically by [pulsewatch.Monitor.Start].
package server
