// Package stats accumulates per-domain availability over the life of the
// process and fans out per-cycle summaries to subscribers.
//
// The main components are:
//
//   - [Aggregator]: synchronised domain counters with a publish-subscribe channel
//   - [DomainStats]: the up/total counter pair for one domain
//   - [CycleSummary]: what one probe cycle reported, sent to subscribers
//
// Counters are keyed by domain, not by endpoint, so they survive endpoint
// renames and configuration reloads. They are never reset or deleted.
package stats
