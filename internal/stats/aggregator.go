package stats

import (
	"fmt"
	"sort"
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 16

// Aggregator folds probe outcomes into cumulative per-domain counters.
//
// Record, Snapshot and the subscription methods are safe for concurrent use.
// Callers only ever see copies of the counters.
//
// Subscribers receive [CycleSummary] values via buffered channels. Delivery is
// non-blocking; a subscriber whose buffer is full misses that summary.
type Aggregator struct {
	mu      sync.RWMutex
	domains map[string]DomainStats

	subMu       sync.RWMutex
	subscribers map[chan CycleSummary]struct{}
}

// NewAggregator creates an empty [Aggregator].
func NewAggregator() *Aggregator {
	return &Aggregator{
		domains:     make(map[string]DomainStats),
		subscribers: make(map[chan CycleSummary]struct{}),
	}
}

// Record adds one probe outcome for domain.
//
// Total always increases by one; Up increases by one iff available. A domain
// is created on its first record and is never removed.
func (a *Aggregator) Record(domain string, available bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.domains[domain]
	s.Total++
	if available {
		s.Up++
	}
	if s.Up > s.Total {
		panic(fmt.Sprintf("stats: counter invariant broken for %q: up=%d total=%d", domain, s.Up, s.Total))
	}
	a.domains[domain] = s
}

// Snapshot returns a point-in-time copy of every domain's counters.
func (a *Aggregator) Snapshot() map[string]DomainStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cp := make(map[string]DomainStats, len(a.domains))
	for domain, s := range a.domains {
		cp[domain] = s
	}
	return cp
}

// Get returns the counters for a single domain.
func (a *Aggregator) Get(domain string) (DomainStats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.domains[domain]
	return s, ok
}

// Domains returns the names of all observed domains, sorted.
func (a *Aggregator) Domains() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.domains))
	for domain := range a.domains {
		names = append(names, domain)
	}
	sort.Strings(names)
	return names
}

// Publish sends a cycle summary to all subscribers without blocking.
func (a *Aggregator) Publish(summary CycleSummary) {
	a.subMu.RLock()
	defer a.subMu.RUnlock()

	for ch := range a.subscribers {
		select {
		case ch <- summary:
		default:
			// subscriber is slow, drop the summary
		}
	}
}

// Subscribe creates a new subscription for cycle summaries.
//
// Caller must call [Aggregator.Unsubscribe] when done to prevent leaks.
func (a *Aggregator) Subscribe() <-chan CycleSummary {
	ch := make(chan CycleSummary, subscriberBuffer)

	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (a *Aggregator) Unsubscribe(ch <-chan CycleSummary) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for subCh := range a.subscribers {
		if subCh == ch {
			delete(a.subscribers, subCh)
			close(subCh)
			break
		}
	}
}
