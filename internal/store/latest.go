package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jpalmerr/pulsewatch/internal/poller"
	"github.com/jpalmerr/pulsewatch/internal/stats"
)

// EndpointStatus is the last recorded probe of one endpoint.
type EndpointStatus struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Domain string `json:"domain"`

	// Status is "up" or "down".
	Status string `json:"status"`

	// StatusCode is 0 when no response was received.
	StatusCode int `json:"status_code"`

	LatencyMs int64             `json:"latency_ms"`
	CheckedAt time.Time         `json:"checked_at"`
	Labels    map[string]string `json:"labels,omitempty"`

	// Error is nil when the request completed, even if the status is down.
	Error *string `json:"error"`
}

// Latest stores the newest [EndpointStatus] per endpoint name.
//
// Writes come from the scheduler goroutine; reads may come from any
// goroutine.
type Latest struct {
	mu       sync.RWMutex
	statuses map[string]EndpointStatus
	labels   map[string]map[string]string
}

// NewLatest creates an empty [Latest].
func NewLatest() *Latest {
	return &Latest{
		statuses: make(map[string]EndpointStatus),
		labels:   make(map[string]map[string]string),
	}
}

// EndpointsChanged drops endpoints that are no longer active and refreshes
// labels for the rest.
func (l *Latest) EndpointsChanged(active []poller.EndpointInfo) {
	labels := make(map[string]map[string]string, len(active))
	for _, ep := range active {
		labels[ep.Name] = copyLabels(ep.Labels)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.labels = labels
	for name, st := range l.statuses {
		lbls, ok := labels[name]
		if !ok {
			delete(l.statuses, name)
			continue
		}
		st.Labels = lbls
		l.statuses[name] = st
	}
}

// ObserveResult replaces the stored status of the result's endpoint.
func (l *Latest) ObserveResult(r poller.Result) {
	st := EndpointStatus{
		Name:       r.EndpointName,
		URL:        r.URL,
		Domain:     r.Domain,
		Status:     "down",
		StatusCode: r.StatusCode,
		LatencyMs:  r.Latency.Milliseconds(),
		CheckedAt:  r.CheckedAt,
	}
	if r.Available {
		st.Status = "up"
	}
	if r.Error != nil {
		msg := r.Error.Error()
		st.Error = &msg
	}

	l.mu.Lock()
	st.Labels = l.labels[r.EndpointName]
	l.statuses[r.EndpointName] = st
	l.mu.Unlock()
}

// ObserveCycle is a no-op; Latest tracks endpoints, not cycles.
func (l *Latest) ObserveCycle(stats.CycleSummary) {}

// Get returns the stored status of name.
func (l *Latest) Get(name string) (EndpointStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st, ok := l.statuses[name]
	if ok {
		st.Labels = copyLabels(st.Labels)
	}
	return st, ok
}

// All returns every stored status sorted by endpoint name.
// The slice and its label maps are copies.
func (l *Latest) All() []EndpointStatus {
	l.mu.RLock()
	out := make([]EndpointStatus, 0, len(l.statuses))
	for _, st := range l.statuses {
		st.Labels = copyLabels(st.Labels)
		out = append(out, st)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func copyLabels(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
