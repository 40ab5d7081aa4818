package stats

import (
	"sort"
	"time"
)

// DomainStats is the cumulative probe count for one domain.
//
// Up never exceeds Total and neither value ever decreases.
type DomainStats struct {
	// Up is the number of probes classified as available.
	Up uint64 `json:"up"`

	// Total is the number of probes recorded.
	Total uint64 `json:"total"`
}

// Percent returns the availability percentage rounded half up, and false
// when nothing has been recorded yet.
func (d DomainStats) Percent() (int, bool) {
	if d.Total == 0 {
		return 0, false
	}
	// round(100*up/total) without floating point: floor((200*up + total) / (2*total))
	return int((200*d.Up + d.Total) / (2 * d.Total)), true
}

// DomainReport is a [DomainStats] value labelled with its domain and
// percentage, ready for logging or JSON encoding.
type DomainReport struct {
	Domain          string `json:"domain"`
	Up              uint64 `json:"up"`
	Total           uint64 `json:"total"`
	AvailabilityPct int    `json:"availability_pct"`
}

// Report converts a snapshot into reports sorted by domain name.
// Domains with no recorded probes are skipped.
func Report(snapshot map[string]DomainStats) []DomainReport {
	reports := make([]DomainReport, 0, len(snapshot))
	for domain, s := range snapshot {
		pct, ok := s.Percent()
		if !ok {
			continue
		}
		reports = append(reports, DomainReport{
			Domain:          domain,
			Up:              s.Up,
			Total:           s.Total,
			AvailabilityPct: pct,
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Domain < reports[j].Domain
	})
	return reports
}

// CycleSummary describes one completed probe cycle.
type CycleSummary struct {
	// ID identifies the cycle in logs.
	ID string `json:"id"`

	// RegistryVersion is the endpoint registry version the cycle probed.
	RegistryVersion uint64 `json:"registry_version"`

	// StartedAt is when the cycle took its registry snapshot.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time from snapshot to the last recorded result.
	Duration time.Duration `json:"duration"`

	// Endpoints is the number of endpoints launched.
	Endpoints int `json:"endpoints"`

	// Recorded is the number of results folded into the counters.
	// Lower than Endpoints only when the cycle was cancelled.
	Recorded int `json:"recorded"`

	// Domains is the cumulative availability after this cycle.
	Domains []DomainReport `json:"domains"`
}
