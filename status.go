package pulsewatch

import "time"

// Status is the classification of a single probe.
//
// Status is a string type so it serializes and logs in a human-readable form.
type Status string

const (
	// StatusUp indicates a 2xx response received in under 500ms.
	StatusUp Status = "up"

	// StatusDown indicates any other outcome: a non-2xx status, a slow
	// response, or a transport failure.
	StatusDown Status = "down"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// StatusResult holds the outcome of probing a single endpoint once.
//
// StatusResult is delivered to callbacks registered with [WithStatusCallback]
// after it has been folded into the domain counters.
type StatusResult struct {
	// EndpointName is the display name of the probed endpoint.
	EndpointName string

	// URL is the target URL that was probed.
	URL string

	// Domain is the host the result was counted against.
	Domain string

	// Status is the availability classification.
	Status Status

	// Labels contains the key-value metadata associated with the endpoint.
	Labels map[string]string

	// Latency is the time to response headers, or to the point of failure.
	Latency time.Duration

	// CheckedAt is the timestamp when the probe was performed.
	CheckedAt time.Time

	// Error is set when no response was received (timeout, DNS failure,
	// connection refused, TLS error). A nil Error with [StatusDown] means the
	// response was received but was non-2xx or too slow.
	Error error

	// StatusCode is the HTTP status code returned by the endpoint.
	// Zero if the request failed before receiving a response.
	StatusCode int
}

// DomainAvailability is the cumulative availability of one domain since the
// monitor was created.
type DomainAvailability struct {
	// Domain is the lowercased host, without port.
	Domain string

	// Up is the number of probes classified as [StatusUp].
	Up uint64

	// Total is the number of probes recorded.
	Total uint64

	// Percent is round(100 * Up / Total), rounding halves up.
	Percent int
}
