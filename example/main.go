// Example of pulsewatch used as a library.
//
// It starts a local mock server whose services flap between healthy, slow
// and failing, then monitors them alongside a statically defined endpoint.
//
//	go run ./example
//
// Metrics: http://localhost:8000/metrics
// Availability: http://localhost:8000/api/availability
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pulsewatch"
)

func main() {
	go StartMockServer(":9999")

	endpoints, err := pulsewatch.NewEndpointGrid("mock",
		pulsewatch.WithURLTemplate("http://localhost:9999/health?svc={{.svc}}"),
		pulsewatch.WithDimensions(map[string][]string{
			"svc": {"api", "auth", "billing"},
		}),
		pulsewatch.WithGridLabels("source", "mock"),
		pulsewatch.WithGridTimeout(2*time.Second),
	)
	if err != nil {
		slog.Error("failed to create endpoint grid", "error", err)
		os.Exit(1)
	}

	post, err := pulsewatch.NewEndpoint("mock post", "http://127.0.0.1:9999/health?svc=ingest",
		pulsewatch.WithMethod("POST"),
		pulsewatch.WithHeaders("content-type", "application/json"),
		pulsewatch.WithBody(`{"ping":true}`),
	)
	if err != nil {
		slog.Error("failed to create endpoint", "error", err)
		os.Exit(1)
	}

	m, err := pulsewatch.New(
		pulsewatch.WithEndpoints(endpoints...),
		pulsewatch.WithEndpoint(post),
		pulsewatch.WithPollingInterval(5*time.Second),
		pulsewatch.WithStatusCallback(func(r pulsewatch.StatusResult) {
			if r.Status == pulsewatch.StatusDown {
				slog.Warn("endpoint down",
					"endpoint", r.EndpointName,
					"status_code", r.StatusCode,
					"latency", r.Latency.String(),
				)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}

	for _, d := range m.Availability() {
		slog.Info("final availability", "domain", d.Domain, "availability_pct", d.Percent)
	}
}
