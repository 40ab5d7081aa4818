package pulsewatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runMonitor starts m in the background and returns a stop function that
// cancels it and waits for Start to return.
func runMonitor(t *testing.T, m *Monitor) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx)
	}()

	var once sync.Once
	var result error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Start() did not return after context cancellation")
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m, err := New(
		WithEndpoint(mustEndpoint(t, "Test", ts.URL)),
		WithPort(freePort(t)),
		WithPollingInterval(100*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	m, err := New(
		WithEndpoint(mustEndpoint(t, "Test", "http://127.0.0.1:1/")),
		WithPort(freePort(t)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() should return immediately for cancelled context")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	m, err := New(
		WithEndpoint(mustEndpoint(t, "Test", "http://127.0.0.1:1/")),
		WithPort(port),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = m.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Start() error = %v, want HTTP server failure", err)
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	m, err := New(
		WithEndpoint(mustEndpoint(t, "Test", ts.URL)),
		WithPort(freePort(t)),
		WithPollingInterval(100*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runMonitor(t, m)
	waitFor(t, 2*time.Second, m.running.Load)

	err = m.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("second Start() error = %v, want already running", err)
	}

	if err := stop(); err != nil {
		t.Errorf("Start() returned error: %v", err)
	}
	if m.running.Load() {
		t.Error("running flag still set after Start returned")
	}
}

func TestStart_AggregatesAvailabilityPerDomain(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	// both servers listen on 127.0.0.1, so they share a domain
	var results []StatusResult
	var mu sync.Mutex
	port := freePort(t)
	m, err := New(
		WithEndpoints(
			mustEndpoint(t, "up", up.URL+"/health", WithLabels("kind", "up")),
			mustEndpoint(t, "down", down.URL+"/health"),
		),
		WithPort(port),
		WithPollingInterval(50*time.Millisecond),
		WithLogger(quietLogger()),
		WithStatusCallback(func(r StatusResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runMonitor(t, m)
	waitFor(t, 3*time.Second, func() bool {
		avail := m.Availability()
		return len(avail) == 1 && avail[0].Total >= 4
	})
	if err := stop(); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}

	avail := m.Availability()
	if len(avail) != 1 {
		t.Fatalf("Availability() = %+v, want one domain", avail)
	}
	d := avail[0]
	if d.Domain != "127.0.0.1" {
		t.Errorf("Domain = %q, want 127.0.0.1", d.Domain)
	}
	if d.Up < 2 || d.Total-d.Up < 2 {
		t.Errorf("Up/Total = %d/%d, want both endpoints counted", d.Up, d.Total)
	}
	if want := int((200*d.Up + d.Total) / (2 * d.Total)); d.Percent != want {
		t.Errorf("Percent = %d, want %d", d.Percent, want)
	}

	mu.Lock()
	defer mu.Unlock()
	if uint64(len(results)) != d.Total {
		t.Errorf("callback results = %d, want %d", len(results), d.Total)
	}
	for _, r := range results {
		switch r.EndpointName {
		case "up":
			if r.Status != StatusUp || r.StatusCode != 200 || r.Labels["kind"] != "up" {
				t.Errorf("up result = %+v", r)
			}
		case "down":
			if r.Status != StatusDown || r.StatusCode != 503 {
				t.Errorf("down result = %+v", r)
			}
		default:
			t.Errorf("unexpected endpoint %q", r.EndpointName)
		}
	}
}

func TestStart_ServesAvailabilityAndMetrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	port := freePort(t)
	m, err := New(
		WithEndpoint(mustEndpoint(t, "health", ts.URL)),
		WithPort(port),
		WithPollingInterval(50*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runMonitor(t, m)
	waitFor(t, 3*time.Second, func() bool { return len(m.Availability()) == 1 })

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	resp, err := http.Get(base + "/api/availability")
	if err != nil {
		t.Fatalf("GET /api/availability error = %v", err)
	}
	defer resp.Body.Close()

	var reports []struct {
		Domain          string `json:"domain"`
		AvailabilityPct int    `json:"availability_pct"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(reports) != 1 || reports[0].Domain != "127.0.0.1" || reports[0].AvailabilityPct != 100 {
		t.Errorf("reports = %+v", reports)
	}

	endpointsResp, err := http.Get(base + "/api/endpoints")
	if err != nil {
		t.Fatalf("GET /api/endpoints error = %v", err)
	}
	defer endpointsResp.Body.Close()

	var statuses []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(endpointsResp.Body).Decode(&statuses); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(statuses) != 1 || statuses[0].Name != "health" || statuses[0].Status != "up" {
		t.Errorf("statuses = %+v", statuses)
	}

	metricsResp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer metricsResp.Body.Close()
	body, _ := io.ReadAll(metricsResp.Body)

	for _, want := range []string{
		`endpoint_status{domain="127.0.0.1",endpoint="health"} 1`,
		`domain_availability_percent{domain="127.0.0.1"} 100`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStart_FollowsConfigSource(t *testing.T) {
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer a.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")

	// the test loader reads one endpoint URL per line
	loader := func(p string) ([]Endpoint, error) {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var endpoints []Endpoint
		for i, line := range strings.Fields(string(data)) {
			ep, err := NewEndpoint(fmt.Sprintf("ep-%d", i), line)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, ep)
		}
		return endpoints, nil
	}

	if err := os.WriteFile(path, []byte(a.URL+"/one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := New(
		WithConfigSource(path, loader),
		WithPort(freePort(t)),
		WithPollingInterval(50*time.Millisecond),
		WithWatchInterval(20*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runMonitor(t, m)

	waitFor(t, 3*time.Second, func() bool { return m.registry.Snapshot().Len() == 1 })

	if err := os.WriteFile(path, []byte(a.URL+"/one\n"+a.URL+"/two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return m.registry.Snapshot().Len() == 2 })

	// an invalid edit keeps the previous list
	if err := os.WriteFile(path, []byte("not-a-url\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := m.registry.Snapshot().Len(); got != 2 {
		t.Errorf("registry length after bad edit = %d, want 2", got)
	}

	waitFor(t, 3*time.Second, func() bool {
		avail := m.Availability()
		return len(avail) == 1 && avail[0].Total > 0 && avail[0].Percent == 100
	})
}

func TestStart_InitialConfigFailureIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	m, err := New(
		WithConfigSource(path, func(string) ([]Endpoint, error) { return nil, nil }),
		WithPort(freePort(t)),
		WithPollingInterval(50*time.Millisecond),
		WithWatchInterval(20*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runMonitor(t, m)
	time.Sleep(150 * time.Millisecond)
	if err := stop(); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if got := m.Availability(); len(got) != 0 {
		t.Errorf("Availability() = %+v, want empty", got)
	}
}
