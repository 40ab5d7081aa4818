package main

import (
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockMode is how a mock endpoint currently answers.
type mockMode int

const (
	modeHealthy mockMode = iota // 200, fast
	modeSlow                    // 200, over the latency budget
	modeFailing                 // 503
)

func (m mockMode) String() string {
	switch m {
	case modeHealthy:
		return "healthy"
	case modeSlow:
		return "slow"
	default:
		return "failing"
	}
}

// mockState tracks the mode and next change time for a single service.
type mockState struct {
	mode         mockMode
	nextChangeAt time.Time
}

// StartMockServer runs mock health endpoints on addr. Each service, selected
// by the svc query parameter, switches between healthy, slow and failing
// every 10-30 seconds.
func StartMockServer(addr string) {
	var (
		states = make(map[string]*mockState)
		mu     sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("svc")

		mu.Lock()
		state, ok := states[svc]
		if !ok {
			state = &mockState{nextChangeAt: nextChange()}
			states[svc] = state
		}
		if time.Now().After(state.nextChangeAt) {
			old := state.mode
			state.mode = mockMode(rand.Intn(3))
			state.nextChangeAt = nextChange()
			if old != state.mode {
				slog.Info("mock mode change", "svc", svc, "from", old.String(), "to", state.mode.String())
			}
		}
		mode := state.mode
		mu.Unlock()

		switch mode {
		case modeHealthy:
			time.Sleep(time.Duration(20+rand.Intn(100)) * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		case modeSlow:
			time.Sleep(time.Duration(600+rand.Intn(400)) * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	slog.Info("mock server started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server failed", "error", err)
	}
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(10+rand.Intn(21)) * time.Second)
}
