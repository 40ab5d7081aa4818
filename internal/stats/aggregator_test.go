package stats

import (
	"sync"
	"testing"
	"time"
)

func TestNewAggregator(t *testing.T) {
	agg := NewAggregator()
	if agg == nil {
		t.Fatal("NewAggregator() = nil")
	}
	if len(agg.Snapshot()) != 0 {
		t.Errorf("Snapshot() = %v items, want 0", len(agg.Snapshot()))
	}
}

func TestAggregator_Record(t *testing.T) {
	agg := NewAggregator()

	agg.Record("fetch.com", true)
	agg.Record("fetch.com", false)
	agg.Record("fetch.com", true)
	agg.Record("www.fetchrewards.com", false)

	got, ok := agg.Get("fetch.com")
	if !ok {
		t.Fatal("Get(fetch.com) ok = false")
	}
	if got.Up != 2 || got.Total != 3 {
		t.Errorf("Get(fetch.com) = %+v, want up=2 total=3", got)
	}

	got, _ = agg.Get("www.fetchrewards.com")
	if got.Up != 0 || got.Total != 1 {
		t.Errorf("Get(www.fetchrewards.com) = %+v, want up=0 total=1", got)
	}
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	agg := NewAggregator()
	agg.Record("fetch.com", true)

	snap := agg.Snapshot()
	snap["fetch.com"] = DomainStats{Up: 100, Total: 100}
	delete(snap, "fetch.com")

	got, _ := agg.Get("fetch.com")
	if got.Total != 1 {
		t.Errorf("Get(fetch.com).Total = %d, want 1", got.Total)
	}
}

func TestAggregator_Domains(t *testing.T) {
	agg := NewAggregator()
	agg.Record("b.example.com", true)
	agg.Record("a.example.com", true)
	agg.Record("b.example.com", false)

	domains := agg.Domains()
	if len(domains) != 2 || domains[0] != "a.example.com" || domains[1] != "b.example.com" {
		t.Errorf("Domains() = %v, want [a.example.com b.example.com]", domains)
	}
}

// TestAggregator_ConcurrentRecordLosesNothing verifies total_count(D) == N
// exactly for N concurrent records. Run with: go test -race ./internal/stats/...
func TestAggregator_ConcurrentRecordLosesNothing(t *testing.T) {
	agg := NewAggregator()

	const goroutines = 32
	const perGoroutine = 500

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				// every third sample is down
				agg.Record("fetch.com", (id*perGoroutine+j)%3 != 0)
			}
		}(i)
	}

	// concurrent readers must never see up > total
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for domain, s := range agg.Snapshot() {
					if s.Up > s.Total {
						t.Errorf("%s: up=%d > total=%d", domain, s.Up, s.Total)
						return
					}
				}
			}
		}()
	}

	wg.Wait()

	const n = goroutines * perGoroutine
	wantUp := uint64(0)
	for k := 0; k < n; k++ {
		if k%3 != 0 {
			wantUp++
		}
	}

	got, _ := agg.Get("fetch.com")
	if got.Total != n {
		t.Errorf("Total = %d, want %d", got.Total, n)
	}
	if got.Up != wantUp {
		t.Errorf("Up = %d, want %d", got.Up, wantUp)
	}
}

func TestAggregator_Subscribe(t *testing.T) {
	agg := NewAggregator()

	ch := agg.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		agg.Publish(CycleSummary{ID: "cycle-1", Endpoints: 4})
	}()

	select {
	case summary := <-ch:
		if summary.ID != "cycle-1" {
			t.Errorf("received ID = %v, want %v", summary.ID, "cycle-1")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive summary")
	}
}

func TestAggregator_Unsubscribe(t *testing.T) {
	agg := NewAggregator()

	ch := agg.Subscribe()
	agg.Unsubscribe(ch)
	agg.Unsubscribe(ch) // second call is a no-op

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestAggregator_SlowSubscriberDoesNotBlock(t *testing.T) {
	agg := NewAggregator()

	// never read
	_ = agg.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			agg.Publish(CycleSummary{ID: "cycle"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Publish() blocked on slow subscriber")
	}
}
