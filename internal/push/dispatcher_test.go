package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/pushcast/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedDeliverer answers each endpoint with a preconfigured error.
type scriptedDeliverer struct {
	mu       sync.Mutex
	errs     map[string]error
	panics   map[string]bool
	delay    time.Duration
	calls    []string
	payloads [][]byte
}

func newScriptedDeliverer() *scriptedDeliverer {
	return &scriptedDeliverer{
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (s *scriptedDeliverer) Deliver(ctx context.Context, sub store.Subscription, payload []byte) error {
	s.mu.Lock()
	s.calls = append(s.calls, sub.Endpoint)
	s.payloads = append(s.payloads, payload)
	err := s.errs[sub.Endpoint]
	shouldPanic := s.panics[sub.Endpoint]
	delay := s.delay
	s.mu.Unlock()

	if shouldPanic {
		panic("deliverer exploded")
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *scriptedDeliverer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func seededStore(endpoints ...string) *store.MemoryStore {
	st := store.NewMemoryStore()
	for _, ep := range endpoints {
		st.Add(store.Subscription{Endpoint: ep})
	}
	return st
}

func TestDispatch_Empty(t *testing.T) {
	d := NewDispatcher(newScriptedDeliverer(), nil, 4, time.Second, testLogger())

	outcomes := d.Dispatch(context.Background(), nil, []byte("x"))
	if outcomes == nil {
		t.Fatal("Dispatch() = nil, want empty non-nil slice")
	}
	if len(outcomes) != 0 {
		t.Errorf("Dispatch() = %d outcomes, want 0", len(outcomes))
	}
}

func TestDispatch_AllSucceed(t *testing.T) {
	st := seededStore("a", "b", "c")
	deliverer := newScriptedDeliverer()
	d := NewDispatcher(deliverer, st, 2, time.Second, testLogger())

	outcomes := d.Dispatch(context.Background(), st.List(), []byte(`{"title":"t"}`))

	if len(outcomes) != 3 {
		t.Fatalf("Dispatch() = %d outcomes, want 3", len(outcomes))
	}
	for i, want := range []string{"a", "b", "c"} {
		if outcomes[i].Endpoint != want {
			t.Errorf("outcomes[%d].Endpoint = %s, want %s", i, outcomes[i].Endpoint, want)
		}
		if !outcomes[i].Success {
			t.Errorf("outcomes[%d].Success = false, want true", i)
		}
		if outcomes[i].Error != "" || outcomes[i].StatusCode != 0 {
			t.Errorf("outcomes[%d] has failure detail on success: %+v", i, outcomes[i])
		}
	}
	for _, p := range deliverer.payloads {
		if string(p) != `{"title":"t"}` {
			t.Errorf("payload = %s, want the serialized payload untouched", p)
		}
	}
}

func TestDispatch_GoneEndpointIsPruned(t *testing.T) {
	st := seededStore("A", "B", "C")
	deliverer := newScriptedDeliverer()
	deliverer.errs["B"] = &DeliveryError{StatusCode: 410, Body: "expired"}
	d := NewDispatcher(deliverer, st, 3, time.Second, testLogger())

	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if outcomes[1].Success {
		t.Error("outcomes[1].Success = true, want false")
	}
	if outcomes[1].StatusCode != 410 {
		t.Errorf("outcomes[1].StatusCode = %d, want 410", outcomes[1].StatusCode)
	}
	if !outcomes[1].Removed {
		t.Error("outcomes[1].Removed = false, want true")
	}
	if !outcomes[0].Success || !outcomes[2].Success {
		t.Error("A and C should succeed regardless of B")
	}

	got := st.List()
	if len(got) != 2 || got[0].Endpoint != "A" || got[1].Endpoint != "C" {
		t.Errorf("store after dispatch = %v, want [A C]", got)
	}
}

func TestDispatch_NotFoundIsPruned(t *testing.T) {
	st := seededStore("A")
	deliverer := newScriptedDeliverer()
	deliverer.errs["A"] = &DeliveryError{StatusCode: 404}
	d := NewDispatcher(deliverer, st, 1, time.Second, testLogger())

	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if !outcomes[0].Removed || st.Size() != 0 {
		t.Errorf("404 should prune: removed=%v size=%d", outcomes[0].Removed, st.Size())
	}
}

func TestDispatch_TransientFailureIsRetained(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"timeout", context.DeadlineExceeded, 0},
		{"server error", &DeliveryError{StatusCode: 503}, 503},
		{"rate limited", &DeliveryError{StatusCode: 429}, 429},
		{"payload too large", &DeliveryError{StatusCode: 413}, 413},
		{"network", errors.New("connection reset"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededStore("D")
			deliverer := newScriptedDeliverer()
			deliverer.errs["D"] = tt.err
			d := NewDispatcher(deliverer, st, 1, time.Second, testLogger())

			outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

			if outcomes[0].Success {
				t.Error("Success = true, want false")
			}
			if outcomes[0].Removed {
				t.Error("Removed = true, transient failures must not prune")
			}
			if outcomes[0].StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", outcomes[0].StatusCode, tt.wantStatus)
			}
			if outcomes[0].Error == "" || outcomes[0].Err == nil {
				t.Error("failure detail should be populated")
			}
			if st.Size() != 1 {
				t.Errorf("store size = %d, want 1", st.Size())
			}
		})
	}
}

func TestDispatch_PerDeliveryTimeout(t *testing.T) {
	st := seededStore("slow")
	deliverer := newScriptedDeliverer()
	deliverer.delay = 5 * time.Second
	d := NewDispatcher(deliverer, st, 1, 50*time.Millisecond, testLogger())

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if time.Since(start) > 2*time.Second {
		t.Fatal("Dispatch() did not apply the per-delivery timeout")
	}
	if outcomes[0].Success {
		t.Error("Success = true, want timeout failure")
	}
	if !errors.Is(outcomes[0].Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded", outcomes[0].Err)
	}
	if st.Size() != 1 {
		t.Error("timed out subscription should be kept")
	}
}

func TestDispatch_PanicIsIsolated(t *testing.T) {
	st := seededStore("a", "boom", "c")
	deliverer := newScriptedDeliverer()
	deliverer.panics["boom"] = true
	d := NewDispatcher(deliverer, st, 3, time.Second, testLogger())

	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if outcomes[1].Success {
		t.Error("panicking delivery should fail")
	}
	if outcomes[1].Removed {
		t.Error("panicking delivery should not prune")
	}
	if !outcomes[0].Success || !outcomes[2].Success {
		t.Error("siblings of a panicking delivery should still succeed")
	}
	if outcomes[1].Error == "" {
		t.Error("panic outcome should carry a correlation error")
	}
}

func TestDispatch_IsConcurrent(t *testing.T) {
	const n = 8
	endpoints := make([]string, n)
	for i := range endpoints {
		endpoints[i] = string(rune('a' + i))
	}
	st := seededStore(endpoints...)

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	deliverer := DelivererFunc(func(ctx context.Context, sub store.Subscription, payload []byte) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return nil
	})

	d := NewDispatcher(deliverer, st, n, time.Second, testLogger())

	done := make(chan []Outcome, 1)
	go func() {
		done <- d.Dispatch(context.Background(), st.List(), []byte("x"))
	}()

	// all deliveries should be in flight at once
	deadline := time.After(2 * time.Second)
	for inFlight.Load() < n {
		select {
		case <-deadline:
			t.Fatalf("only %d/%d deliveries in flight", inFlight.Load(), n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)

	outcomes := <-done
	if len(outcomes) != n {
		t.Errorf("Dispatch() = %d outcomes, want %d", len(outcomes), n)
	}
	if peak.Load() != n {
		t.Errorf("peak concurrency = %d, want %d", peak.Load(), n)
	}
}

func TestDispatch_RespectsMaxConcurrency(t *testing.T) {
	st := seededStore("a", "b", "c", "d", "e", "f")

	var inFlight, peak atomic.Int32
	deliverer := DelivererFunc(func(ctx context.Context, sub store.Subscription, payload []byte) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	d := NewDispatcher(deliverer, st, 2, time.Second, testLogger())
	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if len(outcomes) != 6 {
		t.Fatalf("Dispatch() = %d outcomes, want 6", len(outcomes))
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestDispatch_WaitsForAllAttempts(t *testing.T) {
	st := seededStore("fast", "slow")
	var finished atomic.Int32
	deliverer := DelivererFunc(func(ctx context.Context, sub store.Subscription, payload []byte) error {
		if sub.Endpoint == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		finished.Add(1)
		if sub.Endpoint == "fast" {
			return errors.New("fast failure")
		}
		return nil
	})

	d := NewDispatcher(deliverer, st, 2, time.Second, testLogger())
	outcomes := d.Dispatch(context.Background(), st.List(), []byte("x"))

	if finished.Load() != 2 {
		t.Errorf("Dispatch() returned after %d/2 attempts", finished.Load())
	}
	if outcomes[0].Success || !outcomes[1].Success {
		t.Errorf("outcomes = %+v, want fast failed and slow succeeded", outcomes)
	}
}

func TestDispatch_NilRemoverKeepsGoing(t *testing.T) {
	deliverer := newScriptedDeliverer()
	deliverer.errs["a"] = &DeliveryError{StatusCode: 410}
	d := NewDispatcher(deliverer, nil, 0, 0, nil)

	outcomes := d.Dispatch(context.Background(), []store.Subscription{{Endpoint: "a"}}, []byte("x"))
	if outcomes[0].Removed {
		t.Error("Removed = true without a remover")
	}
	if deliverer.callCount() != 1 {
		t.Errorf("deliverer called %d times, want 1", deliverer.callCount())
	}
}
