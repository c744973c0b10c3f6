package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jpalmerr/pushcast/internal/store"
)

func newTestBroadcaster(st *store.MemoryStore, deliverer Deliverer, onOutcome func(Outcome)) *Broadcaster {
	d := NewDispatcher(deliverer, st, 4, time.Second, testLogger())
	b := NewBroadcaster(st, d, onOutcome, testLogger())
	b.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return b
}

func TestBroadcast_ValidationRejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{"missing title", Notification{Message: "body"}, "title is required"},
		{"missing message", Notification{Title: "hello"}, "message is required"},
		{"missing both", Notification{URL: "/x"}, "title and message are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := seededStore("a", "gone")
			deliverer := newScriptedDeliverer()
			deliverer.errs["gone"] = &DeliveryError{StatusCode: 410}
			b := newTestBroadcaster(st, deliverer, nil)

			report, err := b.Broadcast(context.Background(), tt.n)
			if err == nil {
				t.Fatal("Broadcast() error = nil, want validation error")
			}
			if !errors.Is(err, ErrInvalidNotification) {
				t.Errorf("Broadcast() error = %v, want ErrInvalidNotification", err)
			}
			if err.Error() != tt.want {
				t.Errorf("Broadcast() error = %q, want %q", err.Error(), tt.want)
			}
			if len(report.Results) != 0 || report.Total != 0 {
				t.Errorf("rejected broadcast produced outcomes: %+v", report)
			}
			if deliverer.callCount() != 0 {
				t.Errorf("deliverer called %d times, want 0", deliverer.callCount())
			}
			if st.Size() != 2 {
				t.Errorf("store size = %d, want 2", st.Size())
			}
		})
	}
}

func TestBroadcast_EmptyStore(t *testing.T) {
	b := newTestBroadcaster(store.NewMemoryStore(), newScriptedDeliverer(), nil)

	report, err := b.Broadcast(context.Background(), Notification{Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if report.Sent != 0 || report.Total != 0 {
		t.Errorf("report = sent %d total %d, want 0/0", report.Sent, report.Total)
	}
	if report.Results == nil || len(report.Results) != 0 {
		t.Errorf("Results = %v, want empty non-nil slice", report.Results)
	}
	if !report.Success {
		t.Error("Success = false, want true")
	}

	data, _ := json.Marshal(report)
	if string(data) != `{"success":true,"sent":0,"total":0,"results":[]}` {
		t.Errorf("JSON = %s", data)
	}
}

func TestBroadcast_PartialFailure(t *testing.T) {
	st := seededStore("A", "B", "C", "D")
	deliverer := newScriptedDeliverer()
	deliverer.errs["B"] = &DeliveryError{StatusCode: 410}
	deliverer.errs["D"] = context.DeadlineExceeded

	var seen []Outcome
	b := newTestBroadcaster(st, deliverer, func(o Outcome) { seen = append(seen, o) })

	report, err := b.Broadcast(context.Background(), Notification{Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v, partial failure must not be an error", err)
	}

	if report.Sent != 2 {
		t.Errorf("Sent = %d, want 2", report.Sent)
	}
	// total reflects the attempt, not the post-cleanup store size
	if report.Total != 4 {
		t.Errorf("Total = %d, want 4", report.Total)
	}
	if report.Pruned() != 1 {
		t.Errorf("Pruned() = %d, want 1", report.Pruned())
	}

	remaining := st.List()
	if len(remaining) != 3 || remaining[0].Endpoint != "A" || remaining[1].Endpoint != "C" || remaining[2].Endpoint != "D" {
		t.Errorf("store after broadcast = %v, want [A C D]", remaining)
	}

	if report.Results[3].Success || report.Results[3].Removed {
		t.Errorf("transient outcome = %+v, want failed and retained", report.Results[3])
	}

	if len(seen) != 4 {
		t.Errorf("outcome callback called %d times, want 4", len(seen))
	}
}

func TestBroadcast_ThreeSubscribersOneGone(t *testing.T) {
	st := seededStore("A", "B", "C")
	deliverer := newScriptedDeliverer()
	deliverer.errs["B"] = &DeliveryError{StatusCode: 410}
	b := newTestBroadcaster(st, deliverer, nil)

	report, err := b.Broadcast(context.Background(), Notification{Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if report.Sent != 2 || report.Total != 3 {
		t.Errorf("report = sent %d total %d, want 2/3", report.Sent, report.Total)
	}

	remaining := st.List()
	if len(remaining) != 2 || remaining[0].Endpoint != "A" || remaining[1].Endpoint != "C" {
		t.Errorf("List() = %v, want [A C]", remaining)
	}
}

func TestBroadcast_PayloadShape(t *testing.T) {
	st := seededStore("A")
	deliverer := newScriptedDeliverer()
	b := newTestBroadcaster(st, deliverer, nil)

	_, err := b.Broadcast(context.Background(), Notification{
		Title:     "Hello",
		Message:   "World",
		Timestamp: 42, // ignored, server stamps its own
	})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	if len(deliverer.payloads) != 1 {
		t.Fatalf("payloads = %d, want 1", len(deliverer.payloads))
	}

	var got map[string]any
	if err := json.Unmarshal(deliverer.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["title"] != "Hello" || got["message"] != "World" {
		t.Errorf("payload = %v", got)
	}
	if got["url"] != "/" {
		t.Errorf("payload url = %v, want default /", got["url"])
	}
	if got["timestamp"] != float64(1700000000123) {
		t.Errorf("payload timestamp = %v, want server clock", got["timestamp"])
	}
	if _, ok := got["icon"]; ok {
		t.Error("payload should omit an empty icon")
	}
}

func TestBroadcast_PayloadKeepsURLAndIcon(t *testing.T) {
	st := seededStore("A")
	deliverer := newScriptedDeliverer()
	b := newTestBroadcaster(st, deliverer, nil)

	_, err := b.Broadcast(context.Background(), Notification{
		Title:   "Hello",
		Message: "World",
		URL:     "/news/1",
		Icon:    "/icon.png",
	})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	var got Notification
	if err := json.Unmarshal(deliverer.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.URL != "/news/1" || got.Icon != "/icon.png" {
		t.Errorf("payload = %+v, want url and icon passed through", got)
	}
}
