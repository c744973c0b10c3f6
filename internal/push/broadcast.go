package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/pushcast/internal/store"
)

// defaultURL is opened when the user clicks a notification without a url.
const defaultURL = "/"

// Notification is the message an operator broadcasts.
//
// Title and Message are required. Timestamp is always stamped by the
// [Broadcaster]; any caller supplied value is overwritten.
type Notification struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	URL       string `json:"url"`
	Icon      string `json:"icon,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Validate checks that the required fields are present.
func (n Notification) Validate() error {
	var missing []string
	if n.Title == "" {
		missing = append(missing, "title")
	}
	if n.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Report summarizes a broadcast.
type Report struct {
	Success bool `json:"success"`

	// Sent is the number of successful deliveries.
	Sent int `json:"sent"`

	// Total is the size of the snapshot that was attempted, taken before any
	// dead subscription was pruned.
	Total int `json:"total"`

	// Results holds one outcome per attempted subscription, in snapshot order.
	Results []Outcome `json:"results"`
}

// Pruned returns the number of subscriptions removed during the broadcast.
func (r Report) Pruned() int {
	n := 0
	for _, o := range r.Results {
		if o.Removed {
			n++
		}
	}
	return n
}

// Source provides the subscription snapshot for a broadcast.
type Source interface {
	List() []store.Subscription
}

// Broadcaster validates notifications and fans them out via a [Dispatcher].
type Broadcaster struct {
	source     Source
	dispatcher *Dispatcher
	onOutcome  func(Outcome)
	logger     *slog.Logger
	now        func() time.Time
}

// NewBroadcaster creates a new [Broadcaster].
//
// onOutcome, if non-nil, is called once per outcome after the dispatch
// completes, from the calling goroutine.
func NewBroadcaster(source Source, dispatcher *Dispatcher, onOutcome func(Outcome), logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		source:     source,
		dispatcher: dispatcher,
		onOutcome:  onOutcome,
		logger:     logger,
		now:        time.Now,
	}
}

// Broadcast sends n to every subscription currently in the source.
//
// Invalid notifications are rejected with a [*ValidationError] before any
// side effect. Individual delivery failures are reported in the [Report]
// and never returned as an error.
func (b *Broadcaster) Broadcast(ctx context.Context, n Notification) (Report, error) {
	if err := n.Validate(); err != nil {
		return Report{}, err
	}

	if n.URL == "" {
		n.URL = defaultURL
	}
	n.Timestamp = b.now().UnixMilli()

	payload, err := json.Marshal(n)
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode notification: %w", err)
	}

	snapshot := b.source.List()
	outcomes := b.dispatcher.Dispatch(ctx, snapshot, payload)

	report := Report{
		Success: true,
		Total:   len(snapshot),
		Results: outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			report.Sent++
		}
		if b.onOutcome != nil {
			b.onOutcome(o)
		}
	}

	b.logger.Info("broadcast completed",
		"title", n.Title,
		"sent", report.Sent,
		"total", report.Total,
		"pruned", report.Pruned(),
	)

	return report, nil
}
