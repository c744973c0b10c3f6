package push

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/pushcast/internal/store"
)

// Deliverer sends one serialized payload to one subscription.
//
// Implementations return nil on success, a [*DeliveryError] when the push
// service rejected the message, or any other error for transport failures.
type Deliverer interface {
	Deliver(ctx context.Context, sub store.Subscription, payload []byte) error
}

// DelivererFunc adapts a function to the [Deliverer] interface.
type DelivererFunc func(ctx context.Context, sub store.Subscription, payload []byte) error

// Deliver calls f(ctx, sub, payload).
func (f DelivererFunc) Deliver(ctx context.Context, sub store.Subscription, payload []byte) error {
	return f(ctx, sub, payload)
}

// Remover deletes a subscription by endpoint. [store.Store] satisfies it.
type Remover interface {
	Remove(endpoint string) (count int, removed bool)
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	// Endpoint identifies the subscription the attempt was made for.
	Endpoint string `json:"endpoint"`

	// Success is true when the push service accepted the message.
	Success bool `json:"success"`

	// Error describes the failure. Empty on success.
	Error string `json:"error,omitempty"`

	// StatusCode is the push service's answer when the failure came from it.
	// Zero for successes and transport failures.
	StatusCode int `json:"statusCode,omitempty"`

	// Removed is true when the subscription was pruned after this attempt.
	Removed bool `json:"removed,omitempty"`

	// LatencyMs is the duration of the attempt in milliseconds.
	LatencyMs int64 `json:"latencyMs"`

	// Err is the underlying error for programmatic inspection.
	Err error `json:"-"`
}

// Dispatcher fans a payload out to a snapshot of subscriptions.
//
// Dispatcher is stateless between calls: everything it needs arrives with
// each [Dispatcher.Dispatch] call except its collaborators and limits.
type Dispatcher struct {
	deliverer      Deliverer
	remover        Remover
	maxConcurrency int
	timeout        time.Duration
	logger         *slog.Logger
}

// NewDispatcher creates a new [Dispatcher].
//
// Parameters:
//   - deliverer: Sends a payload to one subscription
//   - remover: Store to prune permanently dead subscriptions from (may be nil)
//   - maxConcurrency: Maximum number of deliveries in flight (values < 1 mean 1)
//   - timeout: Per-delivery timeout (0 disables it)
//   - logger: Logger for delivery events
func NewDispatcher(deliverer Deliverer, remover Remover, maxConcurrency int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		deliverer:      deliverer,
		remover:        remover,
		maxConcurrency: maxConcurrency,
		timeout:        timeout,
		logger:         logger,
	}
}

// Dispatch delivers payload to every subscription in subs and waits for all
// attempts to finish.
//
// The returned slice has one [Outcome] per subscription, at the same index.
// A failed attempt never stops the others. Subscriptions whose push service
// reports them gone are removed from the store before Dispatch returns.
// Dispatching to no subscriptions returns an empty, non-nil slice.
func (d *Dispatcher) Dispatch(ctx context.Context, subs []store.Subscription, payload []byte) []Outcome {
	outcomes := make([]Outcome, len(subs))
	if len(subs) == 0 {
		return outcomes
	}

	workers := d.maxConcurrency
	if workers > len(subs) {
		workers = len(subs)
	}

	// buffered to len(subs) so queueing never blocks
	jobs := make(chan int, len(subs))
	for i := range subs {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// each index is written by exactly one worker
				outcomes[i] = d.deliver(ctx, subs[i], payload)
			}
		}()
	}
	wg.Wait()

	return outcomes
}

// deliver makes one attempt and classifies its result.
func (d *Dispatcher) deliver(ctx context.Context, sub store.Subscription, payload []byte) Outcome {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.safeDeliver(ctx, sub, payload)
	latency := time.Since(start)

	out := Outcome{
		Endpoint:  sub.Endpoint,
		LatencyMs: latency.Milliseconds(),
	}

	if err == nil {
		out.Success = true
		d.logger.Debug("push delivered",
			"endpoint", sub.Endpoint,
			"latency_ms", out.LatencyMs,
		)
		return out
	}

	out.Err = err
	out.Error = err.Error()
	out.StatusCode = StatusCode(err)

	if IsGone(err) && d.remover != nil {
		count, removed := d.remover.Remove(sub.Endpoint)
		out.Removed = removed
		d.logger.Info("subscription pruned",
			"endpoint", sub.Endpoint,
			"status_code", out.StatusCode,
			"remaining", count,
		)
		return out
	}

	d.logger.Warn("push delivery failed",
		"endpoint", sub.Endpoint,
		"status_code", out.StatusCode,
		"latency_ms", out.LatencyMs,
		"error", out.Error,
	)
	return out
}

// safeDeliver calls the deliverer with panic recovery.
// A panic is logged with its stack under a correlation ID and reported as a
// transient failure carrying the same ID.
func (d *Dispatcher) safeDeliver(ctx context.Context, sub store.Subscription, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			d.logger.Error("deliverer panic",
				"correlation_id", correlationID,
				"endpoint", sub.Endpoint,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			err = fmt.Errorf("deliverer panic (correlation_id: %s)", correlationID)
		}
	}()
	return d.deliverer.Deliver(ctx, sub, payload)
}
