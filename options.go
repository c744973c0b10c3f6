package pushcast

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"
)

// svcConfig holds mutable state during Service construction.
type svcConfig struct {
	title            string
	host             string
	port             int
	publicURL        string
	subject          string
	keys             VAPIDKeys
	ttl              time.Duration
	urgency          string
	maxConcurrency   int
	deliveryTimeout  time.Duration
	deliverer        Deliverer
	logger           *slog.Logger
	outcomeCallbacks []func(Outcome)
	readyHooks       []func(net.Addr)
}

// Option is a function that configures a [Service] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*svcConfig) error

// Urgency values accepted by [WithUrgency].
const (
	UrgencyVeryLow = "very-low"
	UrgencyLow     = "low"
	UrgencyNormal  = "normal"
	UrgencyHigh    = "high"
)

// WithPort sets the HTTP port for the API and admin page.
//
// Port 0 picks a free port; read it back from the ready hook or
// [Service.Addr]. Defaults to 3000 if not specified.
//
// Returns an error if the port is outside the range 0-65535.
func WithPort(port int) Option {
	return func(cfg *svcConfig) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port must be between 0 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithHost sets the interface to bind. Empty (the default) binds all
// interfaces, which is what makes the service reachable from a phone.
func WithHost(host string) Option {
	return func(cfg *svcConfig) error {
		cfg.host = host
		return nil
	}
}

// WithTitle sets the admin page title. Defaults to "Pushcast".
func WithTitle(title string) Option {
	return func(cfg *svcConfig) error {
		cfg.title = title
		return nil
	}
}

// WithPublicURL sets the URL reported by /api/mobile-url, for deployments
// behind a reverse proxy or tunnel where the LAN address is useless.
//
// Returns an error unless the URL is absolute http or https.
func WithPublicURL(rawURL string) Option {
	return func(cfg *svcConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid public URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public URL must be an absolute http or https URL, got %q", rawURL)
		}
		cfg.publicURL = rawURL
		return nil
	}
}

// WithSubject sets the VAPID subject, the contact push services use to reach
// the sender: a "mailto:" address or an https URL.
//
// Defaults to "mailto:admin@example.com".
func WithSubject(subject string) Option {
	return func(cfg *svcConfig) error {
		if subject == "" {
			return errors.New("VAPID subject cannot be empty")
		}
		cfg.subject = subject
		return nil
	}
}

// WithVAPIDKeys sets the application server key pair.
//
// Without this option a fresh pair is generated by [New] and a warning is
// logged, since subscriptions do not survive a change of keys.
//
// Returns an error if either key is empty.
func WithVAPIDKeys(publicKey, privateKey string) Option {
	return func(cfg *svcConfig) error {
		if publicKey == "" || privateKey == "" {
			return errors.New("both VAPID public and private keys are required")
		}
		cfg.keys = VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey}
		return nil
	}
}

// WithTTL sets how long push services keep a message for an offline device.
// Defaults to 24 hours. Zero asks for immediate delivery or none.
//
// Returns an error if the duration is negative.
func WithTTL(d time.Duration) Option {
	return func(cfg *svcConfig) error {
		if d < 0 {
			return errors.New("TTL cannot be negative")
		}
		cfg.ttl = d
		return nil
	}
}

// WithUrgency sets the Web Push urgency header: [UrgencyVeryLow],
// [UrgencyLow], [UrgencyNormal] (the default) or [UrgencyHigh].
func WithUrgency(urgency string) Option {
	return func(cfg *svcConfig) error {
		if !ValidUrgency(urgency) {
			return fmt.Errorf("invalid urgency %q (must be very-low, low, normal or high)", urgency)
		}
		cfg.urgency = urgency
		return nil
	}
}

// ValidUrgency reports whether u is a Web Push urgency value.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyVeryLow, UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// WithMaxConcurrency sets the maximum number of deliveries in flight during
// a broadcast. Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *svcConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithDeliveryTimeout bounds each individual delivery. A delivery that
// exceeds it fails as transient and the subscription is kept.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(cfg *svcConfig) error {
		if d <= 0 {
			return errors.New("delivery timeout must be positive")
		}
		cfg.deliveryTimeout = d
		return nil
	}
}

// WithDeliverer replaces the Web Push client. The deliverer's errors are
// classified the same way: a [*DeliveryError] with status 404 or 410
// removes the subscription, anything else is transient.
//
// Returns an error if d is nil.
func WithDeliverer(d Deliverer) Option {
	return func(cfg *svcConfig) error {
		if d == nil {
			return errors.New("deliverer cannot be nil")
		}
		cfg.deliverer = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Service instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *svcConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutcomeCallback registers a function called once for every delivery
// outcome, after the broadcast it belongs to has finished.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks run on the broadcasting goroutine and delay its
// response. Long-running work should be handed to another goroutine.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	svc, err := pushcast.New(
//	    pushcast.WithOutcomeCallback(func(o pushcast.Outcome) {
//	        if o.Removed {
//	            log.Printf("expired: %s", o.Endpoint)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithOutcomeCallback(cb func(Outcome)) Option {
	return func(cfg *svcConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.outcomeCallbacks = append(cfg.outcomeCallbacks, cb)
		return nil
	}
}

// WithReadyHook registers a function called by [Service.Start] once the
// listener is bound, with the bound address.
//
// Nil hooks are silently ignored.
func WithReadyHook(hook func(addr net.Addr)) Option {
	return func(cfg *svcConfig) error {
		if hook == nil {
			return nil
		}
		cfg.readyHooks = append(cfg.readyHooks, hook)
		return nil
	}
}
