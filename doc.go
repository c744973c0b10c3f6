// Package pushcast provides an embeddable Web Push broadcast service.
//
// Browsers register push subscriptions, an operator sends a notification,
// and pushcast delivers it to every registered subscription concurrently,
// removing the ones the push service reports as gone.
//
// # Quick Start
//
// Create a service and run it with graceful shutdown:
//
//	svc, _ := pushcast.New(pushcast.WithPort(3000))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	svc.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// pushcast uses the functional options pattern for configuration:
//
//	svc, err := pushcast.New(
//	    pushcast.WithVAPIDKeys(publicKey, privateKey),
//	    pushcast.WithSubject("mailto:ops@example.com"),
//	    pushcast.WithMaxConcurrency(20),
//	    pushcast.WithDeliveryTimeout(5 * time.Second),
//	)
//
// Without [WithVAPIDKeys] a key pair is generated at startup. Browsers
// subscribe against the public key, so subscriptions made with a generated
// pair stop working once the process restarts. Use [GenerateVAPIDKeys] or
// the "pushcast keys" command to create a pair worth keeping.
//
// # Broadcasting
//
// [Service.Broadcast] sends to a snapshot of the current subscriptions and
// returns a [Report] with one [Outcome] per subscription. Only an invalid
// [Notification] is an error; failed deliveries are reported per endpoint.
// A 404 or 410 answer from the push service removes the subscription.
//
// # Architecture
//
// pushcast consists of several internal packages (under internal/):
//
//   - internal/store: In-memory subscription storage with change events
//   - internal/push: Web Push client, concurrent dispatcher and broadcaster
//   - internal/server: HTTP API, Server-Sent Events and WebSocket streams
//   - internal/netinfo: LAN address discovery for testing from a phone
//   - dashboard: Embedded admin page
//
// The internal packages are not part of the public API and may change
// without notice.
package pushcast
