// Package push delivers broadcast notifications to Web Push endpoints.
//
// This package is internal to Pushcast and handles the fan-out of a single
// notification to every stored subscription. It implements a worker pool
// pattern for concurrent deliveries with a configurable concurrency limit and
// a per-delivery timeout.
//
// The main components are:
//
//   - [Client]: Web Push client (VAPID signed, encrypted payloads)
//   - [Dispatcher]: Delivers one payload to many subscriptions concurrently
//   - [Broadcaster]: Validates a [Notification], dispatches it and builds a [Report]
//   - [Outcome]: Result of one delivery attempt
//
// Deliveries that the push service answers with 404 or 410 are treated as
// permanent failures and the subscription is removed from the store. All
// other failures are transient: they are reported and the subscription is
// kept for future broadcasts.
package push
