package pushcast

import (
	"github.com/jpalmerr/pushcast/internal/push"
	"github.com/jpalmerr/pushcast/internal/store"
)

// Subscription is a browser push subscription as produced by
// PushManager.subscribe(). The endpoint is its identity.
type Subscription = store.Subscription

// Keys holds the subscription's encryption key material.
type Keys = store.Keys

// Notification is the message delivered to every subscription.
type Notification = push.Notification

// Outcome is the result of delivering a notification to one subscription.
type Outcome = push.Outcome

// Report summarizes a broadcast.
type Report = push.Report

// ValidationError reports which required notification fields are missing.
type ValidationError = push.ValidationError

// DeliveryError is returned by the Web Push client when the push service
// answers with a non-2xx status.
type DeliveryError = push.DeliveryError

// Deliverer sends one encoded notification to one subscription. Use
// [WithDeliverer] to replace the Web Push client, for example in tests.
type Deliverer = push.Deliverer

// DelivererFunc adapts a function to the [Deliverer] interface.
type DelivererFunc = push.DelivererFunc

// ErrInvalidNotification matches every [ValidationError] via errors.Is.
var ErrInvalidNotification = push.ErrInvalidNotification

// IsGone reports whether err means the subscription no longer exists at its
// push service (HTTP 404 or 410).
func IsGone(err error) bool {
	return push.IsGone(err)
}
