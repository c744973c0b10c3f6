package store

import (
	"bytes"
	"encoding/json"
	"time"
)

// Keys is the key material a browser hands out with its subscription.
//
// The values are opaque to Pushcast; they are only used by the push client
// to encrypt payloads for the owning endpoint.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription represents one browser's push registration.
//
// Endpoint is the identity key: two subscriptions with the same endpoint
// are the same subscription.
//
// A Subscription decoded from JSON keeps the document it came from and
// encodes back to it byte for byte, so fields Pushcast does not model survive
// a round trip through the store.
type Subscription struct {
	// Endpoint is the push service URL identifying the browser channel.
	Endpoint string `json:"endpoint"`

	// ExpirationTime is passed through from the browser (usually null).
	ExpirationTime *int64 `json:"expirationTime,omitempty"`

	// Keys is the encryption key material for the endpoint.
	Keys Keys `json:"keys"`

	raw json.RawMessage
}

// subscriptionFields has the fields of Subscription without its methods.
type subscriptionFields Subscription

// UnmarshalJSON decodes the modelled fields and keeps a copy of data.
func (s *Subscription) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f subscriptionFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Subscription(f)
	s.raw = bytes.Clone(data)
	return nil
}

// MarshalJSON returns the document the subscription was decoded from, or
// encodes the fields for subscriptions built in Go.
func (s Subscription) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(subscriptionFields(s))
}

// EventType identifies the kind of change reported by an [Event].
type EventType string

const (
	// EventAdded is emitted when a new endpoint is stored.
	EventAdded EventType = "added"

	// EventRemoved is emitted when a stored endpoint is deleted, either by an
	// explicit unsubscribe or by pruning after a failed delivery.
	EventRemoved EventType = "removed"
)

// Event describes a single change to the subscription set.
type Event struct {
	Type     EventType `json:"type"`
	Endpoint string    `json:"endpoint"`

	// Count is the number of stored subscriptions after the change.
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Store defines the interface for the subscription set.
//
// Store implementations must be safe for concurrent access and must never
// hold two subscriptions with the same endpoint.
type Store interface {
	// Add stores sub unless a subscription with the same endpoint exists.
	// Duplicates are a silent no-op. Returns the resulting size and whether
	// the subscription was inserted.
	Add(sub Subscription) (count int, added bool)

	// Remove deletes the subscription with the given endpoint. Unknown
	// endpoints are a no-op. Returns the resulting size and whether a
	// subscription was deleted.
	Remove(endpoint string) (count int, removed bool)

	// List returns the stored subscriptions in insertion order.
	// The returned slice is a snapshot; modifications do not affect the store.
	List() []Subscription

	// Size returns the number of stored subscriptions.
	Size() int

	// Subscribe returns a channel that receives change events.
	// The returned channel has a buffer; slow consumers may miss events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Event

	// Unsubscribe removes a listener and closes its channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Event)
}
