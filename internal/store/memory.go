package store

import (
	"sync"
	"time"
)

// listenerBuffer is the channel buffer size handed to each listener.
const listenerBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscriptions are kept in insertion order alongside an endpoint index.
// The dedup check and the insert happen under the same write lock, so
// concurrent registrations of the same endpoint cannot both succeed.
//
// Listeners receive events via buffered channels (buffer size 100). Events
// are sent non-blocking; if a listener's buffer is full, the event is dropped
// for that listener to prevent blocking the write path.
type MemoryStore struct {
	mu    sync.RWMutex
	subs  []Subscription
	index map[string]struct{}

	listeners map[chan Event]struct{}
	lisMu     sync.RWMutex

	now func() time.Time
}

// NewMemoryStore creates a new, empty in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:     make(map[string]struct{}),
		listeners: make(map[chan Event]struct{}),
		now:       time.Now,
	}
}

// Add stores sub unless its endpoint is already present.
func (m *MemoryStore) Add(sub Subscription) (int, bool) {
	m.mu.Lock()
	if _, exists := m.index[sub.Endpoint]; exists {
		count := len(m.subs)
		m.mu.Unlock()
		return count, false
	}
	m.index[sub.Endpoint] = struct{}{}
	m.subs = append(m.subs, sub)
	count := len(m.subs)
	m.mu.Unlock()

	m.notifyListeners(Event{Type: EventAdded, Endpoint: sub.Endpoint, Count: count, At: m.now()})
	return count, true
}

// Remove deletes the subscription for endpoint, if any.
//
// Removal is linear in the number of stored subscriptions; insertion order
// of the remaining entries is preserved.
func (m *MemoryStore) Remove(endpoint string) (int, bool) {
	m.mu.Lock()
	if _, exists := m.index[endpoint]; !exists {
		count := len(m.subs)
		m.mu.Unlock()
		return count, false
	}
	delete(m.index, endpoint)
	for i := range m.subs {
		if m.subs[i].Endpoint == endpoint {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			break
		}
	}
	count := len(m.subs)
	m.mu.Unlock()

	m.notifyListeners(Event{Type: EventRemoved, Endpoint: endpoint, Count: count, At: m.now()})
	return count, true
}

// List returns a snapshot of all stored subscriptions in insertion order.
func (m *MemoryStore) List() []Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Subscription, len(m.subs))
	copy(out, m.subs)
	return out
}

// Size returns the number of stored subscriptions.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Subscribe registers a listener and returns its event channel.
//
// The returned channel has a buffer of 100 events. If the buffer fills
// (slow consumer), new events are dropped for this listener.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Event {
	ch := make(chan Event, listenerBuffer)

	m.lisMu.Lock()
	m.listeners[ch] = struct{}{}
	m.lisMu.Unlock()

	return ch
}

// Unsubscribe removes a listener and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Event) {
	m.lisMu.Lock()
	defer m.lisMu.Unlock()

	for lc := range m.listeners {
		if lc == ch {
			delete(m.listeners, lc)
			close(lc)
			break
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (m *MemoryStore) ListenerCount() int {
	m.lisMu.RLock()
	defer m.lisMu.RUnlock()
	return len(m.listeners)
}

// notifyListeners sends ev to all listeners without blocking.
func (m *MemoryStore) notifyListeners(ev Event) {
	m.lisMu.RLock()
	defer m.lisMu.RUnlock()

	for ch := range m.listeners {
		select {
		case ch <- ev:
		default:
			// listener is slow, drop the event
		}
	}
}
