// Package store holds the set of registered Web Push subscriptions.
//
// This package is internal to Pushcast and manages the volatile, in-memory
// subscription set. Subscriptions are keyed by their endpoint URL; at most
// one subscription per endpoint is ever stored. Changes to the set are
// published to listeners for real-time updates in the admin UI.
//
// The main components are:
//
//   - [Store]: Interface defining subscription and listener operations
//   - [MemoryStore]: In-memory implementation of Store
//   - [Subscription]: A browser's push registration
//   - [Event]: A change notification emitted on add and remove
//
// The store is designed for concurrent access with proper synchronization.
// Listeners receive events via channels with non-blocking sends (slow
// listeners will miss events rather than block the system).
package store
