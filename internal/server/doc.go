// Package server provides the HTTP front end for Pushcast.
//
// This package is internal to Pushcast and handles all HTTP concerns:
//
//   - Subscription API: register, remove and list browser subscriptions
//   - Broadcast API: POST /api/push fans a notification out to every subscriber
//   - Key and LAN helpers: VAPID public key and a phone-reachable URL
//   - Live events: subscription changes via Server-Sent Events at "/api/events"
//     and WebSocket at "/api/events/ws"
//   - Admin page: the embedded send form at "/" and "/admin"
//
// Routing uses chi with request IDs, panic recovery, debug request logging
// and permissive CORS (browsers on other origins register subscriptions).
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
