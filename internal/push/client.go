package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jpalmerr/pushcast/internal/store"
)

// maxErrorBodySize caps how much of a failed response is kept for diagnostics.
const maxErrorBodySize = 4 << 10 // 4KB

// connection pooling limits; a broadcast hits few hosts (one per push
// service vendor) with many requests each
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 20
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 90 * time.Second
)

// ClientOptions configures the VAPID identity and message headers used by [Client].
type ClientOptions struct {
	// Subject is the sender contact placed in the VAPID token, either an
	// e-mail address (with or without "mailto:") or an https URL.
	Subject string

	// VAPIDPublicKey and VAPIDPrivateKey are the URL-safe base64 encoded
	// application server keys.
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	// TTL is how long the push service should keep an undelivered message.
	TTL time.Duration

	// Urgency is the Web Push urgency header: very-low, low, normal or high.
	// Empty leaves the header unset.
	Urgency string
}

// Client sends encrypted Web Push messages signed with a VAPID key pair.
//
// Client uses per-delivery timeouts via context rather than a global timeout,
// so the dispatcher controls how long each attempt may take.
type Client struct {
	httpClient *http.Client
	opts       ClientOptions
}

// NewClient creates a new Web Push [Client].
//
// The client is configured with connection pooling so that a broadcast to
// many subscriptions on the same push service reuses connections.
func NewClient(opts ClientOptions) *Client {
	// webpush-go prefixes e-mail subjects itself
	opts.Subject = strings.TrimPrefix(opts.Subject, "mailto:")

	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-delivery timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		opts: opts,
	}
}

// Deliver encrypts payload for sub and posts it to the subscription endpoint.
//
// A 2xx answer is success. Any other status is returned as a
// [*DeliveryError]; transport failures are returned wrapped.
func (c *Client) Deliver(ctx context.Context, sub store.Subscription, payload []byte) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	// the library appends padding to the message it is given, and payload is
	// shared by every delivery of a broadcast
	resp, err := webpush.SendNotificationWithContext(ctx, bytes.Clone(payload), target, &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.opts.Subject,
		TTL:             int(c.opts.TTL / time.Second),
		Urgency:         webpush.Urgency(c.opts.Urgency),
		VAPIDPublicKey:  c.opts.VAPIDPublicKey,
		VAPIDPrivateKey: c.opts.VAPIDPrivateKey,
	})
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil client. After Close, the client
// remains usable but new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// GenerateVAPIDKeys creates a fresh application server key pair.
//
// Both keys are URL-safe base64 encoded, ready for the browser's
// applicationServerKey and for [ClientOptions].
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
