package pushcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jpalmerr/pushcast/dashboard"
	"github.com/jpalmerr/pushcast/internal/push"
	"github.com/jpalmerr/pushcast/internal/server"
	"github.com/jpalmerr/pushcast/internal/store"
)

const (
	defaultPort            = 3000
	defaultMaxConcurrency  = 10
	defaultDeliveryTimeout = 10 * time.Second
	defaultTTL             = 24 * time.Hour
	defaultSubject         = "mailto:admin@example.com"
)

// Service is the main orchestrator for subscription storage, broadcasting
// and HTTP serving.
//
// Service is created using [New] with functional options and started with
// [Service.Start]. The Go methods ([Service.Subscribe], [Service.Broadcast]
// and friends) work whether or not the HTTP server is running.
//
// The typical lifecycle is:
//
//	svc, err := pushcast.New(pushcast.WithVAPIDKeys(pub, priv))
//	if err != nil {
//	    slog.Error("failed to create pushcast", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	svc.Start(ctx) // blocks until context cancelled
type Service struct {
	title      string
	host       string
	port       int
	publicURL  string
	keys       VAPIDKeys
	logger     *slog.Logger
	readyHooks []func(net.Addr)

	store       *store.MemoryStore
	client      *push.Client // nil when a custom deliverer is configured
	broadcaster *push.Broadcaster

	mu   sync.Mutex
	addr net.Addr
}

// New creates a new [Service] instance with the given options.
//
// Options have sensible defaults:
//   - Port: 3000
//   - Max concurrency: 10
//   - Delivery timeout: 10 seconds
//   - TTL: 24 hours
//   - Urgency: normal
//
// Returns an error if any option is invalid or key generation fails.
func New(opts ...Option) (*Service, error) {
	cfg := &svcConfig{
		port:            defaultPort,
		subject:         defaultSubject,
		ttl:             defaultTTL,
		urgency:         UrgencyNormal,
		maxConcurrency:  defaultMaxConcurrency,
		deliveryTimeout: defaultDeliveryTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := cfg.keys
	if keys.PublicKey == "" {
		generated, err := GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		keys = generated
		logger.Warn("no VAPID keys configured, generated a temporary pair; subscriptions will stop working after a restart",
			"public_key", keys.PublicKey,
		)
	}

	svc := &Service{
		title:      cfg.title,
		host:       cfg.host,
		port:       cfg.port,
		publicURL:  cfg.publicURL,
		keys:       keys,
		logger:     logger,
		readyHooks: cfg.readyHooks,
		store:      store.NewMemoryStore(),
	}

	deliverer := cfg.deliverer
	if deliverer == nil {
		svc.client = push.NewClient(push.ClientOptions{
			Subject:         cfg.subject,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             cfg.ttl,
			Urgency:         cfg.urgency,
		})
		deliverer = svc.client
	}

	dispatcher := push.NewDispatcher(deliverer, svc.store, cfg.maxConcurrency, cfg.deliveryTimeout, logger)

	var onOutcome func(Outcome)
	if callbacks := cfg.outcomeCallbacks; len(callbacks) > 0 {
		onOutcome = func(o Outcome) {
			for _, cb := range callbacks {
				invokeCallbackSafe(cb, o, logger)
			}
		}
	}
	svc.broadcaster = push.NewBroadcaster(svc.store, dispatcher, onOutcome, logger)

	return svc, nil
}

// Start serves the HTTP API and admin page.
//
// Start is a blocking call that runs until the provided context is cancelled.
// Ready hooks run once the listener is bound. The caller controls the
// lifecycle via context cancellation. For signal handling, use
// [signal.NotifyContext].
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (s *Service) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	httpServer := server.NewServer(s.store, s.broadcaster, dashboard.Assets, server.Config{
		Host:           s.host,
		Port:           s.port,
		Title:          s.title,
		PublicURL:      s.publicURL,
		VAPIDPublicKey: s.keys.PublicKey,
	}, s.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	addr := httpServer.Addr()
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()

	s.logger.Info("pushcast started", "addr", addr.String())
	if tcp, ok := addr.(*net.TCPAddr); ok {
		s.logger.Info("admin page available", "url", fmt.Sprintf("http://localhost:%d/admin", tcp.Port))
	}

	for _, hook := range s.readyHooks {
		hook(addr)
	}

	<-ctx.Done()
	s.client.Close()
	s.logger.Info("pushcast stopped")
	return nil
}

// Addr returns the bound address once [Service.Start] is serving, else nil.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Subscribe stores sub unless a subscription with the same endpoint exists,
// and returns the number of stored subscriptions.
//
// Returns an error if the endpoint is empty.
func (s *Service) Subscribe(sub Subscription) (int, error) {
	if sub.Endpoint == "" {
		return 0, errors.New("endpoint is required")
	}
	count, _ := s.store.Add(sub)
	return count, nil
}

// Unsubscribe removes the subscription for endpoint, if present, and returns
// the number of stored subscriptions.
func (s *Service) Unsubscribe(endpoint string) int {
	count, _ := s.store.Remove(endpoint)
	return count
}

// Subscriptions returns a copy of the stored subscriptions in registration order.
func (s *Service) Subscriptions() []Subscription {
	return s.store.List()
}

// Broadcast delivers n to every stored subscription and waits for all
// deliveries to finish.
//
// Returns a [*ValidationError] (matching [ErrInvalidNotification]) when the
// title or message is empty. Failed deliveries never produce an error; they
// are reported in the [Report].
func (s *Service) Broadcast(ctx context.Context, n Notification) (Report, error) {
	return s.broadcaster.Broadcast(ctx, n)
}

// VAPIDPublicKey returns the public key browsers must subscribe with.
func (s *Service) VAPIDPublicKey() string {
	return s.keys.PublicKey
}

// invokeCallbackSafe calls an outcome callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Outcome), o Outcome, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("outcome callback panicked",
				"panic", r,
				"endpoint", o.Endpoint,
			)
		}
	}()
	cb(o)
}
