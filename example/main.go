package main

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pushcast"
)

const mockPushURL = "http://localhost:9999"

func main() {
	// start mock push service (see mock_server.go)
	go StartMockPushServer(":9999")
	time.Sleep(100 * time.Millisecond)

	keys, err := pushcast.GenerateVAPIDKeys()
	if err != nil {
		slog.Error("failed to generate keys", "error", err)
		os.Exit(1)
	}

	svc, err := pushcast.New(
		pushcast.WithVAPIDKeys(keys.PublicKey, keys.PrivateKey),
		pushcast.WithSubject("mailto:demo@example.com"),
		pushcast.WithPort(3000),
		pushcast.WithTitle("Pushcast Demo"),
		pushcast.WithOutcomeCallback(func(o pushcast.Outcome) {
			if o.Removed {
				slog.Info("expired subscription dropped", "endpoint", o.Endpoint)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create pushcast", "error", err)
		os.Exit(1)
	}

	// fake browsers: two healthy, one expired, one unreliable
	for _, path := range []string{"/send/laptop", "/send/phone", "/gone/old-tablet", "/flaky/train-wifi"} {
		sub, err := fakeBrowser(mockPushURL + path)
		if err != nil {
			slog.Error("failed to create subscription", "error", err)
			os.Exit(1)
		}
		if _, err := svc.Subscribe(sub); err != nil {
			slog.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
	}

	report, err := svc.Broadcast(context.Background(), pushcast.Notification{
		Title:   "Hello from Pushcast",
		Message: "This went to every subscriber at once",
		URL:     "/admin",
	})
	if err != nil {
		slog.Error("broadcast failed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("  Broadcast: %d of %d delivered, %d expired removed\n", report.Sent, report.Total, report.Pruned())
	for _, r := range report.Results {
		status := "delivered"
		if !r.Success {
			status = r.Error
		}
		fmt.Printf("    %-40s %s (%d ms)\n", r.Endpoint, status, r.LatencyMs)
	}
	fmt.Println()
	fmt.Println("  Admin page: http://localhost:3000/admin")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		slog.Error("pushcast error", "error", err)
		os.Exit(1)
	}
}

// fakeBrowser creates a subscription with real key material, as a browser
// would, pointing at endpoint.
func fakeBrowser(endpoint string) (pushcast.Subscription, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return pushcast.Subscription{}, err
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return pushcast.Subscription{}, err
	}

	return pushcast.Subscription{
		Endpoint: endpoint,
		Keys: pushcast.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}, nil
}
