// Standalone mock push service for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockpush
//
// Then in another terminal:
//
//	go run ./cmd/pushcast serve -c example/pushcast.yaml
//
// and register subscriptions whose endpoint points at http://localhost:9999.
// Paths under /gone/ answer 410 and paths under /flaky/ answer 503.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
)

func main() {
	fmt.Println("Mock push service starting on :9999")
	fmt.Println("  /gone/...  -> 410 Gone")
	fmt.Println("  /flaky/... -> 503 Service Unavailable")
	fmt.Println("  anything   -> 201 Created")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var received atomic.Int64

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)

		status := http.StatusCreated
		switch {
		case strings.HasPrefix(r.URL.Path, "/gone/"):
			status = http.StatusGone
		case strings.HasPrefix(r.URL.Path, "/flaky/"):
			status = http.StatusServiceUnavailable
		}

		slog.Info("push received",
			"path", r.URL.Path,
			"status", status,
			"bytes", n,
			"ttl", r.Header.Get("TTL"),
			"total", received.Add(1),
		)
		w.WriteHeader(status)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
