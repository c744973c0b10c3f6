package main

import (
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// StartMockPushServer runs a fake push service.
//
// Endpoints under /gone/ answer 410 like an expired subscription, endpoints
// under /flaky/ answer 503 every other request, everything else accepts the
// message with 201.
// Call this in a goroutine before broadcasting.
func StartMockPushServer(addr string) {
	mux := http.NewServeMux()
	var flakyHits atomic.Int64

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		n, _ := io.Copy(io.Discard, r.Body)

		switch {
		case strings.HasPrefix(r.URL.Path, "/gone/"):
			slog.Info("push rejected", "path", r.URL.Path, "status", http.StatusGone)
			w.WriteHeader(http.StatusGone)
		case strings.HasPrefix(r.URL.Path, "/flaky/"):
			if flakyHits.Add(1)%2 == 1 {
				slog.Info("push rejected", "path", r.URL.Path, "status", http.StatusServiceUnavailable)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusCreated)
		default:
			slog.Info("push accepted", "path", r.URL.Path, "bytes", n, "urgency", r.Header.Get("Urgency"))
			w.WriteHeader(http.StatusCreated)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock push server error", "error", err)
	}
}
