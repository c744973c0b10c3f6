package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/pushcast/internal/netinfo"
	"github.com/jpalmerr/pushcast/internal/push"
	"github.com/jpalmerr/pushcast/internal/store"
)

const (
	// maxBodySize limits JSON request bodies. Subscriptions and notifications
	// are a few hundred bytes.
	maxBodySize = 64 << 10

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Pushcast"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Broadcaster sends a notification to every stored subscription.
type Broadcaster interface {
	Broadcast(ctx context.Context, n push.Notification) (push.Report, error)
}

// Config holds the listener and display settings for a [Server].
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// Title is shown on the admin page (defaults to "Pushcast").
	Title string

	// PublicURL, when set, is reported by /api/mobile-url instead of the
	// discovered LAN address.
	PublicURL string

	// VAPIDPublicKey is handed to browsers as their applicationServerKey.
	VAPIDPublicKey string
}

// Server handles HTTP requests for the Pushcast API and admin page.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store       store.Store
	broadcaster Broadcaster
	assets      fs.FS
	cfg         Config
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	lanIP       func() string

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Subscription store
//   - b: Broadcaster used by POST /api/push
//   - assets: Embedded filesystem containing the admin page (may be nil)
//   - cfg: Listener and display settings
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, b Broadcaster, assets fs.FS, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:       st,
		broadcaster: b,
		assets:      assets,
		cfg:         cfg,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the API is open to any origin, same as CORS below
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		lanIP: netinfo.LocalIPv4,
	}
}

// Handler returns the router serving all API routes and the admin page.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", s.handleSubscribe)
		r.Post("/unsubscribe", s.handleUnsubscribe)
		r.Get("/subscriptions", s.handleSubscriptions)
		r.Post("/push", s.handlePush)
		r.Get("/vapid-public-key", s.handleVAPIDPublicKey)
		r.Get("/mobile-url", s.handleMobileURL)
		r.Get("/events", s.handleSSE)
		r.Get("/events/ws", s.handleWebSocket)
	})
	r.Get("/healthz", s.handleHealth)

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
		r.Get("/admin", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured address.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// requestLogger logs every request at debug level with its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type countResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type subscriptionsResponse struct {
	Count         int                  `json:"count"`
	Subscriptions []store.Subscription `json:"subscriptions"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type mobileURLResponse struct {
	URL  string `json:"url"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Subscriptions int    `json:"subscriptions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSubscribe registers a browser subscription. Re-registering a known
// endpoint is accepted and changes nothing.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub store.Subscription
	if err := s.decodeJSON(w, r, &sub); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sub.Endpoint == "" {
		s.writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	count, added := s.store.Add(sub)
	if added {
		s.logger.Info("subscription registered", "endpoint", sub.Endpoint, "count", count)
	}

	s.writeJSON(w, http.StatusCreated, countResponse{Success: true, Count: count})
}

// handleUnsubscribe removes a subscription. Unknown endpoints and empty
// bodies are not an error.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := s.decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, removed := s.store.Remove(req.Endpoint)
	if removed {
		s.logger.Info("subscription removed", "endpoint", req.Endpoint, "count", count)
	}

	s.writeJSON(w, http.StatusOK, countResponse{Success: true, Count: count})
}

// handleSubscriptions dumps every stored subscription.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.store.List()
	s.writeJSON(w, http.StatusOK, subscriptionsResponse{Count: len(subs), Subscriptions: subs})
}

// handlePush broadcasts a notification and reports per-endpoint outcomes.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var n push.Notification
	if err := s.decodeJSON(w, r, &n); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// an admin closing the tab must not cancel deliveries already under way
	ctx := context.WithoutCancel(r.Context())

	report, err := s.broadcaster.Broadcast(ctx, n)
	if err != nil {
		if errors.Is(err, push.ErrInvalidNotification) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("broadcast failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleVAPIDPublicKey returns the application server key browsers subscribe with.
func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, vapidKeyResponse{PublicKey: s.cfg.VAPIDPublicKey})
}

// handleMobileURL reports a URL a phone on the same network can open.
func (s *Server) handleMobileURL(w http.ResponseWriter, r *http.Request) {
	port := s.port()

	if s.cfg.PublicURL != "" {
		host := s.cfg.PublicURL
		if u, err := url.Parse(s.cfg.PublicURL); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		s.writeJSON(w, http.StatusOK, mobileURLResponse{URL: s.cfg.PublicURL, IP: host, Port: port})
		return
	}

	ip := s.lanIP()
	s.writeJSON(w, http.StatusOK, mobileURLResponse{
		URL:  fmt.Sprintf("http://%s", net.JoinHostPort(ip, fmt.Sprintf("%d", port))),
		IP:   ip,
		Port: port,
	})
}

// handleHealth reports liveness and the current subscription count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Subscriptions: s.store.Size()})
}

// handleDashboard serves the admin page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Admin page not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Admin page not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write admin page", "error", err)
	}
}

// port returns the bound port once started, else the configured one.
func (s *Server) port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok && addr != nil {
		return addr.Port
	}
	return s.cfg.Port
}

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
