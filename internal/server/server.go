package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/availd/internal/availability"
	"github.com/teemow/availd/internal/google"
	"github.com/teemow/availd/internal/instrumentation"
	"github.com/teemow/availd/internal/logging"
)

// Default timeouts for the HTTP server.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// Config holds the dependencies and settings for the HTTP server.
type Config struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// Orchestrator handles inbound availability requests.
	Orchestrator *availability.Orchestrator

	// Auth provides the OAuth consent URL and code exchange for the
	// authorize/callback endpoints.
	Auth *google.AuthManager

	// Logger for request handling. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records webhook and OAuth metrics. May be the no-op recorder.
	Metrics *instrumentation.Metrics

	// Dispatch runs the decision/reply continuation of an acknowledged
	// webhook request. Defaults to a goroutine; tests substitute a
	// synchronous dispatcher.
	Dispatch func(func())
}

// Server is the inbound HTTP transport: the SMS webhook, the OAuth
// authorize/callback pair, and health probes.
type Server struct {
	orch       *availability.Orchestrator
	auth       *google.AuthManager
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	dispatch   func(func())
	health     *HealthChecker
	mux        *http.ServeMux
	httpServer *http.Server
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(fn func()) { go fn() }
	}

	s := &Server{
		orch:     cfg.Orchestrator,
		auth:     cfg.Auth,
		logger:   logging.WithComponent(logger, "server"),
		metrics:  cfg.Metrics,
		dispatch: dispatch,
		mux:      http.NewServeMux(),
	}
	s.health = NewHealthChecker(cfg.Auth)

	s.mux.HandleFunc("/sms", s.handleSMS)
	s.mux.HandleFunc("/authorize", s.handleAuthorize)
	s.mux.HandleFunc("/oauth2callback", s.handleOAuthCallback)
	s.mux.HandleFunc("/", s.handleRoot)
	s.health.RegisterHealthEndpoints(s.mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s
}

// Handler returns the server's route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Health returns the health checker so the process can flip readiness.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Start runs the HTTP server until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting http server", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// handleRoot serves a one-line status string on exactly "/".
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintln(w, "availd is running.")
}
