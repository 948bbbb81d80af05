package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// Services
	authService driving.AuthService
	syncService driving.SyncService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
	callLimiter *RateLimitMiddleware
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string

	// Per-caller budget on /api/v1 routes. Zero RequestsPerMinute disables it.
	RequestsPerMinute int
	RequestBurst      int

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		Version:           "dev",
		RequestsPerMinute: 60,
		RequestBurst:      10,
	}
}

// NewServer creates a new HTTP server. db and redisClient may be nil.
func NewServer(
	cfg Config,
	authService driving.AuthService,
	syncService driving.SyncService,
	db Pinger,
	redisClient Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      logger,
		authService: authService,
		syncService: syncService,
		db:          db,
		redisClient: redisClient,
	}
	if cfg.RequestsPerMinute > 0 {
		s.callLimiter = NewRateLimitMiddleware(cfg.RequestsPerMinute, cfg.RequestBurst)
	}

	s.setupRoutes()

	// Outermost first: recovery, then logging, then CORS
	var h http.Handler = s.router
	h = NewCORSMiddleware(cfg.AllowedOrigins).Handler(h)
	h = NewLoggingMiddleware(logger).Handler(h)
	h = NewRecoveryMiddleware(logger).Handler(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		// Manual syncs run inside the request and can take minutes
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// api wraps an authenticated route with the per-caller limiter
	api := func(h http.Handler) http.Handler {
		if s.callLimiter != nil {
			h = s.callLimiter.Handler(h)
		}
		return authMiddleware.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return api(authMiddleware.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Sync endpoints. Members may trigger their own tenant; the rest is admin-only.
	s.router.Handle("POST /api/v1/sync", api(http.HandlerFunc(s.handleTriggerSync)))
	s.router.Handle("PUT /api/v1/sync/mode", admin(s.handleChangeSyncMode))
	s.router.Handle("GET /api/v1/sync/status", admin(s.handleGetSyncStatus))

	// Connection onboarding (admin-only)
	s.router.Handle("GET /api/v1/connections/{id}/ad-accounts", admin(s.handleListAdAccounts))
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.callLimiter != nil {
		go s.callLimiter.RunCleanup(ctx, 10*time.Minute)
	}

	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
