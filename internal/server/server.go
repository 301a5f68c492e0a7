// Package server assembles the engine's HTTP and WebSocket API: route
// registration, role-gated auth, rate limiting, request logging, and CORS.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/server/handler"
	"github.com/duelhouse/duelengine/internal/server/middleware"
	"github.com/duelhouse/duelengine/internal/server/ws"
)

// Config holds the HTTP server configuration. Empty keys disable the
// corresponding auth check.
type Config struct {
	Port        int
	CORSOrigins []string
	OwnerKey    string
	ResolverKey string

	// Rate limiting, applied per client IP. Zero disables it.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Duels       *handler.DuelHandler
	Marketplace *handler.MarketplaceHandler
	Earnings    *handler.EarningsHandler
	Admin       *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server for the duel engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Resolver-gated routes (request approval, lifecycle transitions) require the
// resolver or owner API key; admin routes require the owner key; everything
// else is open, with caller identity taken from the request body.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	auth := middleware.KeyAuth{
		OwnerKey:    cfg.OwnerKey,
		ResolverKey: cfg.ResolverKey,
	}
	resolver := func(h http.HandlerFunc) http.Handler { return auth.Resolver(h) }
	owner := func(h http.HandlerFunc) http.Handler { return auth.Owner(h) }

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Duel creation requests.
	mux.HandleFunc("POST /api/duels/requests", handlers.Duels.CreateRequest)
	mux.Handle("POST /api/duels/requests/{id}/approve", resolver(handlers.Duels.ApproveRequest))
	mux.HandleFunc("DELETE /api/duels/requests/{id}", handlers.Duels.RevokeRequest)

	// Duel lifecycle.
	mux.HandleFunc("GET /api/duels", handlers.Duels.ListDuels)
	mux.HandleFunc("GET /api/duels/{id}", handlers.Duels.GetDuel)
	mux.HandleFunc("POST /api/duels/{id}/join", handlers.Duels.Join)
	mux.Handle("POST /api/duels/{id}/start", resolver(handlers.Duels.Start))
	mux.Handle("POST /api/duels/{id}/settle", resolver(handlers.Duels.Settle))
	mux.Handle("POST /api/duels/{id}/cancel", resolver(handlers.Duels.Cancel))
	mux.Handle("POST /api/duels/{id}/distribute", resolver(handlers.Duels.Distribute))
	mux.Handle("POST /api/duels/{id}/refund", resolver(handlers.Duels.Refund))

	// Claim marketplace.
	mux.HandleFunc("POST /api/market/listings", handlers.Marketplace.CreateListing)
	mux.HandleFunc("GET /api/market/listings/{duel}/{option}", handlers.Marketplace.ListListings)
	mux.HandleFunc("DELETE /api/market/listings/{duel}/{option}/{index}", handlers.Marketplace.CancelListing)
	mux.HandleFunc("POST /api/market/buy", handlers.Marketplace.Buy)

	// Earnings.
	mux.HandleFunc("GET /api/earnings/{account}", handlers.Earnings.GetEarnings)
	mux.HandleFunc("POST /api/earnings/withdraw", handlers.Earnings.Withdraw)
	mux.HandleFunc("POST /api/earnings/creator/withdraw", handlers.Earnings.WithdrawCreatorFees)

	// Admin (owner only).
	mux.Handle("GET /api/admin/config", owner(handlers.Admin.GetConfig))
	mux.Handle("PUT /api/admin/config", owner(handlers.Admin.PutConfig))
	mux.Handle("GET /api/admin/audit", owner(handlers.Admin.GetAudit))
	mux.Handle("GET /api/admin/fees", owner(handlers.Earnings.GetProtocolFees))
	mux.Handle("POST /api/admin/fees/withdraw", owner(handlers.Earnings.WithdrawProtocolFees))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
