// Package server is the HTTP + WebSocket API surface for the flash loan
// pool: loan submission, pool state, admin operations, and the loan event
// stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/server/handler"
	"github.com/alanyoungcy/flashlend/internal/server/middleware"
	"github.com/alanyoungcy/flashlend/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps loan submissions per client per RateWindow. Zero
	// disables throttling; it also stays off when no limiter is wired.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Pool   *handler.PoolHandler
	Loans  *handler.LoanHandler
	Admin  *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server for the pool.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, auth, logging, CORS) wired. The limiter
// may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pool state.
	mux.HandleFunc("GET /api/pool", handlers.Pool.GetPool)
	mux.HandleFunc("GET /api/pool/loans", handlers.Pool.ListLoans)
	mux.HandleFunc("GET /api/pool/events", handlers.Pool.ListEvents)

	// Loan submission. Strategy routes carry the rate limiter so one caller
	// cannot monopolize the pool's serialized units.
	var loanChain func(http.Handler) http.Handler = func(next http.Handler) http.Handler { return next }
	if limiter != nil && cfg.RateLimit > 0 {
		loanChain = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)
	}
	mux.Handle("POST /api/loans/arbitrage", loanChain(http.HandlerFunc(handlers.Loans.OpenArbitrage)))
	mux.Handle("POST /api/loans/self-liquidate", loanChain(http.HandlerFunc(handlers.Loans.OpenSelfLiquidate)))
	mux.Handle("POST /api/loans/repay", loanChain(http.HandlerFunc(handlers.Loans.Repay)))

	// Admin operations.
	mux.HandleFunc("POST /api/admin/initialize", handlers.Admin.Initialize)
	mux.HandleFunc("POST /api/admin/pause", handlers.Admin.Pause)
	mux.HandleFunc("POST /api/admin/unpause", handlers.Admin.Unpause)
	mux.HandleFunc("POST /api/admin/emergency-withdraw", handlers.Admin.EmergencyWithdraw)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
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
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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
