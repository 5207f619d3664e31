// Package server exposes the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/server/handler"
	"github.com/pullmarket/pullmarket/internal/server/middleware"
	"github.com/pullmarket/pullmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminAPIKey string // if empty, admin endpoints are unauthenticated
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Registry *handler.RegistryHandler
	Tokens   *handler.TokenHandler
	Markets  *handler.MarketHandler
	Bank     *handler.BankHandler
	Admin    *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// Admin routes sit behind API-key auth; everything else is public. limiter
// may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Project registry.
	mux.HandleFunc("POST /api/projects", handlers.Registry.CreateProject)
	mux.HandleFunc("GET /api/projects", handlers.Registry.ListProjects)
	mux.HandleFunc("GET /api/projects/search", handlers.Registry.SearchProjects)
	mux.HandleFunc("GET /api/projects/creator/{address}", handlers.Registry.ListByCreator)
	mux.HandleFunc("GET /api/projects/token/{address}", handlers.Registry.GetProjectByToken)
	mux.HandleFunc("GET /api/projects/{owner}/{repo}", handlers.Registry.GetProject)
	mux.HandleFunc("GET /api/registry/stats", handlers.Registry.RegistryStats)

	// ProjectCoin tokens.
	mux.HandleFunc("GET /api/tokens/{address}", handlers.Tokens.GetInfo)
	mux.HandleFunc("GET /api/tokens/{address}/repository", handlers.Tokens.GetRepository)
	mux.HandleFunc("GET /api/tokens/{address}/stats", handlers.Tokens.GetStats)
	mux.HandleFunc("GET /api/tokens/{address}/balance/{holder}", handlers.Tokens.GetBalance)
	mux.HandleFunc("GET /api/tokens/{address}/quote/mint", handlers.Tokens.QuoteMint)
	mux.HandleFunc("GET /api/tokens/{address}/quote/redeem", handlers.Tokens.QuoteRedeem)
	mux.HandleFunc("POST /api/tokens/{address}/mint", handlers.Tokens.Mint)
	mux.HandleFunc("POST /api/tokens/{address}/redeem", handlers.Tokens.Redeem)
	mux.HandleFunc("POST /api/tokens/{address}/burn", handlers.Tokens.Burn)
	mux.HandleFunc("POST /api/tokens/{address}/transfer", handlers.Tokens.Transfer)

	// Prediction markets.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{owner}/{repo}/{pr}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{owner}/{repo}/{pr}/bet", handlers.Markets.Bet)
	mux.HandleFunc("POST /api/markets/{owner}/{repo}/{pr}/claim", handlers.Markets.Claim)
	mux.HandleFunc("GET /api/markets/{owner}/{repo}/{pr}/positions", handlers.Markets.ListPositions)
	mux.HandleFunc("GET /api/markets/{owner}/{repo}/{pr}/positions/{address}", handlers.Markets.GetPosition)
	mux.HandleFunc("GET /api/markets/{owner}/{repo}/{pr}/winnings/{address}", handlers.Markets.GetWinnings)

	// Custodial ledger.
	mux.HandleFunc("POST /api/bank/deposit", handlers.Bank.Deposit)
	mux.HandleFunc("GET /api/bank/balance/{address}", handlers.Bank.GetBalance)
	mux.HandleFunc("GET /api/bank/supply", handlers.Bank.GetSupply)

	// Admin endpoints behind API-key auth.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/admin/markets/{owner}/{repo}/{pr}/resolve", handlers.Admin.ResolveMarket)
	adminMux.HandleFunc("POST /api/admin/registry/fee", handlers.Admin.UpdateCreationFee)
	adminMux.HandleFunc("POST /api/admin/registry/pause", handlers.Admin.SetCreationPaused)
	adminMux.HandleFunc("POST /api/admin/projects/{address}/deactivate", handlers.Admin.DeactivateProject)
	adminMux.HandleFunc("POST /api/admin/tokens/{address}/buyback-burn", handlers.Admin.BuybackBurn)
	adminMux.HandleFunc("POST /api/admin/tokens/{address}/treasury", handlers.Admin.UpdateTreasury)
	adminMux.HandleFunc("POST /api/admin/tokens/{address}/reward-pool", handlers.Admin.UpdateRewardPool)
	adminMux.HandleFunc("POST /api/admin/archive", handlers.Admin.TriggerArchive)
	adminMux.HandleFunc("GET /api/admin/audit", handlers.Admin.ListAudit)
	mux.Handle("/api/admin/", middleware.Auth(cfg.AdminAPIKey)(adminMux))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
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
