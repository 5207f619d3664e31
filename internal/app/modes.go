package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pullmarket/pullmarket/internal/config"
	"github.com/pullmarket/pullmarket/internal/oracle/github"
	"github.com/pullmarket/pullmarket/internal/server"
	"github.com/pullmarket/pullmarket/internal/server/handler"
	"github.com/pullmarket/pullmarket/internal/server/ws"
	"github.com/pullmarket/pullmarket/internal/service"

	"github.com/ethereum/go-ethereum/common"
)

// services bundles the service layer built on top of the wired dependencies.
type services struct {
	registry *service.RegistryService
	tokens   *service.TokenService
	markets  *service.MarketService
}

func (a *App) buildServices(deps *Dependencies) *services {
	return &services{
		registry: service.NewRegistryService(
			deps.Registry, deps.ProjectStore, deps.ProjectCache,
			deps.AuditStore, deps.SignalBus, a.logger,
		),
		tokens: service.NewTokenService(
			deps.Registry, deps.StatsCache, deps.AuditStore,
			deps.SignalBus, a.logger,
		),
		markets: service.NewMarketService(
			deps.Markets, deps.MarketStore, deps.PositionStore,
			deps.MarketCache, deps.AuditStore, deps.SignalBus,
			deps.Notifier, a.logger,
		),
	}
}

// ServeMode runs the HTTP and WebSocket API without the oracle.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// OracleMode runs only the PR resolution poller.
func (a *App) OracleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting oracle mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startOracle(ctx, g, deps, svcs)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API surface and the oracle together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startOracle(ctx, g, deps, svcs)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer builds the WebSocket hub and the HTTP server and launches
// both on the group. Does nothing when the server is disabled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Channel:   service.EventChannel,
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
		Stats: func() (int, int) {
			return deps.Registry.TotalTokens(), len(deps.Markets.ActiveMarkets())
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Registry: handler.NewRegistryHandler(svcs.registry, a.logger),
		Tokens:   handler.NewTokenHandler(svcs.tokens, a.logger),
		Markets:  handler.NewMarketHandler(svcs.markets, a.logger),
		Bank:     handler.NewBankHandler(deps.Bank, a.logger),
		Admin: handler.NewAdminHandler(
			svcs.registry, svcs.tokens, svcs.markets,
			deps.Archiver, deps.AuditStore, a.logger,
		),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminAPIKey: a.cfg.Server.AdminAPIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Duration(a.cfg.Server.RateWindowSec) * time.Second,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startOracle launches the GitHub PR poller. Does nothing when the oracle is
// disabled in config.
func (a *App) startOracle(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Oracle.Enabled {
		a.logger.InfoContext(ctx, "oracle disabled")
		return
	}

	client := github.NewClient(a.cfg.Oracle.BaseURL, a.cfg.Oracle.Token)
	poller := github.NewPoller(
		client,
		svcs.markets,
		deps.LockManager,
		common.HexToAddress(a.cfg.Market.Operator),
		github.PollerConfig{
			Interval:    a.cfg.Oracle.PollInterval.Duration,
			Parallelism: a.cfg.Oracle.Parallelism,
		},
		a.logger,
	)
	g.Go(func() error {
		return poller.Run(ctx)
	})
}

// startArchiveLoop periodically exports old resolved markets to blob storage.
// Does nothing when archiving or S3 is disabled.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = time.Hour
	}
	retention := retentionCutoff(a.cfg.Archive)

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				before := time.Now().UTC().Add(-retention)
				n, err := deps.Archiver.ArchiveResolved(ctx, before)
				if err != nil {
					a.logger.ErrorContext(ctx, "settlement archive pass failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if n > 0 {
					a.logger.InfoContext(ctx, "archived settled markets",
						slog.Int64("markets", n),
					)
				}
			}
		}
	})
}

func retentionCutoff(cfg config.ArchiveConfig) time.Duration {
	days := cfg.RetentionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}
