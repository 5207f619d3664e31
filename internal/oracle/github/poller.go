package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/service"
)

// lockTTL must outlast one full poll cycle; the lock is released explicitly
// at the end of each cycle anyway.
const lockTTL = 2 * time.Minute

// Poller walks the active markets on an interval and resolves any whose PR
// has reached a terminal state. A distributed lock keeps polling on a single
// replica.
type Poller struct {
	client   *Client
	markets  *service.MarketService
	locks    domain.LockManager
	operator common.Address
	interval time.Duration
	parallel int
	logger   *slog.Logger
}

// PollerConfig holds Poller construction parameters.
type PollerConfig struct {
	Interval    time.Duration // default 30s
	Parallelism int           // concurrent PR lookups, default 4
}

// NewPoller creates a Poller resolving markets as cfg.Operator.
func NewPoller(
	client *Client,
	markets *service.MarketService,
	locks domain.LockManager,
	operator common.Address,
	cfg PollerConfig,
	logger *slog.Logger,
) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	parallel := cfg.Parallelism
	if parallel <= 0 {
		parallel = 4
	}
	return &Poller{
		client:   client,
		markets:  markets,
		locks:    locks,
		operator: operator,
		interval: interval,
		parallel: parallel,
		logger:   logger.With(slog.String("component", "oracle")),
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "oracle poller started",
		slog.Duration("interval", p.interval),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one cycle under the distributed lock.
func (p *Poller) poll(ctx context.Context) {
	if p.locks != nil {
		unlock, err := p.locks.Acquire(ctx, "oracle:poll", lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return
		}
		if err != nil {
			p.logger.WarnContext(ctx, "poll lock acquire failed",
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()
	}

	active := p.markets.ActiveMarkets()
	if len(active) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for _, m := range active {
		m := m
		g.Go(func() error {
			p.checkMarket(gctx, m)
			return nil
		})
	}
	_ = g.Wait()
}

// checkMarket resolves one market when its PR is terminal. Lookup failures
// are logged and retried next cycle.
func (p *Poller) checkMarket(ctx context.Context, m domain.MarketInfo) {
	pr, err := p.client.GetPullRequest(ctx, m.Repository, m.PRNumber)
	if err != nil {
		p.logger.WarnContext(ctx, "pr lookup failed",
			slog.String("repository", m.Repository),
			slog.Uint64("pr_number", m.PRNumber),
			slog.String("error", err.Error()),
		)
		return
	}
	if pr.Open {
		return
	}

	// Closed: merged resolves YES, abandoned resolves NO.
	if _, err := p.markets.ResolveMarket(ctx, p.operator, m.Repository, m.PRNumber, pr.Merged); err != nil {
		// Lost a race with a manual resolution; nothing to do.
		if errors.Is(err, domain.ErrAlreadyResolved) {
			return
		}
		p.logger.ErrorContext(ctx, "market resolution failed",
			slog.String("repository", m.Repository),
			slog.Uint64("pr_number", m.PRNumber),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.InfoContext(ctx, "market resolved from pr state",
		slog.String("repository", m.Repository),
		slog.Uint64("pr_number", m.PRNumber),
		slog.Bool("merged", pr.Merged),
	)
}
