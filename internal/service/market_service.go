package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/market"
	"github.com/pullmarket/pullmarket/internal/notify"
)

// MarketService fronts the prediction-market engine with persistence,
// caching, auditing, notifications, and event fan-out.
type MarketService struct {
	engine    *market.Engine
	markets   domain.MarketStore
	positions domain.PositionStore
	cache     domain.MarketCache
	audit     domain.AuditStore
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewMarketService creates a MarketService with all dependencies. The
// notifier may be nil when no channels are configured.
func NewMarketService(
	engine *market.Engine,
	markets domain.MarketStore,
	positions domain.PositionStore,
	cache domain.MarketCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		engine:    engine,
		markets:   markets,
		positions: positions,
		cache:     cache,
		audit:     audit,
		bus:       bus,
		notifier:  notifier,
		logger:    logger,
	}
}

// Engine exposes the underlying market engine for the oracle and archiver.
func (s *MarketService) Engine() *market.Engine { return s.engine }

// CreateMarket opens betting on (repository, prNumber).
func (s *MarketService) CreateMarket(ctx context.Context, repository string, prNumber uint64) (domain.MarketInfo, error) {
	m, err := s.engine.CreateMarket(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_service: create %s#%d: %w", repository, prNumber, err)
	}

	s.writeThrough(ctx, m)
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventMarketCreated, map[string]any{
		"key":        m.Key.Hex(),
		"repository": m.Repository,
		"pr_number":  m.PRNumber,
	}))
	s.logger.InfoContext(ctx, "market created",
		slog.String("repository", repository),
		slog.Uint64("pr_number", prNumber),
	)
	return m, nil
}

// TakePosition stakes payment wei on one side of a market.
func (s *MarketService) TakePosition(ctx context.Context, repository string, prNumber uint64, bettor common.Address, payment *big.Int, yes bool) (domain.Position, error) {
	var pos domain.Position
	var err error
	if yes {
		pos, err = s.engine.TakeYesPosition(repository, prNumber, bettor, payment)
	} else {
		pos, err = s.engine.TakeNoPosition(repository, prNumber, bettor, payment)
	}
	if err != nil {
		return domain.Position{}, err
	}

	if storeErr := s.positions.Upsert(ctx, pos); storeErr != nil {
		s.logger.ErrorContext(ctx, "position write-through failed",
			slog.String("key", pos.MarketKey.Hex()),
			slog.String("error", storeErr.Error()),
		)
	}
	if m, mErr := s.engine.GetMarket(repository, prNumber); mErr == nil {
		s.writeThrough(ctx, m)
	}

	side := "no"
	if yes {
		side = "yes"
	}
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventPositionTaken, map[string]any{
		"key":     pos.MarketKey.Hex(),
		"bettor":  bettor.Hex(),
		"side":    side,
		"payment": payment.String(),
	}))
	return pos, nil
}

// ResolveMarket fixes the outcome of a market. Operator only.
func (s *MarketService) ResolveMarket(ctx context.Context, caller common.Address, repository string, prNumber uint64, outcome bool) (domain.MarketInfo, error) {
	m, err := s.engine.ResolveMarket(caller, repository, prNumber, outcome)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	s.writeThrough(ctx, m)
	auditLog(ctx, s.audit, s.logger, domain.EventMarketResolved, map[string]any{
		"key":        m.Key.Hex(),
		"repository": m.Repository,
		"pr_number":  m.PRNumber,
		"outcome":    outcome,
		"yes_pool":   m.YesPool.String(),
		"no_pool":    m.NoPool.String(),
	})
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventMarketResolved, map[string]any{
		"key":        m.Key.Hex(),
		"repository": m.Repository,
		"pr_number":  m.PRNumber,
		"outcome":    outcome,
	}))

	if s.notifier != nil {
		outcomeWord := "NO"
		if outcome {
			outcomeWord = "YES"
		}
		pot := new(big.Int).Add(m.YesPool, m.NoPool)
		if err := s.notifier.Notify(ctx, domain.EventMarketResolved,
			fmt.Sprintf("Market resolved: %s#%d", repository, prNumber),
			fmt.Sprintf("Outcome %s, pot %s wei", outcomeWord, pot.String()),
		); err != nil {
			s.logger.WarnContext(ctx, "resolution notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("repository", repository),
		slog.Uint64("pr_number", prNumber),
		slog.Bool("outcome", outcome),
	)
	return m, nil
}

// ClaimWinnings pays the caller their settlement share.
func (s *MarketService) ClaimWinnings(ctx context.Context, repository string, prNumber uint64, caller common.Address) (*big.Int, error) {
	payout, err := s.engine.ClaimWinnings(repository, prNumber, caller)
	if err != nil {
		return nil, err
	}

	if pos, posErr := s.engine.GetUserPosition(repository, prNumber, caller); posErr == nil {
		if storeErr := s.positions.Upsert(ctx, pos); storeErr != nil {
			s.logger.ErrorContext(ctx, "position write-through failed",
				slog.String("key", pos.MarketKey.Hex()),
				slog.String("error", storeErr.Error()),
			)
		}
	}
	if m, mErr := s.engine.GetMarket(repository, prNumber); mErr == nil {
		s.writeThrough(ctx, m)
	}

	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventWinningsClaimed, map[string]any{
		"repository": repository,
		"pr_number":  prNumber,
		"caller":     caller.Hex(),
		"payout":     payout.String(),
	}))
	return payout, nil
}

// GetMarket returns a market snapshot, preferring the cache.
func (s *MarketService) GetMarket(ctx context.Context, repository string, prNumber uint64) (domain.MarketInfo, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, err
	}
	if m, cacheErr := s.cache.Get(ctx, key); cacheErr == nil {
		return m, nil
	}

	m, err := s.engine.GetMarket(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, err
	}
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market cache set failed",
			slog.String("key", key.Hex()),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// GetUserPosition returns addr's position in a market.
func (s *MarketService) GetUserPosition(_ context.Context, repository string, prNumber uint64, addr common.Address) (domain.Position, error) {
	return s.engine.GetUserPosition(repository, prNumber, addr)
}

// CalculatePotentialWinnings returns hypothetical payouts under each outcome.
func (s *MarketService) CalculatePotentialWinnings(_ context.Context, repository string, prNumber uint64, addr common.Address) (domain.PotentialWinnings, error) {
	return s.engine.CalculatePotentialWinnings(repository, prNumber, addr)
}

// ActiveMarkets returns all unresolved markets in creation order.
func (s *MarketService) ActiveMarkets() []domain.MarketInfo {
	return s.engine.ActiveMarkets()
}

// ResolvedMarkets returns all resolved markets in creation order.
func (s *MarketService) ResolvedMarkets() []domain.MarketInfo {
	return s.engine.ResolvedMarkets()
}

// Positions returns every position in a market ordered by address.
func (s *MarketService) Positions(repository string, prNumber uint64) ([]domain.Position, error) {
	return s.engine.Positions(repository, prNumber)
}

// writeThrough persists a market snapshot and invalidates its cache entry.
func (s *MarketService) writeThrough(ctx context.Context, m domain.MarketInfo) {
	if err := s.markets.Upsert(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "market write-through failed",
			slog.String("key", m.Key.Hex()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.cache.Invalidate(ctx, m.Key); err != nil {
		s.logger.WarnContext(ctx, "market cache invalidate failed",
			slog.String("key", m.Key.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
