package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/registry"
	"github.com/pullmarket/pullmarket/internal/token"
)

// TokenService fronts the per-project token engines: curve quotes, mints,
// redemptions, burns, and transfers, with cached stats and event fan-out.
type TokenService struct {
	registry *registry.Registry
	stats    domain.StatsCache
	audit    domain.AuditStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewTokenService creates a TokenService with all dependencies.
func NewTokenService(
	reg *registry.Registry,
	stats domain.StatsCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		registry: reg,
		stats:    stats,
		audit:    audit,
		bus:      bus,
		logger:   logger,
	}
}

func (s *TokenService) lookup(id common.Address) (*token.Token, error) {
	tok, err := s.registry.GetToken(id)
	if err != nil {
		return nil, fmt.Errorf("token_service: lookup %s: %w", id.Hex(), err)
	}
	return tok, nil
}

// CalculateMintCost quotes the exact wei cost of minting amount base units.
func (s *TokenService) CalculateMintCost(id common.Address, amount *big.Int) (*big.Int, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return tok.CalculateMintCost(amount)
}

// CalculateRedemptionValue quotes the wei returned for burning amount base
// units at the current spot price minus the burn fee.
func (s *TokenService) CalculateRedemptionValue(id common.Address, amount *big.Int) (*big.Int, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return tok.CalculateRedemptionValue(amount)
}

// MintTokens buys amount base units for payment wei and fans the result out.
func (s *TokenService) MintTokens(ctx context.Context, id common.Address, buyer common.Address, amount, payment *big.Int) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := tok.MintTokens(buyer, amount, payment); err != nil {
		return err
	}

	s.refreshStats(ctx, tok)
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventTokensMinted, map[string]any{
		"token":   id.Hex(),
		"buyer":   buyer.Hex(),
		"amount":  amount.String(),
		"payment": payment.String(),
	}))
	s.logger.InfoContext(ctx, "tokens minted",
		slog.String("token", id.Hex()),
		slog.String("buyer", buyer.Hex()),
		slog.String("amount", amount.String()),
	)
	return nil
}

// Redeem burns amount base units and pays the caller the redemption value.
func (s *TokenService) Redeem(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) (*big.Int, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	value, err := tok.Redeem(caller, amount)
	if err != nil {
		return nil, err
	}

	s.refreshStats(ctx, tok)
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventTokensRedeemed, map[string]any{
		"token":  id.Hex(),
		"caller": caller.Hex(),
		"amount": amount.String(),
		"value":  value.String(),
	}))
	return value, nil
}

// Burn destroys amount base units with no payout.
func (s *TokenService) Burn(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := tok.Burn(caller, amount); err != nil {
		return err
	}

	s.refreshStats(ctx, tok)
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventTokensBurned, map[string]any{
		"token":  id.Hex(),
		"caller": caller.Hex(),
		"amount": amount.String(),
	}))
	return nil
}

// BuybackBurn destroys tokens previously bought back to the reserve. Token
// owner only.
func (s *TokenService) BuybackBurn(ctx context.Context, id common.Address, caller common.Address, amount *big.Int) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := tok.BuybackBurn(caller, amount); err != nil {
		return err
	}

	s.refreshStats(ctx, tok)
	auditLog(ctx, s.audit, s.logger, domain.EventTokensBurned, map[string]any{
		"token":   id.Hex(),
		"caller":  caller.Hex(),
		"amount":  amount.String(),
		"buyback": true,
	})
	return nil
}

// Transfer moves amount base units between holders.
func (s *TokenService) Transfer(_ context.Context, id common.Address, from, to common.Address, amount *big.Int) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	return tok.Transfer(from, to, amount)
}

// BalanceOf returns a holder's token balance.
func (s *TokenService) BalanceOf(id common.Address, holder common.Address) (*big.Int, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return tok.BalanceOf(holder), nil
}

// MintingStats returns curve statistics, preferring the cache.
func (s *TokenService) MintingStats(ctx context.Context, id common.Address) (domain.MintingStats, error) {
	if s.stats != nil {
		if cached, err := s.stats.GetStats(ctx, id); err == nil {
			return cached, nil
		}
	}

	tok, err := s.lookup(id)
	if err != nil {
		return domain.MintingStats{}, err
	}
	stats := tok.MintingStats()
	s.cacheStats(ctx, id, stats)
	return stats, nil
}

// Info returns the full token view: identity, curve stats, reserve.
func (s *TokenService) Info(id common.Address) (domain.TokenInfo, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	return tok.Info(), nil
}

// RepositoryInfo returns the GitHub identity of a token.
func (s *TokenService) RepositoryInfo(id common.Address) (domain.RepositoryInfo, error) {
	tok, err := s.lookup(id)
	if err != nil {
		return domain.RepositoryInfo{}, err
	}
	return tok.RepositoryInfo(), nil
}

// UpdateTreasury points the token's treasury share at a new address. Token
// owner only.
func (s *TokenService) UpdateTreasury(ctx context.Context, id common.Address, caller, addr common.Address) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := tok.UpdateTreasury(caller, addr); err != nil {
		return err
	}
	auditLog(ctx, s.audit, s.logger, "token.treasury_updated", map[string]any{
		"token":    id.Hex(),
		"caller":   caller.Hex(),
		"treasury": addr.Hex(),
	})
	return nil
}

// UpdateRewardPool points the token's reward-pool share at a new address.
// Token owner only.
func (s *TokenService) UpdateRewardPool(ctx context.Context, id common.Address, caller, addr common.Address) error {
	tok, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := tok.UpdateRewardPool(caller, addr); err != nil {
		return err
	}
	auditLog(ctx, s.audit, s.logger, "token.reward_pool_updated", map[string]any{
		"token":       id.Hex(),
		"caller":      caller.Hex(),
		"reward_pool": addr.Hex(),
	})
	return nil
}

func (s *TokenService) refreshStats(ctx context.Context, tok *token.Token) {
	s.cacheStats(ctx, tok.ID(), tok.MintingStats())
}

func (s *TokenService) cacheStats(ctx context.Context, id common.Address, stats domain.MintingStats) {
	if s.stats == nil {
		return
	}
	if err := s.stats.SetStats(ctx, id, stats); err != nil {
		s.logger.WarnContext(ctx, "stats cache set failed",
			slog.String("token", id.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
