package redis

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/pullmarket/pullmarket/internal/domain"
)

const statsTTL = 15 * time.Second

// StatsCache implements domain.StatsCache using Redis hashes. Each token's
// minting statistics live at "stats:{token}" with one decimal-string field
// per amount, so readers never round-trip through floats.
type StatsCache struct {
	rdb *redis.Client
}

// NewStatsCache creates a StatsCache backed by the given Client.
func NewStatsCache(c *Client) *StatsCache {
	return &StatsCache{rdb: c.Underlying()}
}

func statsKey(token common.Address) string { return "stats:" + token.Hex() }

// SetStats stores a token's minting statistics with a short TTL.
func (sc *StatsCache) SetStats(ctx context.Context, token common.Address, stats domain.MintingStats) error {
	fields := map[string]any{
		"current_price":      stats.CurrentPrice.String(),
		"total_minted":       stats.TotalMinted.String(),
		"total_burned":       stats.TotalBurned.String(),
		"circulating_supply": stats.CirculatingSupply.String(),
		"remaining_supply":   stats.RemainingSupply.String(),
	}

	key := statsKey(token)
	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, statsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set stats %s: %w", token.Hex(), err)
	}
	return nil
}

// GetStats retrieves a token's minting statistics. It returns
// domain.ErrNotFound on a cache miss.
func (sc *StatsCache) GetStats(ctx context.Context, token common.Address) (domain.MintingStats, error) {
	vals, err := sc.rdb.HGetAll(ctx, statsKey(token)).Result()
	if err != nil {
		return domain.MintingStats{}, fmt.Errorf("redis: get stats %s: %w", token.Hex(), err)
	}
	if len(vals) == 0 {
		return domain.MintingStats{}, domain.ErrNotFound
	}

	var stats domain.MintingStats
	for _, f := range []struct {
		dst  **big.Int
		name string
	}{
		{&stats.CurrentPrice, "current_price"},
		{&stats.TotalMinted, "total_minted"},
		{&stats.TotalBurned, "total_burned"},
		{&stats.CirculatingSupply, "circulating_supply"},
		{&stats.RemainingSupply, "remaining_supply"},
	} {
		raw, ok := vals[f.name]
		if !ok {
			return domain.MintingStats{}, domain.ErrNotFound
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return domain.MintingStats{}, fmt.Errorf("redis: stats %s: bad field %s=%q", token.Hex(), f.name, raw)
		}
		*f.dst = v
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.StatsCache = (*StatsCache)(nil)
