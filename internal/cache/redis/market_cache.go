package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// Market snapshots change on every bet, so the TTL is short; the engine is
// always authoritative.
const marketTTL = 30 * time.Second

// MarketCache implements domain.MarketCache using JSON values keyed by the
// market's canonical hash.
//
// Key schema:
//
//	pm:market:{key} - JSON-serialized domain.MarketInfo
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketCacheKey(key common.Hash) string { return "pm:market:" + key.Hex() }

// Set stores a market snapshot with a 30-second TTL.
func (mc *MarketCache) Set(ctx context.Context, m domain.MarketInfo) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.Key.Hex(), err)
	}
	if err := mc.rdb.Set(ctx, marketCacheKey(m.Key), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.Key.Hex(), err)
	}
	return nil
}

// Get retrieves a market snapshot by its canonical key. It returns
// domain.ErrNotFound on a cache miss.
func (mc *MarketCache) Get(ctx context.Context, key common.Hash) (domain.MarketInfo, error) {
	data, err := mc.rdb.Get(ctx, marketCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("redis: get market %s: %w", key.Hex(), err)
	}

	var m domain.MarketInfo
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("redis: unmarshal market %s: %w", key.Hex(), err)
	}
	m.IsActive = !m.Resolved
	return m, nil
}

// Invalidate drops a market snapshot from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, key common.Hash) error {
	if err := mc.rdb.Del(ctx, marketCacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", key.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
