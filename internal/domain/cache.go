package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ProjectCache caches registry entries keyed by project key.
type ProjectCache interface {
	Set(ctx context.Context, p Project) error
	Get(ctx context.Context, key common.Hash) (Project, error)
	Invalidate(ctx context.Context, key common.Hash) error
}

// MarketCache caches market snapshots keyed by market key.
type MarketCache interface {
	Set(ctx context.Context, m MarketInfo) error
	Get(ctx context.Context, key common.Hash) (MarketInfo, error)
	Invalidate(ctx context.Context, key common.Hash) error
}

// StatsCache caches per-token minting statistics for hot read paths.
type StatsCache interface {
	SetStats(ctx context.Context, token common.Address, stats MintingStats) error
	GetStats(ctx context.Context, token common.Address) (MintingStats, error)
}
