package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ProjectStore persists registry entries.
type ProjectStore interface {
	Upsert(ctx context.Context, p Project) error
	GetByKey(ctx context.Context, key common.Hash) (Project, error)
	GetByToken(ctx context.Context, token common.Address) (Project, error)
	ListByCreator(ctx context.Context, creator common.Address) ([]Project, error)
	ListByOwner(ctx context.Context, githubOwner string) ([]Project, error)
	List(ctx context.Context, opts ListOpts) ([]Project, error)
	Count(ctx context.Context) (int64, error)
}

// MarketStore persists prediction market snapshots.
type MarketStore interface {
	Upsert(ctx context.Context, m MarketInfo) error
	GetByKey(ctx context.Context, key common.Hash) (MarketInfo, error)
	ListActive(ctx context.Context, opts ListOpts) ([]MarketInfo, error)
	ListResolvedBefore(ctx context.Context, before time.Time) ([]MarketInfo, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists bettor positions.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Get(ctx context.Context, key common.Hash, addr common.Address) (Position, error)
	ListByMarket(ctx context.Context, key common.Hash) ([]Position, error)
	ListByAddress(ctx context.Context, addr common.Address) ([]Position, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
