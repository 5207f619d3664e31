package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `market_key, address, yes_tokens, no_tokens, has_claimed`

// Upsert inserts or updates a bettor's position in one market.
func (s *PositionStore) Upsert(ctx context.Context, pos domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_key, address, yes_tokens, no_tokens, has_claimed, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (market_key, address) DO UPDATE SET
			yes_tokens  = EXCLUDED.yes_tokens,
			no_tokens   = EXCLUDED.no_tokens,
			has_claimed = EXCLUDED.has_claimed,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		pos.MarketKey.Hex(), pos.Address.Hex(),
		pos.YesTokens.String(), pos.NoTokens.String(), pos.HasClaimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", pos.MarketKey.Hex(), pos.Address.Hex(), err)
	}
	return nil
}

// Get retrieves one bettor's position in one market.
func (s *PositionStore) Get(ctx context.Context, key common.Hash, addr common.Address) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_key = $1 AND address = $2`,
		key.Hex(), addr.Hex())
	return scanPosition(row)
}

// ListByMarket returns every position in a market ordered by address.
func (s *PositionStore) ListByMarket(ctx context.Context, key common.Hash) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_key = $1 ORDER BY address`,
		key.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by market: %w", err)
	}
	return collectPositions(rows)
}

// ListByAddress returns every position held by addr across markets.
func (s *PositionStore) ListByAddress(ctx context.Context, addr common.Address) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE address = $1 ORDER BY market_key`,
		addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by address: %w", err)
	}
	return collectPositions(rows)
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var pos domain.Position
	var key, addr, yesTokens, noTokens string
	err := row.Scan(&key, &addr, &yesTokens, &noTokens, &pos.HasClaimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: scan position: %w", err)
	}

	pos.MarketKey = common.HexToHash(key)
	pos.Address = common.HexToAddress(addr)
	var ok bool
	if pos.YesTokens, ok = new(big.Int).SetString(yesTokens, 10); !ok {
		return domain.Position{}, fmt.Errorf("postgres: position %s: bad numeric %q", key, yesTokens)
	}
	if pos.NoTokens, ok = new(big.Int).SetString(noTokens, 10); !ok {
		return domain.Position{}, fmt.Errorf("postgres: position %s: bad numeric %q", key, noTokens)
	}
	return pos, nil
}

func collectPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var out []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return out, nil
}
