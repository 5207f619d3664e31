package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Wei amounts
// travel as NUMERIC(78,0) and are scanned through decimal strings so no
// precision is ever lost.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `key, repository, pr_number, yes_pool, no_pool,
	total_yes_tokens, total_no_tokens, total_claimed,
	resolved, outcome, created_at, resolved_at`

// Upsert inserts or updates a market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.MarketInfo) error {
	const query = `
		INSERT INTO markets (
			key, repository, pr_number, yes_pool, no_pool,
			total_yes_tokens, total_no_tokens, total_claimed,
			resolved, outcome, created_at, resolved_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (key) DO UPDATE SET
			yes_pool         = EXCLUDED.yes_pool,
			no_pool          = EXCLUDED.no_pool,
			total_yes_tokens = EXCLUDED.total_yes_tokens,
			total_no_tokens  = EXCLUDED.total_no_tokens,
			total_claimed    = EXCLUDED.total_claimed,
			resolved         = EXCLUDED.resolved,
			outcome          = EXCLUDED.outcome,
			resolved_at      = EXCLUDED.resolved_at,
			updated_at       = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.Key.Hex(), m.Repository, int64(m.PRNumber),
		m.YesPool.String(), m.NoPool.String(),
		m.TotalYesTokens.String(), m.TotalNoTokens.String(), m.TotalClaimed.String(),
		m.Resolved, m.Outcome, m.CreatedAt, m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s#%d: %w", m.Repository, m.PRNumber, err)
	}
	return nil
}

// GetByKey retrieves a market by its canonical key.
func (s *MarketStore) GetByKey(ctx context.Context, key common.Hash) (domain.MarketInfo, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE key = $1`, key.Hex())
	return scanMarket(row)
}

// ListActive returns a page of unresolved markets in creation order.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.MarketInfo, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE resolved = FALSE ORDER BY created_at`
	args := []any{}
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	return collectMarkets(rows)
}

// ListResolvedBefore returns every market resolved strictly before the cutoff.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.MarketInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE resolved = TRUE AND resolved_at < $1
		 ORDER BY resolved_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	return collectMarkets(rows)
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func scanMarket(row pgx.Row) (domain.MarketInfo, error) {
	var m domain.MarketInfo
	var key string
	var prNumber int64
	var yesPool, noPool, totalYes, totalNo, totalClaimed string
	err := row.Scan(&key, &m.Repository, &prNumber,
		&yesPool, &noPool, &totalYes, &totalNo, &totalClaimed,
		&m.Resolved, &m.Outcome, &m.CreatedAt, &m.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("postgres: scan market: %w", err)
	}

	m.Key = common.HexToHash(key)
	m.PRNumber = uint64(prNumber)
	m.IsActive = !m.Resolved
	for _, f := range []struct {
		dst **big.Int
		raw string
	}{
		{&m.YesPool, yesPool},
		{&m.NoPool, noPool},
		{&m.TotalYesTokens, totalYes},
		{&m.TotalNoTokens, totalNo},
		{&m.TotalClaimed, totalClaimed},
	} {
		v, ok := new(big.Int).SetString(f.raw, 10)
		if !ok {
			return domain.MarketInfo{}, fmt.Errorf("postgres: market %s: bad numeric %q", key, f.raw)
		}
		*f.dst = v
	}
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.MarketInfo, error) {
	defer rows.Close()
	var out []domain.MarketInfo
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return out, nil
}
