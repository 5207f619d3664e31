package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// ProjectStore implements domain.ProjectStore using PostgreSQL.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore creates a ProjectStore backed by the given pool.
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

const projectCols = `key, token_id, name, symbol, github_owner, github_repo,
	creator, is_active, created_at`

// Upsert inserts or updates a registry entry.
func (s *ProjectStore) Upsert(ctx context.Context, p domain.Project) error {
	const query = `
		INSERT INTO projects (
			key, token_id, name, symbol, github_owner, github_repo,
			creator, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (key) DO UPDATE SET
			name       = EXCLUDED.name,
			symbol     = EXCLUDED.symbol,
			is_active  = EXCLUDED.is_active,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.Key.Hex(), p.TokenID.Hex(), p.Name, p.Symbol,
		p.GithubOwner, p.GithubRepo,
		p.Creator.Hex(), p.IsActive, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert project %s/%s: %w", p.GithubOwner, p.GithubRepo, err)
	}
	return nil
}

// GetByKey retrieves a project by its canonical key.
func (s *ProjectStore) GetByKey(ctx context.Context, key common.Hash) (domain.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE key = $1`, key.Hex())
	return scanProject(row)
}

// GetByToken retrieves a project by its token address.
func (s *ProjectStore) GetByToken(ctx context.Context, token common.Address) (domain.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE token_id = $1`, token.Hex())
	return scanProject(row)
}

// ListByCreator returns every project created by addr, oldest first.
func (s *ProjectStore) ListByCreator(ctx context.Context, creator common.Address) ([]domain.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects WHERE creator = $1 ORDER BY created_at`,
		creator.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list projects by creator: %w", err)
	}
	return collectProjects(rows)
}

// ListByOwner returns every project under a GitHub owner, oldest first.
func (s *ProjectStore) ListByOwner(ctx context.Context, githubOwner string) ([]domain.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectCols+` FROM projects WHERE github_owner = $1 ORDER BY created_at`,
		githubOwner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list projects by owner: %w", err)
	}
	return collectProjects(rows)
}

// List returns a page of projects in creation order.
func (s *ProjectStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects ORDER BY created_at`
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
		return nil, fmt.Errorf("postgres: list projects: %w", err)
	}
	return collectProjects(rows)
}

// Count returns the total number of projects.
func (s *ProjectStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count projects: %w", err)
	}
	return n, nil
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	var key, tokenID, creator string
	err := row.Scan(&key, &tokenID, &p.Name, &p.Symbol,
		&p.GithubOwner, &p.GithubRepo, &creator, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("postgres: scan project: %w", err)
	}
	p.Key = common.HexToHash(key)
	p.TokenID = common.HexToAddress(tokenID)
	p.Creator = common.HexToAddress(creator)
	return p, nil
}

func collectProjects(rows pgx.Rows) ([]domain.Project, error) {
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: project rows: %w", err)
	}
	return out, nil
}
