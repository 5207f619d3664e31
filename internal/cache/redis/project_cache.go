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

const projectTTL = 10 * time.Minute

// ProjectCache implements domain.ProjectCache using JSON values keyed by the
// project's canonical hash.
//
// Key schema:
//
//	project:{key} - JSON-serialized domain.Project
type ProjectCache struct {
	rdb *redis.Client
}

// NewProjectCache creates a ProjectCache backed by the given Client.
func NewProjectCache(c *Client) *ProjectCache {
	return &ProjectCache{rdb: c.Underlying()}
}

func projectKey(key common.Hash) string { return "project:" + key.Hex() }

// Set stores a project with a 10-minute TTL.
func (pc *ProjectCache) Set(ctx context.Context, p domain.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal project %s: %w", p.Key.Hex(), err)
	}
	if err := pc.rdb.Set(ctx, projectKey(p.Key), data, projectTTL).Err(); err != nil {
		return fmt.Errorf("redis: set project %s: %w", p.Key.Hex(), err)
	}
	return nil
}

// Get retrieves a project by its canonical key. It returns domain.ErrNotFound
// on a cache miss.
func (pc *ProjectCache) Get(ctx context.Context, key common.Hash) (domain.Project, error) {
	data, err := pc.rdb.Get(ctx, projectKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("redis: get project %s: %w", key.Hex(), err)
	}

	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Project{}, fmt.Errorf("redis: unmarshal project %s: %w", key.Hex(), err)
	}
	return p, nil
}

// Invalidate drops a project from the cache.
func (pc *ProjectCache) Invalidate(ctx context.Context, key common.Hash) error {
	if err := pc.rdb.Del(ctx, projectKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate project %s: %w", key.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProjectCache = (*ProjectCache)(nil)
