package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/registry"
)

// RegistryService fronts the project registry engine with persistence,
// caching, auditing, and event fan-out.
type RegistryService struct {
	engine   *registry.Registry
	projects domain.ProjectStore
	cache    domain.ProjectCache
	audit    domain.AuditStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewRegistryService creates a RegistryService with all dependencies.
func NewRegistryService(
	engine *registry.Registry,
	projects domain.ProjectStore,
	cache domain.ProjectCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		engine:   engine,
		projects: projects,
		cache:    cache,
		audit:    audit,
		bus:      bus,
		logger:   logger,
	}
}

// Engine exposes the underlying registry for callers that need direct token
// access (the token service, the oracle).
func (s *RegistryService) Engine() *registry.Registry { return s.engine }

// CreateProjectCoin registers (owner, repo) and deploys its token, then
// writes the entry through to the store and announces it.
func (s *RegistryService) CreateProjectCoin(ctx context.Context, caller common.Address, p registry.CreateParams, payment *big.Int) (domain.Project, error) {
	project, err := s.engine.CreateProjectCoin(caller, p, payment)
	if err != nil {
		return domain.Project{}, fmt.Errorf("registry_service: create: %w", err)
	}

	if err := s.projects.Upsert(ctx, project); err != nil {
		s.logger.ErrorContext(ctx, "project write-through failed",
			slog.String("repo", project.RepositoryURL()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.cache.Set(ctx, project); err != nil {
		s.logger.WarnContext(ctx, "project cache set failed",
			slog.String("key", project.Key.Hex()),
			slog.String("error", err.Error()),
		)
	}

	auditLog(ctx, s.audit, s.logger, domain.EventProjectCreated, map[string]any{
		"key":      project.Key.Hex(),
		"token":    project.TokenID.Hex(),
		"repo":     project.GithubOwner + "/" + project.GithubRepo,
		"creator":  project.Creator.Hex(),
		"payment":  payment.String(),
	})
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventProjectCreated, map[string]any{
		"key":     project.Key.Hex(),
		"token":   project.TokenID.Hex(),
		"repo":    project.GithubOwner + "/" + project.GithubRepo,
		"creator": project.Creator.Hex(),
	}))

	s.logger.InfoContext(ctx, "project coin created",
		slog.String("repo", project.GithubOwner+"/"+project.GithubRepo),
		slog.String("token", project.TokenID.Hex()),
	)
	return project, nil
}

// GetProjectByRepo returns the registry entry for (owner, repo), preferring
// the cache.
func (s *RegistryService) GetProjectByRepo(ctx context.Context, githubOwner, githubRepo string) (domain.Project, error) {
	key, err := domain.ProjectKey(githubOwner, githubRepo)
	if err != nil {
		return domain.Project{}, err
	}
	if p, err := s.cache.Get(ctx, key); err == nil {
		return p, nil
	}

	tok, err := s.engine.GetTokenByRepo(githubOwner, githubRepo)
	if err != nil {
		return domain.Project{}, err
	}
	p, err := s.engine.GetProjectInfo(tok.ID())
	if err != nil {
		return domain.Project{}, err
	}
	if cacheErr := s.cache.Set(ctx, p); cacheErr != nil {
		s.logger.WarnContext(ctx, "project cache set failed",
			slog.String("key", key.Hex()),
			slog.String("error", cacheErr.Error()),
		)
	}
	return p, nil
}

// GetProjectInfo returns the registry entry for a token address.
func (s *RegistryService) GetProjectInfo(_ context.Context, token common.Address) (domain.Project, error) {
	return s.engine.GetProjectInfo(token)
}

// HasToken reports whether (owner, repo) is registered.
func (s *RegistryService) HasToken(githubOwner, githubRepo string) bool {
	return s.engine.HasToken(githubOwner, githubRepo)
}

// ListProjects returns a page of projects plus the total count.
func (s *RegistryService) ListProjects(offset, limit int) ([]domain.Project, int) {
	return s.engine.GetAllProjects(offset, limit)
}

// SearchByOwner returns every project under a GitHub owner.
func (s *RegistryService) SearchByOwner(githubOwner string) []domain.Project {
	return s.engine.SearchByOwner(githubOwner)
}

// GetTokensByCreator returns the token addresses created by addr.
func (s *RegistryService) GetTokensByCreator(addr common.Address) []common.Address {
	return s.engine.GetTokensByCreator(addr)
}

// CreationFee returns the current creation fee in wei.
func (s *RegistryService) CreationFee() *big.Int { return s.engine.CreationFee() }

// TotalTokens returns the number of registered projects.
func (s *RegistryService) TotalTokens() int { return s.engine.TotalTokens() }

// UpdateCreationFee changes the creation fee. Registry owner only.
func (s *RegistryService) UpdateCreationFee(ctx context.Context, caller common.Address, fee *big.Int) error {
	if err := s.engine.UpdateCreationFee(caller, fee); err != nil {
		return err
	}
	auditLog(ctx, s.audit, s.logger, "registry.fee_updated", map[string]any{
		"caller": caller.Hex(),
		"fee":    fee.String(),
	})
	return nil
}

// SetCreationPaused toggles the creation gate. Registry owner only.
func (s *RegistryService) SetCreationPaused(ctx context.Context, caller common.Address, paused bool) error {
	if err := s.engine.SetCreationPaused(caller, paused); err != nil {
		return err
	}
	auditLog(ctx, s.audit, s.logger, "registry.creation_paused", map[string]any{
		"caller": caller.Hex(),
		"paused": paused,
	})
	return nil
}

// DeactivateProject hides a project from discovery. Registry owner only.
func (s *RegistryService) DeactivateProject(ctx context.Context, caller common.Address, token common.Address, reason string) error {
	if err := s.engine.DeactivateProject(caller, token, reason); err != nil {
		return err
	}

	project, err := s.engine.GetProjectInfo(token)
	if err == nil {
		if storeErr := s.projects.Upsert(ctx, project); storeErr != nil {
			s.logger.ErrorContext(ctx, "project write-through failed",
				slog.String("token", token.Hex()),
				slog.String("error", storeErr.Error()),
			)
		}
		if cacheErr := s.cache.Invalidate(ctx, project.Key); cacheErr != nil {
			s.logger.WarnContext(ctx, "project cache invalidate failed",
				slog.String("key", project.Key.Hex()),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	auditLog(ctx, s.audit, s.logger, domain.EventProjectDeactivated, map[string]any{
		"caller": caller.Hex(),
		"token":  token.Hex(),
		"reason": reason,
	})
	publishEvent(ctx, s.bus, s.logger, domain.NewEvent(domain.EventProjectDeactivated, map[string]any{
		"token":  token.Hex(),
		"reason": reason,
	}))
	return nil
}
