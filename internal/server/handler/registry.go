package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/registry"
)

// RegistryService defines what the registry handler needs from the service
// layer.
type RegistryService interface {
	CreateProjectCoin(ctx context.Context, caller common.Address, p registry.CreateParams, payment *big.Int) (domain.Project, error)
	GetProjectByRepo(ctx context.Context, githubOwner, githubRepo string) (domain.Project, error)
	GetProjectInfo(ctx context.Context, token common.Address) (domain.Project, error)
	ListProjects(offset, limit int) ([]domain.Project, int)
	SearchByOwner(githubOwner string) []domain.Project
	GetTokensByCreator(addr common.Address) []common.Address
	CreationFee() *big.Int
	TotalTokens() int
}

// RegistryHandler serves project registry endpoints.
type RegistryHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(registry RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

type createProjectRequest struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	GithubOwner string `json:"github_owner"`
	GithubRepo  string `json:"github_repo"`
	Treasury    string `json:"treasury,omitempty"`
	RewardPool  string `json:"reward_pool,omitempty"`
	PaymentWei  string `json:"payment_wei"`
}

// CreateProject registers a repository and deploys its ProjectCoin.
// POST /api/projects
func (h *RegistryHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	payment, err := parseAmount(req.PaymentWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payment_wei: "+err.Error())
		return
	}

	params := registry.CreateParams{
		Name:        req.Name,
		Symbol:      req.Symbol,
		GithubOwner: req.GithubOwner,
		GithubRepo:  req.GithubRepo,
	}
	// Optional overrides; the zero address selects registry defaults.
	if req.Treasury != "" {
		if params.Treasury, err = parseAddress(req.Treasury); err != nil {
			writeError(w, http.StatusBadRequest, "treasury: "+err.Error())
			return
		}
	}
	if req.RewardPool != "" {
		if params.RewardPool, err = parseAddress(req.RewardPool); err != nil {
			writeError(w, http.StatusBadRequest, "reward_pool: "+err.Error())
			return
		}
	}

	project, err := h.registry.CreateProjectCoin(r.Context(), caller, params, payment)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// listProjectsResponse wraps the list endpoint output with metadata.
type listProjectsResponse struct {
	Projects []domain.Project `json:"projects"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListProjects returns registered projects with pagination.
// GET /api/projects?limit=50&offset=0
func (h *RegistryHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	projects, total := h.registry.ListProjects(opts.Offset, opts.Limit)
	if projects == nil {
		projects = []domain.Project{}
	}
	writeJSON(w, http.StatusOK, listProjectsResponse{
		Projects: projects,
		Total:    total,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// GetProject returns the registry entry for (owner, repo).
// GET /api/projects/{owner}/{repo}
func (h *RegistryHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.registry.GetProjectByRepo(r.Context(), pathParam(r, "owner"), pathParam(r, "repo"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProjectByToken returns the registry entry owning a token address.
// GET /api/projects/token/{address}
func (h *RegistryHandler) GetProjectByToken(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	p, err := h.registry.GetProjectInfo(r.Context(), addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SearchProjects returns every project under a GitHub owner.
// GET /api/projects/search?owner=acme
func (h *RegistryHandler) SearchProjects(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing owner query parameter")
		return
	}
	projects := h.registry.SearchByOwner(owner)
	if projects == nil {
		projects = []domain.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// ListByCreator returns the token addresses created by an address.
// GET /api/projects/creator/{address}
func (h *RegistryHandler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "address: "+err.Error())
		return
	}
	tokens := h.registry.GetTokensByCreator(addr)
	if tokens == nil {
		tokens = []common.Address{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// RegistryStats returns global registry counters.
// GET /api/registry/stats
func (h *RegistryHandler) RegistryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total_tokens":     h.registry.TotalTokens(),
		"creation_fee_wei": h.registry.CreationFee().String(),
	})
}
