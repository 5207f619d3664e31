// Package registry implements the one-token-per-repository ProjectCoin
// registry: creation gating (fee, pause flag), the repo→token lookup, and
// the creator/owner query indices. It owns token deployment; tokens
// themselves live in the token package.
package registry

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
	"github.com/pullmarket/pullmarket/internal/token"
)

// Config holds the registry's deployment parameters.
type Config struct {
	Owner             common.Address
	DefaultTreasury   common.Address
	DefaultRewardPool common.Address
	CreationFee       *big.Int // wei; nil selects the default 0.01 ETH
	Curve             token.CurveParams
	Fees              token.FeeParams
}

// CreateParams are the caller-supplied arguments to CreateProjectCoin.
// Zero treasury/reward-pool addresses select the registry defaults.
type CreateParams struct {
	Name        string
	Symbol      string
	GithubOwner string
	GithubRepo  string
	Treasury    common.Address
	RewardPool  common.Address
}

// Registry is the ProjectCoin factory and index. All mutation happens under
// one mutex; reads return copies.
type Registry struct {
	mu sync.Mutex

	owner             common.Address
	defaultTreasury   common.Address
	defaultRewardPool common.Address
	creationFee       *big.Int
	paused            bool

	curve token.CurveParams
	fees  token.FeeParams

	byKey     map[common.Hash]*entry
	byToken   map[common.Address]*entry
	byCreator map[common.Address][]common.Address
	ordered   []*entry // insertion order, backs getAllProjects pagination

	bank *ledger.Bank
	now  func() time.Time
}

type entry struct {
	project domain.Project
	token   *token.Token
}

// New creates a Registry. The default curve and fee tables are used when the
// config leaves them zero.
func New(cfg Config, bank *ledger.Bank) (*Registry, error) {
	if cfg.Owner == (common.Address{}) || cfg.DefaultTreasury == (common.Address{}) || cfg.DefaultRewardPool == (common.Address{}) {
		return nil, domain.ErrZeroAddress
	}
	fee := cfg.CreationFee
	if fee == nil {
		fee = new(big.Int).SetUint64(params.Ether / 100) // 0.01 ETH
	}
	curve := cfg.Curve
	if curve.Unit == nil {
		curve = token.DefaultCurve()
	}
	fees := cfg.Fees
	if fees.TreasuryBps == 0 && fees.RewardPoolBps == 0 {
		fees = token.DefaultFees()
	}

	return &Registry{
		owner:             cfg.Owner,
		defaultTreasury:   cfg.DefaultTreasury,
		defaultRewardPool: cfg.DefaultRewardPool,
		creationFee:       new(big.Int).Set(fee),
		curve:             curve,
		fees:              fees,
		byKey:             make(map[common.Hash]*entry),
		byToken:           make(map[common.Address]*entry),
		byCreator:         make(map[common.Address][]common.Address),
		bank:              bank,
		now:               time.Now,
	}, nil
}

// Owner returns the registry owner address.
func (r *Registry) Owner() common.Address { return r.owner }

// CreationFee returns the current creation fee in wei.
func (r *Registry) CreationFee() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return new(big.Int).Set(r.creationFee)
}

// CreateProjectCoin deploys a new ProjectCoin for (owner, repo). The caller
// becomes both creator and token owner. The whole payment, overpayment
// included, is transferred to the registry owner once validation passes.
func (r *Registry) CreateProjectCoin(caller common.Address, p CreateParams, payment *big.Int) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return domain.Project{}, domain.ErrCreationPaused
	}
	if payment == nil || payment.Cmp(r.creationFee) < 0 {
		return domain.Project{}, domain.ErrInsufficientFee
	}
	key, err := domain.ProjectKey(p.GithubOwner, p.GithubRepo)
	if err != nil {
		return domain.Project{}, err
	}
	if _, exists := r.byKey[key]; exists {
		return domain.Project{}, domain.ErrRepositoryExists
	}

	treasury := p.Treasury
	if treasury == (common.Address{}) {
		treasury = r.defaultTreasury
	}
	rewardPool := p.RewardPool
	if rewardPool == (common.Address{}) {
		rewardPool = r.defaultRewardPool
	}

	// Collect the fee before deploying; a caller who cannot fund the fee
	// must not register the repository.
	if err := r.bank.Transfer(caller, r.owner, payment); err != nil {
		return domain.Project{}, err
	}

	tok, err := token.New(token.Config{
		Name:        p.Name,
		Symbol:      p.Symbol,
		GithubOwner: p.GithubOwner,
		GithubRepo:  p.GithubRepo,
		Owner:       caller,
		Creator:     caller,
		Treasury:    treasury,
		RewardPool:  rewardPool,
		Curve:       r.curve,
		Fees:        r.fees,
	}, r.bank)
	if err != nil {
		// Refund: validation passed, so the only failure left is a config
		// bug; hand the payment back rather than strand it.
		_ = r.bank.Transfer(r.owner, caller, payment)
		return domain.Project{}, fmt.Errorf("registry: deploy token: %w", err)
	}

	e := &entry{
		project: domain.Project{
			Key:         key,
			TokenID:     tok.ID(),
			Name:        p.Name,
			Symbol:      p.Symbol,
			GithubOwner: p.GithubOwner,
			GithubRepo:  p.GithubRepo,
			Creator:     caller,
			CreatedAt:   r.now().UTC(),
			IsActive:    true,
		},
		token: tok,
	}
	r.byKey[key] = e
	r.byToken[tok.ID()] = e
	r.byCreator[caller] = append(r.byCreator[caller], tok.ID())
	r.ordered = append(r.ordered, e)

	return e.project, nil
}

// GetTokenByRepo returns the token for (owner, repo).
func (r *Registry) GetTokenByRepo(githubOwner, githubRepo string) (*token.Token, error) {
	key, err := domain.ProjectKey(githubOwner, githubRepo)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.token, nil
}

// GetToken returns the token engine by its address identity.
func (r *Registry) GetToken(id common.Address) (*token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.token, nil
}

// GetProjectInfo returns the registry entry for a token address.
func (r *Registry) GetProjectInfo(id common.Address) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[id]
	if !ok {
		return domain.Project{}, domain.ErrNotFound
	}
	return e.project, nil
}

// HasToken reports whether (owner, repo) is registered.
func (r *Registry) HasToken(githubOwner, githubRepo string) bool {
	key, err := domain.ProjectKey(githubOwner, githubRepo)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byKey[key]
	return ok
}

// GetTokensByCreator returns the token addresses created by addr, in
// creation order.
func (r *Registry) GetTokensByCreator(addr common.Address) []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]common.Address, len(r.byCreator[addr]))
	copy(out, r.byCreator[addr])
	return out
}

// SearchByOwner returns every project whose GitHub owner matches exactly.
func (r *Registry) SearchByOwner(githubOwner string) []domain.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Project
	for _, e := range r.ordered {
		if e.project.GithubOwner == githubOwner {
			out = append(out, e.project)
		}
	}
	return out
}

// GetAllProjects returns a page of projects in insertion order plus the
// total count. Page boundaries are index-based, so concurrent creation only
// ever appends past the requested window.
func (r *Registry) GetAllProjects(offset, limit int) ([]domain.Project, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(r.ordered)
	if offset < 0 || offset >= total || limit <= 0 {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]domain.Project, 0, end-offset)
	for _, e := range r.ordered[offset:end] {
		page = append(page, e.project)
	}
	return page, total
}

// TotalTokens returns the number of registered projects.
func (r *Registry) TotalTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ordered)
}

// UpdateCreationFee sets a new creation fee. Owner only.
func (r *Registry) UpdateCreationFee(caller common.Address, fee *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	if fee == nil || fee.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	r.creationFee = new(big.Int).Set(fee)
	return nil
}

// DeactivateProject hides a project from discovery. Token balances and the
// token itself are untouched. Owner only.
func (r *Registry) DeactivateProject(caller common.Address, id common.Address, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	e, ok := r.byToken[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.project.IsActive = false
	_ = reason // recorded by the service layer's audit log
	return nil
}

// SetCreationPaused toggles the creation gate. Owner only.
func (r *Registry) SetCreationPaused(caller common.Address, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	r.paused = paused
	return nil
}
