// Package market implements the binary-outcome, winner-take-all prediction
// market keyed by (repository, PR number). Claim-tokens accrue 1:1 with wei
// staked; at resolution the winning side splits the combined pot pro rata.
// Each market walks NonExistent → Active → Resolved and never back.
package market

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
)

type position struct {
	yesTokens  *big.Int
	noTokens   *big.Int
	hasClaimed bool
}

type marketState struct {
	repository string
	prNumber   uint64

	yesPool        *big.Int
	noPool         *big.Int
	totalYesTokens *big.Int
	totalNoTokens  *big.Int
	totalClaimed   *big.Int

	resolved   bool
	outcome    bool
	createdAt  time.Time
	resolvedAt time.Time

	positions map[common.Address]*position
}

// Engine is the prediction-market state machine. The escrow account on the
// bank holds every unresolved pool's ETH; while a market is unresolved its
// yesPool+noPool is exactly its contribution to that escrow.
type Engine struct {
	mu sync.Mutex

	operator common.Address // may resolve markets
	escrow   common.Address
	markets  map[common.Hash]*marketState
	ordered  []common.Hash // creation order, backs ActiveMarkets

	bank *ledger.Bank
	now  func() time.Time
}

// New creates an Engine whose resolveMarket is restricted to operator.
func New(operator common.Address, bank *ledger.Bank) (*Engine, error) {
	if operator == (common.Address{}) {
		return nil, domain.ErrZeroAddress
	}
	return &Engine{
		operator: operator,
		escrow:   domain.ReserveAddress("market-escrow", common.Hash{}),
		markets:  make(map[common.Hash]*marketState),
		bank:     bank,
		now:      time.Now,
	}, nil
}

// Escrow returns the engine's escrow account address.
func (e *Engine) Escrow() common.Address { return e.escrow }

// CreateMarket opens betting on (repository, prNumber).
func (e *Engine) CreateMarket(repository string, prNumber uint64) (domain.MarketInfo, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.markets[key]; exists {
		return domain.MarketInfo{}, domain.ErrMarketExists
	}
	m := &marketState{
		repository:     repository,
		prNumber:       prNumber,
		yesPool:        new(big.Int),
		noPool:         new(big.Int),
		totalYesTokens: new(big.Int),
		totalNoTokens:  new(big.Int),
		totalClaimed:   new(big.Int),
		createdAt:      e.now().UTC(),
		positions:      make(map[common.Address]*position),
	}
	e.markets[key] = m
	e.ordered = append(e.ordered, key)
	return e.snapshot(key, m), nil
}

// TakeYesPosition stakes payment wei on the YES outcome.
func (e *Engine) TakeYesPosition(repository string, prNumber uint64, bettor common.Address, payment *big.Int) (domain.Position, error) {
	return e.takePosition(repository, prNumber, bettor, payment, true)
}

// TakeNoPosition stakes payment wei on the NO outcome.
func (e *Engine) TakeNoPosition(repository string, prNumber uint64, bettor common.Address, payment *big.Int) (domain.Position, error) {
	return e.takePosition(repository, prNumber, bettor, payment, false)
}

func (e *Engine) takePosition(repository string, prNumber uint64, bettor common.Address, payment *big.Int, yes bool) (domain.Position, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.Position{}, err
	}
	if payment == nil || payment.Sign() <= 0 {
		return domain.Position{}, domain.ErrZeroPayment
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok || m.resolved {
		return domain.Position{}, domain.ErrMarketNotActive
	}

	// Escrow the stake before crediting any claim-tokens.
	if err := e.bank.Transfer(bettor, e.escrow, payment); err != nil {
		return domain.Position{}, err
	}

	pos := m.positions[bettor]
	if pos == nil {
		pos = &position{yesTokens: new(big.Int), noTokens: new(big.Int)}
		m.positions[bettor] = pos
	}
	if yes {
		m.yesPool.Add(m.yesPool, payment)
		m.totalYesTokens.Add(m.totalYesTokens, payment)
		pos.yesTokens.Add(pos.yesTokens, payment)
	} else {
		m.noPool.Add(m.noPool, payment)
		m.totalNoTokens.Add(m.totalNoTokens, payment)
		pos.noTokens.Add(pos.noTokens, payment)
	}
	return e.positionSnapshot(key, bettor, pos), nil
}

// ResolveMarket fixes the outcome. Operator only, exactly once.
func (e *Engine) ResolveMarket(caller common.Address, repository string, prNumber uint64, outcome bool) (domain.MarketInfo, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.operator {
		return domain.MarketInfo{}, domain.ErrUnauthorized
	}
	m, ok := e.markets[key]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	if m.resolved {
		return domain.MarketInfo{}, domain.ErrAlreadyResolved
	}

	m.resolved = true
	m.outcome = outcome
	m.resolvedAt = e.now().UTC()
	return e.snapshot(key, m), nil
}

// ClaimWinnings pays the caller the proportional share of the combined pot:
// callerWinningTokens / totalWinningTokens × (yesPool + noPool), floored.
// hasClaimed is set before the transfer leaves the escrow.
func (e *Engine) ClaimWinnings(repository string, prNumber uint64, caller common.Address) (*big.Int, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !m.resolved {
		return nil, domain.ErrNotResolved
	}
	pos := m.positions[caller]
	if pos == nil {
		return nil, domain.ErrNothingToClaim
	}
	if pos.hasClaimed {
		return nil, domain.ErrAlreadyClaimed
	}

	winTokens, totalWin := pos.noTokens, m.totalNoTokens
	if m.outcome {
		winTokens, totalWin = pos.yesTokens, m.totalYesTokens
	}
	if winTokens.Sign() == 0 {
		return nil, domain.ErrNothingToClaim
	}

	pot := new(big.Int).Add(m.yesPool, m.noPool)
	payout := ledger.MulDiv(winTokens, pot, totalWin)

	// Floor division guarantees the sum of payouts never exceeds the pot,
	// but an underfunded escrow must still block the claim outright.
	unpaid := new(big.Int).Sub(pot, m.totalClaimed)
	if payout.Cmp(unpaid) > 0 || e.bank.BalanceOf(e.escrow).Cmp(payout) < 0 {
		return nil, domain.ErrInsufficientReserve
	}

	pos.hasClaimed = true
	m.totalClaimed.Add(m.totalClaimed, payout)

	if err := e.bank.Transfer(e.escrow, caller, payout); err != nil {
		pos.hasClaimed = false
		m.totalClaimed.Sub(m.totalClaimed, payout)
		return nil, domain.ErrInsufficientReserve
	}
	return payout, nil
}

// CalculatePotentialWinnings returns the hypothetical payout for addr under
// each outcome of an unresolved market. A side with no stake pays zero.
func (e *Engine) CalculatePotentialWinnings(repository string, prNumber uint64, addr common.Address) (domain.PotentialWinnings, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.PotentialWinnings{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok {
		return domain.PotentialWinnings{}, domain.ErrNotFound
	}

	out := domain.PotentialWinnings{IfYes: new(big.Int), IfNo: new(big.Int)}
	pos := m.positions[addr]
	if pos == nil {
		return out, nil
	}

	pot := new(big.Int).Add(m.yesPool, m.noPool)
	if m.totalYesTokens.Sign() > 0 && pos.yesTokens.Sign() > 0 {
		out.IfYes = ledger.MulDiv(pos.yesTokens, pot, m.totalYesTokens)
	}
	if m.totalNoTokens.Sign() > 0 && pos.noTokens.Sign() > 0 {
		out.IfNo = ledger.MulDiv(pos.noTokens, pot, m.totalNoTokens)
	}
	return out, nil
}

// GetMarket returns a snapshot of (repository, prNumber).
func (e *Engine) GetMarket(repository string, prNumber uint64) (domain.MarketInfo, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return e.snapshot(key, m), nil
}

// GetUserPosition returns addr's position in a market. A bettor who never
// staked gets a zero position, not an error.
func (e *Engine) GetUserPosition(repository string, prNumber uint64, addr common.Address) (domain.Position, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return domain.Position{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	pos := m.positions[addr]
	if pos == nil {
		return domain.Position{
			MarketKey: key,
			Address:   addr,
			YesTokens: new(big.Int),
			NoTokens:  new(big.Int),
		}, nil
	}
	return e.positionSnapshot(key, addr, pos), nil
}

// ActiveMarkets returns all unresolved markets in creation order.
func (e *Engine) ActiveMarkets() []domain.MarketInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.MarketInfo
	for _, key := range e.ordered {
		if m := e.markets[key]; !m.resolved {
			out = append(out, e.snapshot(key, m))
		}
	}
	return out
}

// ResolvedMarkets returns all resolved markets in creation order.
func (e *Engine) ResolvedMarkets() []domain.MarketInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.MarketInfo
	for _, key := range e.ordered {
		if m := e.markets[key]; m.resolved {
			out = append(out, e.snapshot(key, m))
		}
	}
	return out
}

// Positions returns every position in a market, ordered by address for
// deterministic settlement reports.
func (e *Engine) Positions(repository string, prNumber uint64) ([]domain.Position, error) {
	key, err := domain.MarketKey(repository, prNumber)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markets[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Position, 0, len(m.positions))
	for addr, pos := range m.positions {
		out = append(out, e.positionSnapshot(key, addr, pos))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Cmp(out[j].Address) < 0
	})
	return out, nil
}

// snapshot copies market state into the read-only view. Caller holds the lock.
func (e *Engine) snapshot(key common.Hash, m *marketState) domain.MarketInfo {
	info := domain.MarketInfo{
		Key:            key,
		Repository:     m.repository,
		PRNumber:       m.prNumber,
		IsActive:       !m.resolved,
		YesPool:        new(big.Int).Set(m.yesPool),
		NoPool:         new(big.Int).Set(m.noPool),
		TotalYesTokens: new(big.Int).Set(m.totalYesTokens),
		TotalNoTokens:  new(big.Int).Set(m.totalNoTokens),
		TotalClaimed:   new(big.Int).Set(m.totalClaimed),
		Resolved:       m.resolved,
		Outcome:        m.outcome,
		CreatedAt:      m.createdAt,
	}
	if m.resolved {
		at := m.resolvedAt
		info.ResolvedAt = &at
	}
	return info
}

func (e *Engine) positionSnapshot(key common.Hash, addr common.Address, pos *position) domain.Position {
	return domain.Position{
		MarketKey:  key,
		Address:    addr,
		YesTokens:  new(big.Int).Set(pos.yesTokens),
		NoTokens:   new(big.Int).Set(pos.noTokens),
		HasClaimed: pos.hasClaimed,
	}
}
