// Package token implements the per-repository bonding-curve token engine:
// stepped mint pricing, spot-minus-fee redemption, and the fee split on every
// mint payment. All arithmetic is exact big.Int; every public method executes
// atomically under the engine mutex and mutates state before any value moves
// out of the reserve.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
)

// CurveParams describes the stepped bonding curve. Prices are wei per whole
// token; amounts everywhere are token base units (Unit per whole token).
type CurveParams struct {
	InitialPrice   *big.Int // wei per whole token at deployment
	PriceIncrement *big.Int // wei added to the price per completed batch
	BatchSize      *big.Int // base units per batch
	Unit           *big.Int // base units per whole token
	InitialSupply  *big.Int // base units pre-minted to the owner
	MaxSupply      *big.Int // base units, hard mint ceiling
}

// FeeParams is the basis-point fee table applied to mints and redemptions.
type FeeParams struct {
	TreasuryBps   uint32 // share of every mint payment sent to the treasury
	RewardPoolBps uint32 // share sent to the reward pool
	CreatorBps    uint32 // creator reward on top-level mints
	BurnFeeBps    uint32 // haircut on the spot price at redemption
}

// DefaultCurve returns the production curve parameters: 0.001 ETH starting
// price stepping up 0.0001 ETH every 1000 tokens, 1M tokens pre-minted,
// 10M ceiling.
func DefaultCurve() CurveParams {
	unit := new(big.Int).SetUint64(params.Ether)
	return CurveParams{
		InitialPrice:   new(big.Int).SetUint64(params.Ether / 1000),   // 0.001 ETH
		PriceIncrement: new(big.Int).SetUint64(params.Ether / 10000),  // 0.0001 ETH
		BatchSize:      new(big.Int).Mul(big.NewInt(1000), unit),      // 1000 tokens
		Unit:           unit,
		InitialSupply:  new(big.Int).Mul(big.NewInt(1_000_000), unit),  // 1M tokens
		MaxSupply:      new(big.Int).Mul(big.NewInt(10_000_000), unit), // 10M tokens
	}
}

// DefaultFees returns the production fee table: 30% treasury, 50% reward
// pool, 5% creator, 2% burn fee. The 15% of each mint payment left over
// stays in the reserve backing redemptions.
func DefaultFees() FeeParams {
	return FeeParams{
		TreasuryBps:   3000,
		RewardPoolBps: 5000,
		CreatorBps:    500,
		BurnFeeBps:    200,
	}
}

// Config carries everything needed to deploy a Token.
type Config struct {
	Name        string
	Symbol      string
	GithubOwner string
	GithubRepo  string
	Owner       common.Address
	Creator     common.Address
	Treasury    common.Address
	RewardPool  common.Address
	Curve       CurveParams
	Fees        FeeParams
}

// Token is one deployed ProjectCoin. The reserve account on the bank plays
// the role of the contract's own ETH balance; token balances live here.
type Token struct {
	mu sync.Mutex

	name        string
	symbol      string
	githubOwner string
	githubRepo  string

	owner      common.Address
	creator    common.Address
	treasury   common.Address
	rewardPool common.Address
	reserve    common.Address // engine-owned bank account backing redemptions

	curve CurveParams
	fees  FeeParams

	mintPrice   *big.Int
	totalMinted *big.Int
	totalBurned *big.Int
	balances    map[common.Address]*big.Int

	bank *ledger.Bank
	dist *ledger.Distributor
}

// New deploys a Token. The initial supply is credited to the owner and
// counted in totalMinted, so batch boundaries are measured from zero supply.
func New(cfg Config, bank *ledger.Bank) (*Token, error) {
	if cfg.Owner == (common.Address{}) || cfg.Treasury == (common.Address{}) || cfg.RewardPool == (common.Address{}) {
		return nil, domain.ErrZeroAddress
	}
	key, err := domain.ProjectKey(cfg.GithubOwner, cfg.GithubRepo)
	if err != nil {
		return nil, err
	}
	creator := cfg.Creator
	if creator == (common.Address{}) {
		creator = cfg.Owner
	}

	t := &Token{
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		githubOwner: cfg.GithubOwner,
		githubRepo:  cfg.GithubRepo,
		owner:       cfg.Owner,
		creator:     creator,
		treasury:    cfg.Treasury,
		rewardPool:  cfg.RewardPool,
		reserve:     domain.ReserveAddress("token", key),
		curve:       cfg.Curve,
		fees:        cfg.Fees,
		mintPrice:   new(big.Int).Set(cfg.Curve.InitialPrice),
		totalMinted: new(big.Int),
		totalBurned: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		bank:        bank,
		dist:        ledger.NewDistributor(bank),
	}

	// The pre-mint does not walk the curve: the owner's initial supply is
	// counted in totalMinted for batch alignment but priced at nothing.
	if cfg.Curve.InitialSupply != nil && cfg.Curve.InitialSupply.Sign() > 0 {
		t.creditBalance(cfg.Owner, cfg.Curve.InitialSupply)
		t.totalMinted.Set(cfg.Curve.InitialSupply)
	}
	return t, nil
}

// ID returns the token's identity: its reserve account address.
func (t *Token) ID() common.Address { return t.reserve }

// Name returns the token name.
func (t *Token) Name() string { return t.name }

// Symbol returns the token symbol.
func (t *Token) Symbol() string { return t.symbol }

// Owner returns the token owner.
func (t *Token) Owner() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}

// Creator returns the immutable creator address.
func (t *Token) Creator() common.Address { return t.creator }

// Treasury returns the current treasury address.
func (t *Token) Treasury() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.treasury
}

// RewardPool returns the current reward pool address.
func (t *Token) RewardPool() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rewardPool
}

// CalculateMintCost integrates the step price function over
// [totalMinted, totalMinted+amount). A mint that straddles batch boundaries
// is summed per segment at that segment's price; each segment cost is
// floor-rounded to the wei.
func (t *Token) CalculateMintCost(amount *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mintCostLocked(amount)
}

func (t *Token) mintCostLocked(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	cost := new(big.Int)
	price := new(big.Int).Set(t.mintPrice)
	minted := new(big.Int).Set(t.totalMinted)
	remaining := new(big.Int).Set(amount)

	for remaining.Sign() > 0 {
		// Length of the current segment: up to the next batch boundary.
		used := new(big.Int).Mod(minted, t.curve.BatchSize)
		segLen := new(big.Int).Sub(t.curve.BatchSize, used)
		if segLen.Cmp(remaining) > 0 {
			segLen.Set(remaining)
		}

		cost.Add(cost, ledger.MulDiv(price, segLen, t.curve.Unit))

		minted.Add(minted, segLen)
		remaining.Sub(remaining, segLen)
		if new(big.Int).Mod(minted, t.curve.BatchSize).Sign() == 0 {
			price.Add(price, t.curve.PriceIncrement)
		}
	}
	return cost, nil
}

// MintTokens mints amount base units to buyer against payment wei. Payment
// below the curve cost is rejected; overpayment is accepted and flows
// through the same fee split, never refunded. The buyer is debited into the
// reserve, state is committed, and only then are fee shares paid out.
func (t *Token) MintTokens(buyer common.Address, amount, payment *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost, err := t.mintCostLocked(amount)
	if err != nil {
		return err
	}
	if payment == nil || payment.Cmp(cost) < 0 {
		return domain.ErrInsufficientPayment
	}
	if t.curve.MaxSupply != nil {
		after := new(big.Int).Add(t.totalMinted, amount)
		if after.Cmp(t.curve.MaxSupply) > 0 {
			return domain.ErrExceedsMaxSupply
		}
	}

	// Pull the full payment into the reserve before touching supply, so a
	// failed debit leaves the curve untouched.
	if err := t.bank.Transfer(buyer, t.reserve, payment); err != nil {
		return err
	}

	before := new(big.Int).Set(t.totalMinted)
	t.totalMinted.Add(t.totalMinted, amount)
	t.advancePrice(before, t.totalMinted)
	t.creditBalance(buyer, amount)

	// State is committed; distribute the fee shares out of the reserve.
	// The remainder stays in the reserve as redemption backing.
	if err := t.dist.Distribute(t.reserve, payment, []ledger.Allocation{
		{Recipient: t.treasury, Bps: t.fees.TreasuryBps},
		{Recipient: t.rewardPool, Bps: t.fees.RewardPoolBps},
		{Recipient: t.creator, Bps: t.fees.CreatorBps},
	}); err != nil {
		return fmt.Errorf("token %s: fee distribution: %w", t.symbol, err)
	}
	return nil
}

// CalculateRedemptionValue prices amount base units at the current spot
// price minus the burn fee. Redemption deliberately does not walk the curve
// back down: the integral premium paid on a straddling mint is not
// recoverable by an immediate redeem, which closes the mint-redeem loop.
func (t *Token) CalculateRedemptionValue(amount *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.redemptionValueLocked(amount)
}

func (t *Token) redemptionValueLocked(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	gross := ledger.MulDiv(amount, t.mintPrice, t.curve.Unit)
	net := ledger.BpsOf(gross, uint32(ledger.BpsDenominator)-t.fees.BurnFeeBps)
	return net, nil
}

// Redeem burns amount base units from caller and pays out the redemption
// value from the reserve. The burn is committed before the payout; the call
// fails whole if the reserve cannot cover the value.
func (t *Token) Redeem(caller common.Address, amount *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, err := t.redemptionValueLocked(amount)
	if err != nil {
		return nil, err
	}
	bal := t.balances[caller]
	if bal == nil || bal.Cmp(amount) < 0 {
		return nil, domain.ErrInsufficientBalance
	}
	if t.bank.BalanceOf(t.reserve).Cmp(value) < 0 {
		return nil, domain.ErrInsufficientReserve
	}

	bal.Sub(bal, amount)
	t.totalBurned.Add(t.totalBurned, amount)

	if err := t.bank.Transfer(t.reserve, caller, value); err != nil {
		// Unreachable after the reserve check above; surface it as the
		// solvency failure it would be.
		bal.Add(bal, amount)
		t.totalBurned.Sub(t.totalBurned, amount)
		return nil, domain.ErrInsufficientReserve
	}
	return value, nil
}

// Burn destroys amount base units from caller with no ETH movement.
func (t *Token) Burn(caller common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	bal := t.balances[caller]
	if bal == nil || bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.totalBurned.Add(t.totalBurned, amount)
	return nil
}

// BuybackBurn burns tokens held by the token's own reserve account, e.g.
// bought back by the treasury and transferred in. Owner only; no ETH moves.
func (t *Token) BuybackBurn(caller common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return domain.ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	bal := t.balances[t.reserve]
	if bal == nil || bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.totalBurned.Add(t.totalBurned, amount)
	return nil
}

// Transfer moves amount base units from the caller to another holder.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	bal := t.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.creditBalance(to, amount)
	return nil
}

// UpdateTreasury redirects future treasury fee shares. Owner only.
func (t *Token) UpdateTreasury(caller, addr common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return domain.ErrUnauthorized
	}
	if addr == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	t.treasury = addr
	return nil
}

// UpdateRewardPool redirects future reward pool fee shares. Owner only.
func (t *Token) UpdateRewardPool(caller, addr common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return domain.ErrUnauthorized
	}
	if addr == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	t.rewardPool = addr
	return nil
}

// BalanceOf returns holder's token balance in base units.
func (t *Token) BalanceOf(holder common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalSupply returns the circulating supply: totalMinted - totalBurned.
func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Sub(t.totalMinted, t.totalBurned)
}

// MintingStats returns the snapshot backing the getMintingStats view.
func (t *Token) MintingStats() domain.MintingStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := new(big.Int)
	if t.curve.MaxSupply != nil {
		remaining.Sub(t.curve.MaxSupply, t.totalMinted)
		if remaining.Sign() < 0 {
			remaining.SetInt64(0)
		}
	}
	return domain.MintingStats{
		CurrentPrice:      new(big.Int).Set(t.mintPrice),
		TotalMinted:       new(big.Int).Set(t.totalMinted),
		TotalBurned:       new(big.Int).Set(t.totalBurned),
		CirculatingSupply: new(big.Int).Sub(t.totalMinted, t.totalBurned),
		RemainingSupply:   remaining,
	}
}

// RepositoryInfo returns the GitHub identity this token is bound to.
func (t *Token) RepositoryInfo() domain.RepositoryInfo {
	return domain.RepositoryInfo{
		GithubOwner:   t.githubOwner,
		GithubRepo:    t.githubRepo,
		RepositoryURL: "https://github.com/" + t.githubOwner + "/" + t.githubRepo,
	}
}

// Info returns the full public view of the token.
func (t *Token) Info() domain.TokenInfo {
	stats := t.MintingStats()
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.TokenInfo{
		ID:          t.reserve,
		Name:        t.name,
		Symbol:      t.symbol,
		GithubOwner: t.githubOwner,
		GithubRepo:  t.githubRepo,
		Owner:       t.owner,
		Creator:     t.creator,
		Treasury:    t.treasury,
		RewardPool:  t.rewardPool,
		Stats:       stats,
		Reserve:     t.bank.BalanceOf(t.reserve),
	}
}

// ReserveBalance returns the ETH held by the reserve account, in wei.
func (t *Token) ReserveBalance() *big.Int {
	return t.bank.BalanceOf(t.reserve)
}

// advancePrice steps mintPrice up once per batch boundary crossed between
// the two cumulative mint totals. The price never moves down: burns and
// redemptions leave it where the last completed batch put it.
func (t *Token) advancePrice(before, after *big.Int) {
	crossed := new(big.Int).Quo(after, t.curve.BatchSize)
	crossed.Sub(crossed, new(big.Int).Quo(before, t.curve.BatchSize))
	if crossed.Sign() > 0 {
		t.mintPrice.Add(t.mintPrice, new(big.Int).Mul(t.curve.PriceIncrement, crossed))
	}
}

func (t *Token) creditBalance(addr common.Address, amount *big.Int) {
	if bal, ok := t.balances[addr]; ok {
		bal.Add(bal, amount)
		return
	}
	t.balances[addr] = new(big.Int).Set(amount)
}
