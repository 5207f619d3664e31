package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// Bank is the custodial ETH ledger. Every participant (user wallets, token
// reserves, market escrows, the registry treasury) is an ordinary account
// keyed by address. Engines move value exclusively through Transfer, so an
// account can never go negative and the system as a whole can never pay out
// more than was deposited.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
	total    *big.Int // sum of all balances, maintained incrementally
}

// NewBank creates an empty Bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[common.Address]*big.Int),
		total:    new(big.Int),
	}
}

// Deposit credits amount to addr. This is the only way value enters the
// ledger (an on-ramp or test faucet); amount must be positive.
func (b *Bank) Deposit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	if addr == (common.Address{}) {
		return domain.ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, amount)
	b.total.Add(b.total, amount)
	return nil
}

// Transfer moves amount from one account to another. It fails with
// ErrInsufficientFunds when the source balance is too small, leaving both
// accounts untouched.
func (b *Bank) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if to == (common.Address{}) {
		return domain.ErrZeroAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bal, ok := b.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return domain.ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	b.credit(to, amount)
	return nil
}

// BalanceOf returns a copy of addr's balance. Unknown accounts read as zero.
func (b *Bank) BalanceOf(addr common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalSupply returns the sum of all balances held by the bank.
func (b *Bank) TotalSupply() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.total)
}

// credit adds amount to addr's balance. Caller holds the lock.
func (b *Bank) credit(addr common.Address, amount *big.Int) {
	if bal, ok := b.balances[addr]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[addr] = new(big.Int).Set(amount)
}
