package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// Distributor performs atomic multi-recipient fee payouts on top of a Bank.
// Either every leg of a split lands or none does; the rounding remainder is
// retained by the paying account so it stays the residual claimant.
type Distributor struct {
	bank *Bank
}

// NewDistributor creates a Distributor over the given bank.
func NewDistributor(bank *Bank) *Distributor {
	return &Distributor{bank: bank}
}

// Distribute splits payment across allocs and transfers each share out of
// the from account. The from account must already hold the full payment;
// the caller deposits or transfers it in first. Zero-bps allocations and
// zero-valued shares are skipped. On any failure no transfer is applied.
func (d *Distributor) Distribute(from common.Address, payment *big.Int, allocs []Allocation) error {
	shares, _, err := Split(payment, allocs)
	if err != nil {
		return err
	}

	// All legs come out of a single funded account, so checking recipients
	// and the total up front makes the sequential transfers below infallible.
	need := new(big.Int)
	for i, a := range allocs {
		if shares[i].Sign() > 0 && a.Recipient == (common.Address{}) {
			return fmt.Errorf("ledger: distribute: %w", domain.ErrZeroAddress)
		}
		need.Add(need, shares[i])
	}
	if d.bank.BalanceOf(from).Cmp(need) < 0 {
		return fmt.Errorf("ledger: distribute from %s: %w", from.Hex(), domain.ErrInsufficientFunds)
	}

	for i, a := range allocs {
		if shares[i].Sign() == 0 {
			continue
		}
		if err := d.bank.Transfer(from, a.Recipient, shares[i]); err != nil {
			return fmt.Errorf("ledger: distribute to %s: %w", a.Recipient.Hex(), domain.ErrTransferFailed)
		}
	}
	return nil
}
