// Package ledger provides the exact-integer accounting primitives shared by
// the bonding-curve and prediction-market engines: floor-rounded fixed-point
// helpers, basis-point fee splitting, and the custodial ETH bank. No floating
// point is used anywhere in this package.
package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pullmarket/pullmarket/internal/domain"
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10_000

// MulDiv returns floor(x * y / d). The multiply always happens before the
// divide so no precision is lost to intermediate truncation. Panics if d is
// zero, matching big.Int division semantics.
func MulDiv(x, y, d *big.Int) *big.Int {
	p := new(big.Int).Mul(x, y)
	return p.Quo(p, d)
}

// BpsOf returns floor(amount * bps / 10000).
func BpsOf(amount *big.Int, bps uint32) *big.Int {
	return MulDiv(amount, new(big.Int).SetUint64(uint64(bps)), big.NewInt(BpsDenominator))
}

// Allocation is one recipient's basis-point share of a payment.
type Allocation struct {
	Recipient common.Address
	Bps       uint32
}

// Split divides payment between the allocations using floor division and
// returns the per-recipient shares together with the rounding remainder.
// The invariant sum(shares) + remainder == payment holds exactly; not a
// single wei is lost or created. Fails when the shares sum past 100%.
func Split(payment *big.Int, allocs []Allocation) (shares []*big.Int, remainder *big.Int, err error) {
	if payment == nil || payment.Sign() < 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	var totalBps uint64
	for _, a := range allocs {
		totalBps += uint64(a.Bps)
	}
	if totalBps > BpsDenominator {
		return nil, nil, fmt.Errorf("ledger: allocations sum to %d bps, exceeds 10000: %w", totalBps, domain.ErrInvalidAmount)
	}

	shares = make([]*big.Int, len(allocs))
	distributed := new(big.Int)
	for i, a := range allocs {
		shares[i] = BpsOf(payment, a.Bps)
		distributed.Add(distributed, shares[i])
	}

	remainder = new(big.Int).Sub(payment, distributed)
	return shares, remainder, nil
}
