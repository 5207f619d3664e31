package ledger

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullmarket/pullmarket/internal/domain"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca501")
)

func TestMulDivFloors(t *testing.T) {
	got := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	assert.Equal(t, int64(10), got.Int64()) // 21/2 floored

	got = MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(3))
	assert.Equal(t, int64(0), got.Int64())
}

func TestSplitExactness(t *testing.T) {
	allocs := []Allocation{
		{Recipient: alice, Bps: 3000},
		{Recipient: bob, Bps: 5000},
		{Recipient: carol, Bps: 500},
	}

	// Property: shares + remainder reassemble the payment exactly, for
	// payments chosen to stress rounding.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		payment := new(big.Int).SetUint64(rng.Uint64() % 1_000_000_007)
		shares, remainder, err := Split(payment, allocs)
		require.NoError(t, err)

		sum := new(big.Int).Set(remainder)
		for _, s := range shares {
			sum.Add(sum, s)
		}
		require.Zero(t, sum.Cmp(payment), "payment=%s", payment)
		require.True(t, remainder.Sign() >= 0)
	}
}

func TestSplitRejectsOver100Percent(t *testing.T) {
	_, _, err := Split(big.NewInt(100), []Allocation{
		{Recipient: alice, Bps: 9000},
		{Recipient: bob, Bps: 2000},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSplitSmallPayments(t *testing.T) {
	// 1 wei at 30% floors to zero; the remainder keeps the wei.
	shares, remainder, err := Split(big.NewInt(1), []Allocation{{Recipient: alice, Bps: 3000}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), shares[0].Int64())
	assert.Equal(t, int64(1), remainder.Int64())
}

func TestBankTransfer(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Deposit(alice, big.NewInt(100)))

	require.NoError(t, b.Transfer(alice, bob, big.NewInt(40)))
	assert.Equal(t, int64(60), b.BalanceOf(alice).Int64())
	assert.Equal(t, int64(40), b.BalanceOf(bob).Int64())

	err := b.Transfer(alice, bob, big.NewInt(61))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(60), b.BalanceOf(alice).Int64())
}

func TestBankConservation(t *testing.T) {
	b := NewBank()
	accounts := []common.Address{alice, bob, carol}
	total := new(big.Int)
	for _, a := range accounts {
		require.NoError(t, b.Deposit(a, big.NewInt(1000)))
		total.Add(total, big.NewInt(1000))
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		from := accounts[rng.Intn(len(accounts))]
		to := accounts[rng.Intn(len(accounts))]
		amt := big.NewInt(rng.Int63n(500))
		_ = b.Transfer(from, to, amt) // insufficient funds is fine here

		require.True(t, b.BalanceOf(from).Sign() >= 0)
	}

	sum := new(big.Int)
	for _, a := range accounts {
		sum.Add(sum, b.BalanceOf(a))
	}
	assert.Zero(t, sum.Cmp(total), "value must be conserved under any transfer sequence")
	assert.Zero(t, b.TotalSupply().Cmp(total))
}

func TestBankBalanceOfReturnsCopy(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Deposit(alice, big.NewInt(10)))

	bal := b.BalanceOf(alice)
	bal.SetInt64(9999)
	assert.Equal(t, int64(10), b.BalanceOf(alice).Int64())
}

func TestDistributorAtomic(t *testing.T) {
	b := NewBank()
	d := NewDistributor(b)
	require.NoError(t, b.Deposit(alice, big.NewInt(1000)))

	err := d.Distribute(alice, big.NewInt(1000), []Allocation{
		{Recipient: bob, Bps: 3000},
		{Recipient: carol, Bps: 5000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), b.BalanceOf(bob).Int64())
	assert.Equal(t, int64(500), b.BalanceOf(carol).Int64())
	// Remainder retained by the payer.
	assert.Equal(t, int64(200), b.BalanceOf(alice).Int64())
}

func TestDistributorRejectsUnfunded(t *testing.T) {
	b := NewBank()
	d := NewDistributor(b)
	require.NoError(t, b.Deposit(alice, big.NewInt(10)))

	err := d.Distribute(alice, big.NewInt(1000), []Allocation{
		{Recipient: bob, Bps: 5000},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	// Nothing moved.
	assert.Equal(t, int64(10), b.BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), b.BalanceOf(bob).Int64())
}
