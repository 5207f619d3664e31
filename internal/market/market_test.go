package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000ca501")
)

const repo = "acme/widget"

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).SetUint64(params.Ether))
}

func milliEth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).SetUint64(params.Ether/1000))
}

func newTestEngine(t *testing.T) (*Engine, *ledger.Bank) {
	t.Helper()
	bank := ledger.NewBank()
	e, err := New(operator, bank)
	require.NoError(t, err)
	for _, a := range []common.Address{alice, bob, carol} {
		require.NoError(t, bank.Deposit(a, eth(10)))
	}
	return e, bank
}

func TestCreateMarketOnce(t *testing.T) {
	e, _ := newTestEngine(t)

	m, err := e.CreateMarket(repo, 42)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.False(t, m.Resolved)
	assert.Equal(t, uint64(42), m.PRNumber)
	assert.Zero(t, m.YesPool.Sign())

	_, err = e.CreateMarket(repo, 42)
	assert.ErrorIs(t, err, domain.ErrMarketExists)

	// Same repo, different PR is a distinct market.
	_, err = e.CreateMarket(repo, 43)
	require.NoError(t, err)
}

func TestTakePositionRequiresActiveMarket(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.TakeYesPosition(repo, 1, alice, eth(1))
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)

	_, err = e.CreateMarket(repo, 1)
	require.NoError(t, err)

	_, err = e.TakeYesPosition(repo, 1, alice, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrZeroPayment)

	_, err = e.ResolveMarket(operator, repo, 1, true)
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 1, bob, eth(1))
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)
}

func TestPoolConservationWhileOpen(t *testing.T) {
	e, bank := newTestEngine(t)
	_, err := e.CreateMarket(repo, 7)
	require.NoError(t, err)

	_, err = e.TakeYesPosition(repo, 7, alice, eth(1))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 7, bob, milliEth(500))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 7, carol, milliEth(300))
	require.NoError(t, err)

	m, err := e.GetMarket(repo, 7)
	require.NoError(t, err)
	pot := new(big.Int).Add(m.YesPool, m.NoPool)
	assert.Zero(t, pot.Cmp(bank.BalanceOf(e.Escrow())),
		"unresolved pools must equal escrowed ETH exactly")
	// Claim-tokens are 1:1 with stake.
	assert.Zero(t, m.TotalYesTokens.Cmp(m.YesPool))
	assert.Zero(t, m.TotalNoTokens.Cmp(m.NoPool))
}

func TestResolveAuthorization(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateMarket(repo, 9)
	require.NoError(t, err)

	_, err = e.ResolveMarket(alice, repo, 9, true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = e.ResolveMarket(operator, repo, 99, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := e.ResolveMarket(operator, repo, 9, true)
	require.NoError(t, err)
	assert.True(t, m.Resolved)
	assert.True(t, m.Outcome)
	require.NotNil(t, m.ResolvedAt)

	_, err = e.ResolveMarket(operator, repo, 9, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

// The canonical settlement scenario: Alice 1 ETH YES, Bob 0.5 ETH NO,
// Carol 0.3 ETH NO; NO wins. Bob claims 0.5/0.8 × 1.8 = 1.125 ETH and
// Carol 0.3/0.8 × 1.8 = 0.675 ETH; Alice has nothing to claim.
func TestWinnerTakeAllSettlement(t *testing.T) {
	e, bank := newTestEngine(t)
	_, err := e.CreateMarket(repo, 42)
	require.NoError(t, err)

	_, err = e.TakeYesPosition(repo, 42, alice, eth(1))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 42, bob, milliEth(500))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 42, carol, milliEth(300))
	require.NoError(t, err)

	_, err = e.ResolveMarket(operator, repo, 42, false)
	require.NoError(t, err)

	bobBefore := bank.BalanceOf(bob)
	payout, err := e.ClaimWinnings(repo, 42, bob)
	require.NoError(t, err)
	assert.Zero(t, payout.Cmp(milliEth(1125)), "bob gets 1.125 ETH")
	assert.Zero(t, new(big.Int).Sub(bank.BalanceOf(bob), bobBefore).Cmp(milliEth(1125)))

	payout, err = e.ClaimWinnings(repo, 42, carol)
	require.NoError(t, err)
	assert.Zero(t, payout.Cmp(milliEth(675)), "carol gets 0.675 ETH")

	_, err = e.ClaimWinnings(repo, 42, alice)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	// Fully drained: every wei of the pot went to the winners.
	assert.Zero(t, bank.BalanceOf(e.Escrow()).Sign())
	m, err := e.GetMarket(repo, 42)
	require.NoError(t, err)
	assert.Zero(t, m.TotalClaimed.Cmp(milliEth(1800)))
}

func TestDoubleClaimBlocked(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateMarket(repo, 5)
	require.NoError(t, err)
	_, err = e.TakeYesPosition(repo, 5, alice, eth(1))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 5, bob, eth(1))
	require.NoError(t, err)
	_, err = e.ResolveMarket(operator, repo, 5, true)
	require.NoError(t, err)

	_, err = e.ClaimWinnings(repo, 5, alice)
	require.NoError(t, err)
	_, err = e.ClaimWinnings(repo, 5, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimRequiresResolution(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateMarket(repo, 6)
	require.NoError(t, err)
	_, err = e.TakeYesPosition(repo, 6, alice, eth(1))
	require.NoError(t, err)

	_, err = e.ClaimWinnings(repo, 6, alice)
	assert.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestClaimsNeverExceedPot(t *testing.T) {
	e, bank := newTestEngine(t)
	_, err := e.CreateMarket(repo, 11)
	require.NoError(t, err)

	// Odd amounts force rounding in every claim.
	_, err = e.TakeYesPosition(repo, 11, alice, big.NewInt(333))
	require.NoError(t, err)
	_, err = e.TakeYesPosition(repo, 11, bob, big.NewInt(667))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 11, carol, big.NewInt(501))
	require.NoError(t, err)

	_, err = e.ResolveMarket(operator, repo, 11, true)
	require.NoError(t, err)

	escrowBefore := bank.BalanceOf(e.Escrow())
	total := new(big.Int)
	for _, winner := range []common.Address{alice, bob} {
		p, err := e.ClaimWinnings(repo, 11, winner)
		require.NoError(t, err)
		total.Add(total, p)
	}
	pot := big.NewInt(333 + 667 + 501)
	assert.True(t, total.Cmp(pot) <= 0)
	// Whatever was not paid out stayed in escrow.
	paid := new(big.Int).Sub(escrowBefore, bank.BalanceOf(e.Escrow()))
	assert.Zero(t, paid.Cmp(total))
}

func TestPotentialWinnings(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateMarket(repo, 12)
	require.NoError(t, err)

	// Empty market: both sides pay zero, no division by zero.
	w, err := e.CalculatePotentialWinnings(repo, 12, alice)
	require.NoError(t, err)
	assert.Zero(t, w.IfYes.Sign())
	assert.Zero(t, w.IfNo.Sign())

	_, err = e.TakeYesPosition(repo, 12, alice, eth(1))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 12, bob, eth(3))
	require.NoError(t, err)

	w, err = e.CalculatePotentialWinnings(repo, 12, alice)
	require.NoError(t, err)
	// Alice owns all YES tokens: she would take the whole 4 ETH pot.
	assert.Zero(t, w.IfYes.Cmp(eth(4)))
	assert.Zero(t, w.IfNo.Sign())
}

func TestEmptyWinningSide(t *testing.T) {
	e, bank := newTestEngine(t)
	_, err := e.CreateMarket(repo, 13)
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 13, bob, eth(2))
	require.NoError(t, err)

	// YES wins but nobody holds YES tokens: the pot is unrecoverable.
	_, err = e.ResolveMarket(operator, repo, 13, true)
	require.NoError(t, err)
	_, err = e.ClaimWinnings(repo, 13, bob)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
	assert.Zero(t, bank.BalanceOf(e.Escrow()).Cmp(eth(2)))
}

func TestActiveMarketsOrdering(t *testing.T) {
	e, _ := newTestEngine(t)
	for pr := uint64(1); pr <= 3; pr++ {
		_, err := e.CreateMarket(repo, pr)
		require.NoError(t, err)
	}
	_, err := e.ResolveMarket(operator, repo, 2, true)
	require.NoError(t, err)

	active := e.ActiveMarkets()
	require.Len(t, active, 2)
	assert.Equal(t, uint64(1), active[0].PRNumber)
	assert.Equal(t, uint64(3), active[1].PRNumber)

	resolved := e.ResolvedMarkets()
	require.Len(t, resolved, 1)
	assert.Equal(t, uint64(2), resolved[0].PRNumber)
}

func TestUserPositionSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateMarket(repo, 14)
	require.NoError(t, err)
	_, err = e.TakeYesPosition(repo, 14, alice, eth(1))
	require.NoError(t, err)
	_, err = e.TakeNoPosition(repo, 14, alice, eth(2))
	require.NoError(t, err)

	pos, err := e.GetUserPosition(repo, 14, alice)
	require.NoError(t, err)
	assert.Zero(t, pos.YesTokens.Cmp(eth(1)))
	assert.Zero(t, pos.NoTokens.Cmp(eth(2)))
	assert.False(t, pos.HasClaimed)

	// Unknown bettor reads as a zero position.
	pos, err = e.GetUserPosition(repo, 14, carol)
	require.NoError(t, err)
	assert.Zero(t, pos.YesTokens.Sign())
}

func TestBettorMustFundStake(t *testing.T) {
	e, bank := newTestEngine(t)
	_, err := e.CreateMarket(repo, 15)
	require.NoError(t, err)

	poor := common.HexToAddress("0x000000000000000000000000000000000000dead")
	_, err = e.TakeYesPosition(repo, 15, poor, eth(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	m, err := e.GetMarket(repo, 15)
	require.NoError(t, err)
	assert.Zero(t, m.YesPool.Sign())
	assert.Zero(t, bank.BalanceOf(e.Escrow()).Sign())
}
