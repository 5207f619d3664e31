package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
)

var (
	owner      = common.HexToAddress("0x0000000000000000000000000000000000001001")
	treasury   = common.HexToAddress("0x0000000000000000000000000000000000001002")
	rewardPool = common.HexToAddress("0x0000000000000000000000000000000000001003")
	buyer      = common.HexToAddress("0x0000000000000000000000000000000000001004")
)

// smallCurve uses whole-number units so expected costs can be written by
// hand: batch 1000, increment 1, starting price 1 per token, no pre-mint.
func smallCurve() CurveParams {
	return CurveParams{
		InitialPrice:   big.NewInt(1),
		PriceIncrement: big.NewInt(1),
		BatchSize:      big.NewInt(1000),
		Unit:           big.NewInt(1),
		InitialSupply:  big.NewInt(0),
		MaxSupply:      big.NewInt(10_000_000),
	}
}

func newTestToken(t *testing.T, curve CurveParams) (*Token, *ledger.Bank) {
	t.Helper()
	bank := ledger.NewBank()
	tok, err := New(Config{
		Name:        "Test ProjectCoin",
		Symbol:      "TPC",
		GithubOwner: "testowner",
		GithubRepo:  "testrepo",
		Owner:       owner,
		Treasury:    treasury,
		RewardPool:  rewardPool,
		Curve:       curve,
		Fees:        DefaultFees(),
	}, bank)
	require.NoError(t, err)
	return tok, bank
}

func TestMintCostStraddlesBatches(t *testing.T) {
	tok, _ := newTestToken(t, smallCurve())

	// 1000×1 + 1000×2 + 500×3 = 4500.
	cost, err := tok.CalculateMintCost(big.NewInt(2500))
	require.NoError(t, err)
	assert.Equal(t, int64(4500), cost.Int64())
}

func TestMintCostAdditiveAcrossBoundary(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())

	whole, err := tok.CalculateMintCost(big.NewInt(2500))
	require.NoError(t, err)

	// Same 2500 units bought as 1700 + 800 must cost the same in total.
	first, err := tok.CalculateMintCost(big.NewInt(1700))
	require.NoError(t, err)
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1700), first))

	second, err := tok.CalculateMintCost(big.NewInt(800))
	require.NoError(t, err)

	sum := new(big.Int).Add(first, second)
	assert.Zero(t, sum.Cmp(whole), "cost must be additive across a straddled boundary")
}

func TestMintCostMonotonicInTotalMinted(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(100_000_000)))

	prev := new(big.Int)
	for i := 0; i < 10; i++ {
		cost, err := tok.CalculateMintCost(big.NewInt(700))
		require.NoError(t, err)
		require.True(t, cost.Cmp(prev) >= 0, "curve must be non-decreasing")
		if i > 0 && i%3 == 0 {
			require.True(t, cost.Cmp(prev) > 0, "crossing batches must raise the cost")
		}
		prev = cost
		require.NoError(t, tok.MintTokens(buyer, big.NewInt(700), cost))
	}
}

func TestMintRejectsZeroAndUnderpayment(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(10_000)))

	_, err := tok.CalculateMintCost(big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	cost, err := tok.CalculateMintCost(big.NewInt(1000))
	require.NoError(t, err)
	short := new(big.Int).Sub(cost, big.NewInt(1))
	err = tok.MintTokens(buyer, big.NewInt(1000), short)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
	assert.Equal(t, int64(0), tok.BalanceOf(buyer).Int64())
}

func TestMintAdvancesPricePerBatch(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	cost, err := tok.CalculateMintCost(big.NewInt(1000))
	require.NoError(t, err)
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), cost))
	assert.Equal(t, int64(2), tok.MintingStats().CurrentPrice.Int64())

	// 2500 more crosses two boundaries.
	cost, err = tok.CalculateMintCost(big.NewInt(2500))
	require.NoError(t, err)
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(2500), cost))
	assert.Equal(t, int64(4), tok.MintingStats().CurrentPrice.Int64())
}

func TestMintFeeSplit(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	cost, err := tok.CalculateMintCost(big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, int64(1000), cost.Int64())
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), cost))

	assert.Equal(t, int64(300), bank.BalanceOf(treasury).Int64())   // 30%
	assert.Equal(t, int64(500), bank.BalanceOf(rewardPool).Int64()) // 50%
	assert.Equal(t, int64(50), bank.BalanceOf(owner).Int64())       // creator 5%
	assert.Equal(t, int64(150), tok.ReserveBalance().Int64())       // rest backs redemptions
}

func TestMintOverpaymentKeptAndSplit(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	// Paying 1100 for a 1000-cost mint: the excess rides the same split.
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), big.NewInt(1100)))
	assert.Equal(t, int64(330), bank.BalanceOf(treasury).Int64())
	assert.Equal(t, int64(550), bank.BalanceOf(rewardPool).Int64())
	assert.Equal(t, int64(55), bank.BalanceOf(owner).Int64())
	assert.Equal(t, int64(165), tok.ReserveBalance().Int64())
	assert.Equal(t, int64(1_000_000-1100), bank.BalanceOf(buyer).Int64())
}

func TestFeeSplitConservesEveryWei(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(10_000_000)))

	// A payment that does not divide evenly by the bps table.
	payment := big.NewInt(1003)
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), payment))

	distributed := new(big.Int)
	distributed.Add(distributed, bank.BalanceOf(treasury))
	distributed.Add(distributed, bank.BalanceOf(rewardPool))
	distributed.Add(distributed, bank.BalanceOf(owner))
	distributed.Add(distributed, tok.ReserveBalance())
	assert.Zero(t, distributed.Cmp(payment), "no wei may vanish or be created by the split")
}

func TestRedeemPaysSpotMinusFee(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	require.NoError(t, tok.MintTokens(buyer, big.NewInt(2500), big.NewInt(4500)))
	// Price is now 3; redeeming 100 pays floor(100*3*0.98) = 294.
	value, err := tok.CalculateRedemptionValue(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(294), value.Int64())

	before := bank.BalanceOf(buyer)
	paid, err := tok.Redeem(buyer, big.NewInt(100))
	require.NoError(t, err)
	assert.Zero(t, paid.Cmp(value))
	assert.Equal(t, int64(2400), tok.BalanceOf(buyer).Int64())
	assert.Equal(t, int64(100), tok.MintingStats().TotalBurned.Int64())

	after := bank.BalanceOf(buyer)
	assert.Zero(t, new(big.Int).Sub(after, before).Cmp(value))
}

func TestRoundTripAlwaysLoses(t *testing.T) {
	// Mint n then immediately redeem n: the curve integral plus the burn
	// fee guarantee a strict loss for any n and any starting state.
	for _, n := range []int64{1, 10, 999, 1000, 1001, 2500, 5000} {
		tok, bank := newTestToken(t, smallCurve())
		require.NoError(t, bank.Deposit(buyer, big.NewInt(100_000_000)))

		cost, err := tok.CalculateMintCost(big.NewInt(n))
		require.NoError(t, err)
		require.NoError(t, tok.MintTokens(buyer, big.NewInt(n), cost))

		// The reserve only keeps 15% of the payment, so a full-size
		// redemption may be blocked by solvency; the property holds on
		// whatever the engine actually pays out.
		back, err := tok.Redeem(buyer, big.NewInt(n))
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInsufficientReserve)
			continue
		}
		assert.True(t, back.Cmp(cost) < 0, "n=%d: round trip must lose (paid %s, got %s)", n, cost, back)
	}
}

func TestRedeemBlockedByReserve(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), big.NewInt(1000)))
	// Reserve holds 150; redeeming all 1000 would cost 1960 at spot 2.
	_, err := tok.Redeem(buyer, big.NewInt(1000))
	assert.ErrorIs(t, err, domain.ErrInsufficientReserve)
	// Nothing changed.
	assert.Equal(t, int64(1000), tok.BalanceOf(buyer).Int64())
	assert.Equal(t, int64(0), tok.MintingStats().TotalBurned.Int64())
}

func TestRedeemRequiresBalance(t *testing.T) {
	tok, _ := newTestToken(t, smallCurve())
	_, err := tok.Redeem(buyer, big.NewInt(5))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestPriceRatchetIsOneWay(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	require.NoError(t, tok.MintTokens(buyer, big.NewInt(2000), big.NewInt(3000)))
	priceAfterMint := tok.MintingStats().CurrentPrice

	// Burns and redemptions never lower the price. That asymmetry is the
	// intended scarcity mechanic, so pin it: if this test starts failing
	// someone changed the economics, not fixed a bug.
	require.NoError(t, tok.Burn(buyer, big.NewInt(1500)))
	_, err := tok.Redeem(buyer, big.NewInt(100))
	require.NoError(t, err)

	assert.Zero(t, tok.MintingStats().CurrentPrice.Cmp(priceAfterMint))
}

func TestInitialSupplyCreditedToOwner(t *testing.T) {
	curve := smallCurve()
	curve.InitialSupply = big.NewInt(1_000_000)
	tok, _ := newTestToken(t, curve)

	assert.Equal(t, int64(1_000_000), tok.BalanceOf(owner).Int64())
	stats := tok.MintingStats()
	assert.Equal(t, int64(1_000_000), stats.TotalMinted.Int64())
	assert.Equal(t, int64(1_000_000), stats.CirculatingSupply.Int64())
	// The pre-mint does not move the curve.
	assert.Equal(t, int64(1), stats.CurrentPrice.Int64())
}

func TestMaxSupplyEnforced(t *testing.T) {
	curve := smallCurve()
	curve.MaxSupply = big.NewInt(1500)
	tok, bank := newTestToken(t, curve)
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))

	err := tok.MintTokens(buyer, big.NewInt(2000), big.NewInt(10_000))
	assert.ErrorIs(t, err, domain.ErrExceedsMaxSupply)
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1500), big.NewInt(2000)))
}

func TestBuybackBurnOwnerOnly(t *testing.T) {
	tok, bank := newTestToken(t, smallCurve())
	require.NoError(t, bank.Deposit(buyer, big.NewInt(1_000_000)))
	require.NoError(t, tok.MintTokens(buyer, big.NewInt(1000), big.NewInt(1000)))

	// Park tokens on the contract, then burn them.
	require.NoError(t, tok.Transfer(buyer, tok.ID(), big.NewInt(600)))

	assert.ErrorIs(t, tok.BuybackBurn(buyer, big.NewInt(100)), domain.ErrUnauthorized)

	reserveBefore := tok.ReserveBalance()
	require.NoError(t, tok.BuybackBurn(owner, big.NewInt(500)))
	assert.Equal(t, int64(100), tok.BalanceOf(tok.ID()).Int64())
	assert.Equal(t, int64(500), tok.MintingStats().TotalBurned.Int64())
	// No ETH moved.
	assert.Zero(t, tok.ReserveBalance().Cmp(reserveBefore))

	assert.ErrorIs(t, tok.BuybackBurn(owner, big.NewInt(200)), domain.ErrInsufficientBalance)
}

func TestUpdateTreasuryOwnerOnly(t *testing.T) {
	tok, _ := newTestToken(t, smallCurve())
	next := common.HexToAddress("0x0000000000000000000000000000000000002002")

	assert.ErrorIs(t, tok.UpdateTreasury(buyer, next), domain.ErrUnauthorized)
	require.NoError(t, tok.UpdateTreasury(owner, next))
	assert.Equal(t, next, tok.Treasury())
}

func TestRepositoryInfo(t *testing.T) {
	tok, _ := newTestToken(t, smallCurve())
	info := tok.RepositoryInfo()
	assert.Equal(t, "testowner", info.GithubOwner)
	assert.Equal(t, "testrepo", info.GithubRepo)
	assert.Equal(t, "https://github.com/testowner/testrepo", info.RepositoryURL)
}
