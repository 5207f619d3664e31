package registry

import (
	"fmt"
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
	regOwner   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	treasury   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	rewardPool = common.HexToAddress("0x0000000000000000000000000000000000000003")
	creator    = common.HexToAddress("0x0000000000000000000000000000000000000004")
	other      = common.HexToAddress("0x0000000000000000000000000000000000000005")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).SetUint64(params.Ether))
}

func centiEth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).SetUint64(params.Ether/100))
}

func newTestRegistry(t *testing.T) (*Registry, *ledger.Bank) {
	t.Helper()
	bank := ledger.NewBank()
	r, err := New(Config{
		Owner:             regOwner,
		DefaultTreasury:   treasury,
		DefaultRewardPool: rewardPool,
	}, bank)
	require.NoError(t, err)
	require.NoError(t, bank.Deposit(creator, eth(10)))
	require.NoError(t, bank.Deposit(other, eth(10)))
	return r, bank
}

func widgetParams() CreateParams {
	return CreateParams{
		Name:        "Widget Coin",
		Symbol:      "WDG",
		GithubOwner: "acme",
		GithubRepo:  "widget",
	}
}

func TestCreateProjectCoin(t *testing.T) {
	r, bank := newTestRegistry(t)

	ownerBefore := bank.BalanceOf(regOwner)
	p, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	require.NoError(t, err)

	assert.Equal(t, "acme", p.GithubOwner)
	assert.Equal(t, creator, p.Creator)
	assert.True(t, p.IsActive)
	assert.NotEqual(t, common.Address{}, p.TokenID)

	// Fee lands with the registry owner.
	got := new(big.Int).Sub(bank.BalanceOf(regOwner), ownerBefore)
	assert.Zero(t, got.Cmp(centiEth(1)))

	// Creator holds the 1M-token initial supply.
	tok, err := r.GetTokenByRepo("acme", "widget")
	require.NoError(t, err)
	wantSupply := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).SetUint64(params.Ether))
	assert.Zero(t, tok.BalanceOf(creator).Cmp(wantSupply))

	assert.True(t, r.HasToken("acme", "widget"))
	assert.False(t, r.HasToken("acme", "gadget"))
	assert.Equal(t, 1, r.TotalTokens())
}

func TestRepositoryUniqueness(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	require.NoError(t, err)

	// Same repository is taken for everyone, not just the first creator.
	_, err = r.CreateProjectCoin(other, widgetParams(), centiEth(1))
	assert.ErrorIs(t, err, domain.ErrRepositoryExists)
	_, err = r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	assert.ErrorIs(t, err, domain.ErrRepositoryExists)
	assert.Equal(t, 1, r.TotalTokens())
}

func TestCreationFeeGate(t *testing.T) {
	r, bank := newTestRegistry(t)

	_, err := r.CreateProjectCoin(creator, widgetParams(), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientFee)
	_, err = r.CreateProjectCoin(creator, widgetParams(), big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFee)

	// Exact fee and overpayment both pass; overpayment is kept in full.
	ownerBefore := bank.BalanceOf(regOwner)
	_, err = r.CreateProjectCoin(creator, widgetParams(), centiEth(3))
	require.NoError(t, err)
	got := new(big.Int).Sub(bank.BalanceOf(regOwner), ownerBefore)
	assert.Zero(t, got.Cmp(centiEth(3)))
}

func TestCreationFeeMustBeFunded(t *testing.T) {
	r, _ := newTestRegistry(t)

	broke := common.HexToAddress("0x000000000000000000000000000000000000beef")
	_, err := r.CreateProjectCoin(broke, widgetParams(), centiEth(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.False(t, r.HasToken("acme", "widget"))
}

func TestCreationPause(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.SetCreationPaused(regOwner, true))
	_, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	assert.ErrorIs(t, err, domain.ErrCreationPaused)

	require.NoError(t, r.SetCreationPaused(regOwner, false))
	_, err = r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetCreationPaused(creator, true), domain.ErrUnauthorized)
}

func TestZeroAddressesSelectDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)

	// No treasury/reward pool given: the registry defaults apply.
	p, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	require.NoError(t, err)
	tok, err := r.GetToken(p.TokenID)
	require.NoError(t, err)
	assert.Equal(t, treasury, tok.Treasury())
	assert.Equal(t, rewardPool, tok.RewardPool())

	custom := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	params2 := widgetParams()
	params2.GithubRepo = "gadget"
	params2.Treasury = custom
	p2, err := r.CreateProjectCoin(creator, params2, centiEth(1))
	require.NoError(t, err)
	tok2, err := r.GetToken(p2.TokenID)
	require.NoError(t, err)
	assert.Equal(t, custom, tok2.Treasury())
	assert.Equal(t, rewardPool, tok2.RewardPool())
}

func TestInvalidRepositoryKey(t *testing.T) {
	r, _ := newTestRegistry(t)

	p := widgetParams()
	p.GithubOwner = ""
	_, err := r.CreateProjectCoin(creator, p, centiEth(1))
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	p = widgetParams()
	p.GithubRepo = ""
	_, err = r.CreateProjectCoin(creator, p, centiEth(1))
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestCreatorAndOwnerIndices(t *testing.T) {
	r, _ := newTestRegistry(t)

	var want []common.Address
	for i := 0; i < 3; i++ {
		p := widgetParams()
		p.GithubRepo = fmt.Sprintf("repo-%d", i)
		proj, err := r.CreateProjectCoin(creator, p, centiEth(1))
		require.NoError(t, err)
		want = append(want, proj.TokenID)
	}
	p := widgetParams()
	p.GithubOwner = "umbrella"
	_, err := r.CreateProjectCoin(other, p, centiEth(1))
	require.NoError(t, err)

	got := r.GetTokensByCreator(creator)
	assert.Equal(t, want, got)
	assert.Len(t, r.GetTokensByCreator(other), 1)
	assert.Empty(t, r.GetTokensByCreator(regOwner))

	acme := r.SearchByOwner("acme")
	require.Len(t, acme, 3)
	for i, proj := range acme {
		assert.Equal(t, fmt.Sprintf("repo-%d", i), proj.GithubRepo)
	}
	assert.Len(t, r.SearchByOwner("umbrella"), 1)
	assert.Empty(t, r.SearchByOwner("nobody"))
}

func TestGetAllProjectsPagination(t *testing.T) {
	r, _ := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		p := widgetParams()
		p.GithubRepo = fmt.Sprintf("repo-%d", i)
		_, err := r.CreateProjectCoin(creator, p, centiEth(1))
		require.NoError(t, err)
	}

	page, total := r.GetAllProjects(0, 2)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "repo-0", page[0].GithubRepo)
	assert.Equal(t, "repo-1", page[1].GithubRepo)

	page, _ = r.GetAllProjects(3, 10)
	require.Len(t, page, 2)
	assert.Equal(t, "repo-3", page[0].GithubRepo)
	assert.Equal(t, "repo-4", page[1].GithubRepo)

	page, total = r.GetAllProjects(5, 2)
	assert.Nil(t, page)
	assert.Equal(t, 5, total)

	page, _ = r.GetAllProjects(-1, 2)
	assert.Nil(t, page)
	page, _ = r.GetAllProjects(0, 0)
	assert.Nil(t, page)
}

func TestUpdateCreationFee(t *testing.T) {
	r, _ := newTestRegistry(t)

	assert.ErrorIs(t, r.UpdateCreationFee(creator, eth(1)), domain.ErrUnauthorized)
	assert.ErrorIs(t, r.UpdateCreationFee(regOwner, nil), domain.ErrInvalidAmount)
	assert.ErrorIs(t, r.UpdateCreationFee(regOwner, big.NewInt(-1)), domain.ErrInvalidAmount)

	require.NoError(t, r.UpdateCreationFee(regOwner, eth(1)))
	assert.Zero(t, r.CreationFee().Cmp(eth(1)))

	_, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFee)
	_, err = r.CreateProjectCoin(creator, widgetParams(), eth(1))
	require.NoError(t, err)

	// A free registry is allowed.
	require.NoError(t, r.UpdateCreationFee(regOwner, big.NewInt(0)))
}

func TestDeactivateProject(t *testing.T) {
	r, _ := newTestRegistry(t)

	p, err := r.CreateProjectCoin(creator, widgetParams(), centiEth(1))
	require.NoError(t, err)

	assert.ErrorIs(t, r.DeactivateProject(creator, p.TokenID, "spam"), domain.ErrUnauthorized)
	assert.ErrorIs(t, r.DeactivateProject(regOwner, other, "unknown"), domain.ErrNotFound)

	require.NoError(t, r.DeactivateProject(regOwner, p.TokenID, "spam"))
	info, err := r.GetProjectInfo(p.TokenID)
	require.NoError(t, err)
	assert.False(t, info.IsActive)

	// Deactivation hides the project but never touches balances.
	tok, err := r.GetToken(p.TokenID)
	require.NoError(t, err)
	assert.True(t, tok.BalanceOf(creator).Sign() > 0)
}

func TestLookupUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.GetTokenByRepo("acme", "widget")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.GetToken(other)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.GetProjectInfo(other)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
