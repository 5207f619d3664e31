package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectKeyDeterministic(t *testing.T) {
	a, err := ProjectKey("acme", "widget")
	require.NoError(t, err)
	b, err := ProjectKey("acme", "widget")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestProjectKeyCaseSensitive(t *testing.T) {
	a, err := ProjectKey("Acme", "widget")
	require.NoError(t, err)
	b, err := ProjectKey("acme", "widget")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestProjectKeyRejectsEmptyAndSlashed(t *testing.T) {
	_, err := ProjectKey("", "widget")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = ProjectKey("acme", "  ")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = ProjectKey("acme/extra", "widget")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMarketKeyDistinguishesPRs(t *testing.T) {
	a, err := MarketKey("acme/widget", 1)
	require.NoError(t, err)
	b, err := MarketKey("acme/widget", 2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// "acme/widget" PR 12 must not collide with "acme/widget1" PR 2.
	c, err := MarketKey("acme/widget1", 2)
	require.NoError(t, err)
	d, err := MarketKey("acme/widget", 12)
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
}

func TestMarketKeyRejectsEmptyRepository(t *testing.T) {
	_, err := MarketKey("", 1)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestReserveAddressNamespaced(t *testing.T) {
	key, err := ProjectKey("acme", "widget")
	require.NoError(t, err)

	reserve := ReserveAddress("token-reserve", key)
	escrow := ReserveAddress("market-escrow", key)
	assert.NotEqual(t, reserve, escrow)
	assert.NotEqual(t, common.Address{}, reserve)

	// Deterministic per (namespace, key).
	assert.Equal(t, reserve, ReserveAddress("token-reserve", key))
}
