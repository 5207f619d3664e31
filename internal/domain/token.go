package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MintingStats is the read-only snapshot returned by the token engine.
// All amounts are in token base units; CurrentPrice is wei per whole token.
type MintingStats struct {
	CurrentPrice      *big.Int `json:"current_price"`
	TotalMinted       *big.Int `json:"total_minted"`
	TotalBurned       *big.Int `json:"total_burned"`
	CirculatingSupply *big.Int `json:"circulating_supply"`
	RemainingSupply   *big.Int `json:"remaining_supply"`
}

// RepositoryInfo identifies the GitHub repository a token is bound to.
type RepositoryInfo struct {
	GithubOwner   string `json:"github_owner"`
	GithubRepo    string `json:"github_repo"`
	RepositoryURL string `json:"repository_url"`
}

// TokenInfo is the full public view of a deployed ProjectCoin.
type TokenInfo struct {
	ID          common.Address `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	GithubOwner string         `json:"github_owner"`
	GithubRepo  string         `json:"github_repo"`
	Owner       common.Address `json:"owner"`
	Creator     common.Address `json:"creator"`
	Treasury    common.Address `json:"treasury"`
	RewardPool  common.Address `json:"reward_pool"`
	Stats       MintingStats   `json:"stats"`
	Reserve     *big.Int       `json:"reserve"` // ETH backing redemptions, wei
}
