package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketInfo is a snapshot of one (repository, prNumber) prediction market.
// Pools are wei; token counts are claim units credited 1:1 with wei staked.
type MarketInfo struct {
	Key            common.Hash `json:"key"`
	Repository     string      `json:"repository"`
	PRNumber       uint64      `json:"pr_number"`
	IsActive       bool        `json:"is_active"`
	YesPool        *big.Int    `json:"yes_pool"`
	NoPool         *big.Int    `json:"no_pool"`
	TotalYesTokens *big.Int    `json:"total_yes_tokens"`
	TotalNoTokens  *big.Int    `json:"total_no_tokens"`
	Resolved       bool        `json:"resolved"`
	Outcome        bool        `json:"outcome"` // meaningful only when Resolved
	TotalClaimed   *big.Int    `json:"total_claimed"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// Position is one bettor's stake in a market.
type Position struct {
	MarketKey  common.Hash    `json:"market_key"`
	Address    common.Address `json:"address"`
	YesTokens  *big.Int       `json:"yes_tokens"`
	NoTokens   *big.Int       `json:"no_tokens"`
	HasClaimed bool           `json:"has_claimed"`
}

// PotentialWinnings holds the hypothetical payout for each outcome of an
// unresolved market. Zero when the caller holds no tokens on that side or
// the side has no stake at all.
type PotentialWinnings struct {
	IfYes *big.Int `json:"if_yes"`
	IfNo  *big.Int `json:"if_no"`
}

// Settlement is the archival record of a resolved market: final pools,
// outcome, and every position with its claim state at snapshot time.
type Settlement struct {
	Market     MarketInfo `json:"market"`
	Positions  []Position `json:"positions"`
	ArchivedAt time.Time  `json:"archived_at"`
}
