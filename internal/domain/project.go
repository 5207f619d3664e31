package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Project is a registry entry tying a GitHub repository to its ProjectCoin.
type Project struct {
	Key         common.Hash    `json:"key"`
	TokenID     common.Address `json:"token_id"` // reserve account of the token, used as its identity
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	GithubOwner string         `json:"github_owner"`
	GithubRepo  string         `json:"github_repo"`
	Creator     common.Address `json:"creator"`
	CreatedAt   time.Time      `json:"created_at"`
	IsActive    bool           `json:"is_active"`
}

// RepositoryURL returns the canonical GitHub URL for the project.
func (p Project) RepositoryURL() string {
	return "https://github.com/" + p.GithubOwner + "/" + p.GithubRepo
}
