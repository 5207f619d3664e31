package domain

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ProjectKey derives the canonical key for a (githubOwner, githubRepo) pair.
// The comparison is case-sensitive; "Acme/widget" and "acme/widget" are
// distinct projects.
func ProjectKey(githubOwner, githubRepo string) (common.Hash, error) {
	if strings.TrimSpace(githubOwner) == "" || strings.TrimSpace(githubRepo) == "" {
		return common.Hash{}, ErrInvalidKey
	}
	if strings.Contains(githubOwner, "/") {
		return common.Hash{}, ErrInvalidKey
	}
	return keccak(githubOwner + "/" + githubRepo), nil
}

// MarketKey derives the canonical key for a (repository, prNumber) pair.
// repository is the "owner/repo" form.
func MarketKey(repository string, prNumber uint64) (common.Hash, error) {
	if strings.TrimSpace(repository) == "" {
		return common.Hash{}, ErrInvalidKey
	}
	return keccak(repository + "#" + strconv.FormatUint(prNumber, 10)), nil
}

// ReserveAddress derives a deterministic account address for an engine-owned
// reserve or escrow, namespaced so it can never collide with a user wallet.
func ReserveAddress(namespace string, key common.Hash) common.Address {
	h := keccak("pullmarket:" + namespace + ":" + key.Hex())
	return common.BytesToAddress(h[12:])
}

func keccak(s string) common.Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write([]byte(s))
	var h common.Hash
	d.Sum(h[:0])
	return h
}
