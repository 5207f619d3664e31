package domain

import "errors"

// Sentinel errors for the accounting core. Handlers and services classify
// failures with errors.Is against these values; every mutating call that
// returns one of them has left no partial state behind.
var (
	// Validation failures.
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroPayment   = errors.New("zero payment")
	ErrInvalidKey    = errors.New("malformed key")
	ErrZeroAddress   = errors.New("zero address")

	// Authorization failures.
	ErrUnauthorized = errors.New("unauthorized")

	// Lifecycle / state failures.
	ErrNotFound         = errors.New("not found")
	ErrRepositoryExists = errors.New("repository already registered")
	ErrMarketExists     = errors.New("market already exists")
	ErrMarketNotActive  = errors.New("market not active")
	ErrAlreadyResolved  = errors.New("market already resolved")
	ErrNotResolved      = errors.New("market not resolved")
	ErrAlreadyClaimed   = errors.New("winnings already claimed")
	ErrNothingToClaim   = errors.New("nothing to claim")
	ErrCreationPaused   = errors.New("project creation paused")

	// Payment / solvency failures.
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInsufficientFee     = errors.New("insufficient creation fee")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrExceedsMaxSupply    = errors.New("exceeds max supply")
	ErrTransferFailed      = errors.New("transfer failed")

	// Infrastructure.
	ErrLockHeld = errors.New("lock already held")
)
