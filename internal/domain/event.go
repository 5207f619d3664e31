package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on the signal bus after a committed state mutation.
const (
	EventProjectCreated     = "project.created"
	EventProjectDeactivated = "project.deactivated"
	EventTokensMinted       = "token.minted"
	EventTokensRedeemed     = "token.redeemed"
	EventTokensBurned       = "token.burned"
	EventMarketCreated      = "market.created"
	EventPositionTaken      = "position.taken"
	EventMarketResolved     = "market.resolved"
	EventWinningsClaimed    = "winnings.claimed"
)

// Event is the envelope pushed to the signal bus and fanned out to
// WebSocket clients. Payload values must be JSON-serializable; big.Int
// amounts are stored as decimal strings.
type Event struct {
	ID      uuid.UUID      `json:"id"`
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload"`
}

// NewEvent builds an Event with a fresh ID stamped at the current time.
func NewEvent(typ string, payload map[string]any) Event {
	return Event{
		ID:      uuid.New(),
		Type:    typ,
		At:      time.Now().UTC(),
		Payload: payload,
	}
}
