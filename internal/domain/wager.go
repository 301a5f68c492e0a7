package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WagerRecord is the deposited amount behind one option of one duel by one
// account. It only grows while the duel accepts wagers and is zeroed by the
// refund engine; claim tokens, not wager records, carry payout rights.
type WagerRecord struct {
	DuelID    uuid.UUID `json:"duel_id"`
	Account   Account   `json:"account"`
	Option    int       `json:"option"`
	Amount    Money     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClaimID identifies the fungible claim token of one (duel, option) pair.
type ClaimID struct {
	DuelID uuid.UUID `json:"duel_id"`
	Option int       `json:"option"`
}

// String renders the claim id as "duelID/option", the form used in cache
// keys and log lines.
func (c ClaimID) String() string {
	return fmt.Sprintf("%s/%d", c.DuelID, c.Option)
}

// ClaimHolding is one account's balance of a claim token.
type ClaimHolding struct {
	Claim   ClaimID `json:"claim"`
	Account Account `json:"account"`
	Balance Money   `json:"balance"`
}

// RefundEntry aggregates one depositor's refundable stake across every
// option of a cancelled duel.
type RefundEntry struct {
	Account   Account `json:"account"`
	PerOption []Money `json:"per_option"`
	Total     Money   `json:"total"`
}

// EarningsCredit is a single pending credit to an account's withdrawable
// earnings, produced by settlement, refunds, or marketplace proceeds.
type EarningsCredit struct {
	Account Account `json:"account"`
	Amount  Money   `json:"amount"`
}
