package domain

import (
	"time"

	"github.com/google/uuid"
)

// DuelKind distinguishes how a duel resolves.
type DuelKind string

const (
	// DuelKindCategorical has named options and is resolved externally by
	// the resolver naming the winner.
	DuelKindCategorical DuelKind = "categorical"
	// DuelKindPriceTrigger has exactly two options and resolves by comparing
	// an observed end price against the duel's trigger.
	DuelKindPriceTrigger DuelKind = "price_trigger"
)

// DuelStatus is the lifecycle state of a duel. Transitions are monotonic;
// there are no back-transitions and nothing changes status spontaneously.
type DuelStatus string

const (
	DuelStatusBootstrapped DuelStatus = "bootstrapped"
	DuelStatusLive         DuelStatus = "live"
	DuelStatusSettled      DuelStatus = "settled"
	DuelStatusCancelled    DuelStatus = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s DuelStatus) Terminal() bool {
	return s == DuelStatusSettled || s == DuelStatusCancelled
}

// TriggerCondition is the direction option 0 bets on.
type TriggerCondition string

const (
	TriggerAbove TriggerCondition = "above"
	TriggerBelow TriggerCondition = "below"
)

// TriggerType selects how the trigger value is interpreted.
type TriggerType string

const (
	// TriggerAbsolute compares the end price against the trigger value as a
	// fixed level.
	TriggerAbsolute TriggerType = "absolute"
	// TriggerDelta compares the end price against the start price shifted by
	// the trigger value.
	TriggerDelta TriggerType = "delta"
)

// PriceTrigger describes the resolution rule of a price-trigger duel.
// Option 0 wins when the end price lands strictly on the Condition side of
// the trigger level; option 1 wins on the strict opposite side; landing on
// the level itself (or inside the delta band) produces no winner.
type PriceTrigger struct {
	Symbol    string           `json:"symbol"`
	Condition TriggerCondition `json:"condition"`
	Type      TriggerType      `json:"type"`
	Value     float64          `json:"value"`
}

// Winner computes the winning option index for the observed start and end
// prices, or nil when neither option's condition is met.
func (t PriceTrigger) Winner(startPrice, endPrice float64) *int {
	var upper, lower float64
	switch t.Type {
	case TriggerDelta:
		upper = startPrice + t.Value
		lower = startPrice - t.Value
	default:
		upper = t.Value
		lower = t.Value
	}

	var win int
	switch {
	case endPrice > upper:
		win = 0
	case endPrice < lower:
		win = 1
	default:
		return nil
	}
	if t.Condition == TriggerBelow {
		win = 1 - win
	}
	return &win
}

// Duel is a proposition with two or more mutually exclusive options that
// participants stake value behind.
type Duel struct {
	ID      uuid.UUID  `json:"id"`
	Kind    DuelKind   `json:"kind"`
	Creator Account    `json:"creator"`
	Options []string   `json:"options"`
	Status  DuelStatus `json:"status"`

	// Pools holds the aggregate staked amount per option, index-aligned
	// with Options. The sum across options always equals total deposits
	// minus refunds attributable to this duel.
	Pools []Money `json:"pools"`

	MinWagerThreshold Money `json:"min_wager_threshold"`
	MinWagerPerTrade  Money `json:"min_wager_per_trade"`
	MaxPool           Money `json:"max_pool"`

	CreatedAt         time.Time `json:"created_at"`
	BootstrapEndsAt   time.Time `json:"bootstrap_ends_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ResolvingDeadline time.Time `json:"resolving_deadline"`

	// Price-trigger fields. StartPrice is recorded by Start, EndPrice by
	// Settle.
	Trigger    *PriceTrigger `json:"trigger,omitempty"`
	StartPrice *float64      `json:"start_price,omitempty"`
	EndPrice   *float64      `json:"end_price,omitempty"`

	// Settlement outcome. WinningOption stays nil for cancelled duels and
	// for price-trigger settlements where neither side's condition was met.
	WinningOption *int `json:"winning_option,omitempty"`

	// DistributablePot is the fee-adjusted amount owed to winning claim
	// holders, frozen at settlement so chunked distribution maths stay
	// stable across calls. WinningSupply is the winning option's claim
	// supply at the same instant.
	DistributablePot Money `json:"distributable_pot"`
	WinningSupply    Money `json:"winning_supply"`
}

// TotalPool returns the sum of all option pools.
func (d Duel) TotalPool() Money {
	var total Money
	for _, p := range d.Pools {
		total += p
	}
	return total
}

// ValidOption reports whether idx addresses one of the duel's options.
func (d Duel) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(d.Options)
}

// AcceptsWagers reports whether a join at asOf is inside an open wager
// window: the bootstrap window while Bootstrapped, or up to expiry while
// Live.
func (d Duel) AcceptsWagers(asOf time.Time) bool {
	switch d.Status {
	case DuelStatusBootstrapped:
		return asOf.Before(d.BootstrapEndsAt)
	case DuelStatusLive:
		return asOf.Before(d.ExpiresAt)
	default:
		return false
	}
}

// ResolutionInput carries the resolver's settlement evidence: the winning
// option for categorical duels, the observed end price for price-trigger
// duels.
type ResolutionInput struct {
	WinningOption *int     `json:"winning_option,omitempty"`
	EndPrice      *float64 `json:"end_price,omitempty"`
}

// RequestStatus is the state of a two-phase creation request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRevoked  RequestStatus = "revoked"
)

// CreateRequest is an unprivileged duel-creation intake awaiting explicit
// approval by a resolver. The duel itself does not exist until approval.
type CreateRequest struct {
	ID        uuid.UUID     `json:"id"`
	Requester Account       `json:"requester"`
	Params    CreateParams  `json:"params"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// CreateParams are the caller-supplied parameters of a new duel. Deadlines
// derived from the engine's configured bootstrap and resolving periods are
// filled in at approval time, not here.
type CreateParams struct {
	Kind             DuelKind      `json:"kind"`
	Options          []string      `json:"options"`
	MinWagerPerTrade Money         `json:"min_wager_per_trade"`
	ExpiresAt        time.Time     `json:"expires_at"`
	Trigger          *PriceTrigger `json:"trigger,omitempty"`
}
