// Package service implements the duel engine's operations: the lifecycle
// state machine, fee-adjusted settlement with chunked distribution, chunked
// refunds, the claim marketplace, the earnings ledger, and the admin
// surface. Services validate and gate; the stores apply each transition
// atomically.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Event bus channels.
const (
	ChannelDuels       = "duels"
	ChannelWagers      = "wagers"
	ChannelSettlements = "settlements"
	ChannelTrades      = "trades"
)

// lockTTL bounds how long a crashed holder can stall a duel.
const lockTTL = 30 * time.Second

// duelLockKey is the per-duel serialization key. Every mutating operation
// on a duel takes this lock, which is what preserves the pool-sum invariant
// on multi-threaded hosts.
func duelLockKey(id uuid.UUID) string {
	return "duel:" + id.String()
}

// Progress reports the outcome of one chunked distribution or refund call.
type Progress struct {
	Processed int           `json:"processed"`
	Cursor    domain.Cursor `json:"cursor"`
	Done      bool          `json:"done"`
}
