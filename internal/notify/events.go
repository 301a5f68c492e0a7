package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Event types the notifier can be configured to forward.
const (
	EventDuelSettled      = "duel_settled"
	EventDuelCancelled    = "duel_cancelled"
	EventRefundsCompleted = "refunds_completed"
	EventError            = "error"
)

// DuelSettled notifies operators that a duel finished settling.
func (n *Notifier) DuelSettled(ctx context.Context, d domain.Duel) error {
	winner := "none"
	if d.WinningOption != nil && d.ValidOption(*d.WinningOption) {
		winner = d.Options[*d.WinningOption]
	}
	msg := fmt.Sprintf("Winner: %s\nPot: %s\nWinning supply: %s",
		winner, d.DistributablePot, d.WinningSupply)
	return n.Notify(ctx, EventDuelSettled, fmt.Sprintf("Duel settled: %s", d.ID), msg)
}

// DuelCancelled notifies operators that a duel was cancelled and refunds are
// pending.
func (n *Notifier) DuelCancelled(ctx context.Context, d domain.Duel) error {
	msg := fmt.Sprintf("Refundable pool: %s", d.TotalPool())
	return n.Notify(ctx, EventDuelCancelled, fmt.Sprintf("Duel cancelled: %s", d.ID), msg)
}

// RefundsCompleted notifies operators that a cancelled duel's refund run
// finished.
func (n *Notifier) RefundsCompleted(ctx context.Context, duelID uuid.UUID, refunded int) error {
	msg := fmt.Sprintf("Depositors refunded: %d", refunded)
	return n.Notify(ctx, EventRefundsCompleted, fmt.Sprintf("Refunds completed: %s", duelID), msg)
}

// Error notifies operators about an engine failure that needs attention.
func (n *Notifier) Error(ctx context.Context, where string, err error) error {
	return n.Notify(ctx, EventError, fmt.Sprintf("Engine error: %s", where), err.Error())
}
