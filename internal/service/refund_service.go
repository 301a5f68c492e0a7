package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// RefundService returns every depositor's exact stake after a cancellation,
// in bounded resumable chunks. Each applied chunk credits earnings, zeroes
// the wager records, burns the depositor's claims, and shrinks the pools in
// one atomic store step.
type RefundService struct {
	duels   domain.DuelStore
	wagers  domain.WagerStore
	payouts domain.PayoutStore
	locks   domain.LockManager
	audit   domain.AuditStore
	params  domain.ParamsProvider
	logger  *slog.Logger
}

// NewRefundService creates a RefundService with all required dependencies.
func NewRefundService(
	duels domain.DuelStore,
	wagers domain.WagerStore,
	payouts domain.PayoutStore,
	locks domain.LockManager,
	audit domain.AuditStore,
	params domain.ParamsProvider,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		duels:   duels,
		wagers:  wagers,
		payouts: payouts,
		locks:   locks,
		audit:   audit,
		params:  params,
		logger:  logger.With(slog.String("component", "refund")),
	}
}

// ContinueRefunds processes the next refund chunk of a cancelled duel.
// Because applied refunds zero their wager records, each call walks the
// remaining depositor set from the top; once the cursor reports done,
// further calls are no-ops.
func (s *RefundService) ContinueRefunds(ctx context.Context, duelID uuid.UUID) (Progress, error) {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return Progress{}, fmt.Errorf("refund: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return Progress{}, fmt.Errorf("refund: get duel %s: %w", duelID, err)
	}
	if duel.Status != domain.DuelStatusCancelled {
		return Progress{}, fmt.Errorf("refund: duel %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}

	cursor, err := s.payouts.Cursor(ctx, duelID, domain.CursorRefund)
	if err != nil {
		return Progress{}, fmt.Errorf("refund: cursor %s: %w", duelID, err)
	}
	if cursor.Done {
		return Progress{Cursor: cursor, Done: true}, nil
	}

	chunk := s.params.Params().RefundChunkSize
	entries, err := s.wagers.ListRefundable(ctx, duelID, chunk)
	if err != nil {
		return Progress{}, fmt.Errorf("refund: list refundable: %w", err)
	}

	next := domain.Cursor{
		Next:      cursor.Next + len(entries),
		Processed: cursor.Processed + len(entries),
		Done:      len(entries) < chunk,
	}
	if err := s.payouts.ApplyRefundChunk(ctx, duelID, entries, next); err != nil {
		return Progress{}, fmt.Errorf("refund: apply chunk: %w", err)
	}

	if next.Done {
		s.auditLog(ctx, "refunds_completed", map[string]any{
			"duel_id":    duelID.String(),
			"depositors": next.Processed,
		})
	}
	s.logger.InfoContext(ctx, "refund: chunk applied",
		slog.String("duel_id", duelID.String()),
		slog.Int("refunded", len(entries)),
		slog.Bool("done", next.Done),
	)
	return Progress{Processed: len(entries), Cursor: next, Done: next.Done}, nil
}

func (s *RefundService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "refund: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
