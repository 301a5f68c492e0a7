package cached

import (
	"context"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// WagerStore invalidates the duel snapshot after each placed wager, since
// Place mutates the duel's option pool underneath the DuelStore.
type WagerStore struct {
	inner domain.WagerStore
	cache domain.DuelCache
}

// NewWagerStore wraps inner with duel snapshot invalidation.
func NewWagerStore(inner domain.WagerStore, cache domain.DuelCache) *WagerStore {
	return &WagerStore{inner: inner, cache: cache}
}

func (s *WagerStore) Place(ctx context.Context, rec domain.WagerRecord) error {
	if err := s.inner.Place(ctx, rec); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, rec.DuelID)
	return nil
}

func (s *WagerStore) Get(ctx context.Context, duelID uuid.UUID, account domain.Account, option int) (domain.WagerRecord, error) {
	return s.inner.Get(ctx, duelID, account, option)
}

func (s *WagerStore) ListRefundable(ctx context.Context, duelID uuid.UUID, limit int) ([]domain.RefundEntry, error) {
	return s.inner.ListRefundable(ctx, duelID, limit)
}

// PayoutStore invalidates the duel snapshot after each refund chunk, since
// applied refunds decrement the duel's option pools.
type PayoutStore struct {
	inner domain.PayoutStore
	cache domain.DuelCache
}

// NewPayoutStore wraps inner with duel snapshot invalidation.
func NewPayoutStore(inner domain.PayoutStore, cache domain.DuelCache) *PayoutStore {
	return &PayoutStore{inner: inner, cache: cache}
}

func (s *PayoutStore) Cursor(ctx context.Context, duelID uuid.UUID, kind domain.CursorKind) (domain.Cursor, error) {
	return s.inner.Cursor(ctx, duelID, kind)
}

func (s *PayoutStore) ApplyPayoutChunk(ctx context.Context, duelID uuid.UUID, credits []domain.EarningsCredit, cursor domain.Cursor) error {
	return s.inner.ApplyPayoutChunk(ctx, duelID, credits, cursor)
}

func (s *PayoutStore) ApplyRefundChunk(ctx context.Context, duelID uuid.UUID, entries []domain.RefundEntry, cursor domain.Cursor) error {
	if err := s.inner.ApplyRefundChunk(ctx, duelID, entries, cursor); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, duelID)
	return nil
}
