// Package cached decorates stores with a read-model cache. Only the duel
// snapshot is cached: it is the hottest read on the API surface and every
// mutation path funnels through the decorated store, so invalidation stays
// simple.
package cached

import (
	"context"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// DuelStore wraps a domain.DuelStore with a DuelCache. Reads of single duels
// are served from the cache when possible; every status transition and pool
// mutation invalidates the cached snapshot. Cache failures are swallowed so
// the store of record always wins.
type DuelStore struct {
	inner domain.DuelStore
	cache domain.DuelCache
}

// NewDuelStore wraps inner with the given cache.
func NewDuelStore(inner domain.DuelStore, cache domain.DuelCache) *DuelStore {
	return &DuelStore{inner: inner, cache: cache}
}

func (s *DuelStore) InsertRequest(ctx context.Context, req domain.CreateRequest) error {
	return s.inner.InsertRequest(ctx, req)
}

func (s *DuelStore) GetRequest(ctx context.Context, id uuid.UUID) (domain.CreateRequest, error) {
	return s.inner.GetRequest(ctx, id)
}

func (s *DuelStore) SetRequestStatus(ctx context.Context, id uuid.UUID, from, to domain.RequestStatus) error {
	return s.inner.SetRequestStatus(ctx, id, from, to)
}

func (s *DuelStore) ListRequests(ctx context.Context, status domain.RequestStatus, opts domain.ListOpts) ([]domain.CreateRequest, error) {
	return s.inner.ListRequests(ctx, status, opts)
}

func (s *DuelStore) Insert(ctx context.Context, d domain.Duel) error {
	if err := s.inner.Insert(ctx, d); err != nil {
		return err
	}
	_ = s.cache.Set(ctx, d)
	return nil
}

func (s *DuelStore) Get(ctx context.Context, id uuid.UUID) (domain.Duel, error) {
	if d, err := s.cache.Get(ctx, id); err == nil {
		return d, nil
	}
	d, err := s.inner.Get(ctx, id)
	if err != nil {
		return domain.Duel{}, err
	}
	_ = s.cache.Set(ctx, d)
	return d, nil
}

func (s *DuelStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Duel, error) {
	return s.inner.List(ctx, opts)
}

func (s *DuelStore) ListByStatus(ctx context.Context, status domain.DuelStatus, opts domain.ListOpts) ([]domain.Duel, error) {
	return s.inner.ListByStatus(ctx, status, opts)
}

func (s *DuelStore) MarkLive(ctx context.Context, id uuid.UUID, startPrice *float64) error {
	if err := s.inner.MarkLive(ctx, id, startPrice); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, id)
	return nil
}

func (s *DuelStore) MarkSettled(ctx context.Context, id uuid.UUID, outcome domain.SettlementOutcome) error {
	if err := s.inner.MarkSettled(ctx, id, outcome); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, id)
	return nil
}

func (s *DuelStore) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	if err := s.inner.MarkCancelled(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, id)
	return nil
}

func (s *DuelStore) OpenLiquidity(ctx context.Context) (domain.Money, error) {
	return s.inner.OpenLiquidity(ctx)
}
