package cached

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

// mapCache is an in-process DuelCache for testing invalidation behaviour.
type mapCache struct {
	entries map[uuid.UUID]domain.Duel
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uuid.UUID]domain.Duel)}
}

func (c *mapCache) Set(_ context.Context, d domain.Duel) error {
	c.entries[d.ID] = d
	return nil
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (domain.Duel, error) {
	d, ok := c.entries[id]
	if !ok {
		return domain.Duel{}, domain.ErrNotFound
	}
	return d, nil
}

func (c *mapCache) Invalidate(_ context.Context, id uuid.UUID) error {
	delete(c.entries, id)
	return nil
}

// fakeDuelStore counts reads so tests can tell cache hits from misses.
// Unused interface methods panic via the embedded nil interface.
type fakeDuelStore struct {
	domain.DuelStore

	duel domain.Duel
	gets int
}

func (s *fakeDuelStore) Get(_ context.Context, id uuid.UUID) (domain.Duel, error) {
	s.gets++
	if id != s.duel.ID {
		return domain.Duel{}, domain.ErrNotFound
	}
	return s.duel, nil
}

func (s *fakeDuelStore) Insert(_ context.Context, d domain.Duel) error {
	s.duel = d
	return nil
}

func (s *fakeDuelStore) MarkLive(_ context.Context, _ uuid.UUID, _ *float64) error {
	s.duel.Status = domain.DuelStatusLive
	return nil
}

func (s *fakeDuelStore) MarkCancelled(_ context.Context, _ uuid.UUID) error {
	s.duel.Status = domain.DuelStatusCancelled
	return nil
}

func TestDuelStoreGetPopulatesCache(t *testing.T) {
	ctx := context.Background()
	inner := &fakeDuelStore{duel: domain.Duel{ID: uuid.New(), Status: domain.DuelStatusBootstrapped}}
	cache := newMapCache()
	store := NewDuelStore(inner, cache)

	got, err := store.Get(ctx, inner.duel.ID)
	require.NoError(t, err)
	assert.Equal(t, inner.duel.ID, got.ID)
	assert.Equal(t, 1, inner.gets)

	// Second read is served from the cache.
	_, err = store.Get(ctx, inner.duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)
}

func TestDuelStoreTransitionsInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &fakeDuelStore{}
	cache := newMapCache()
	store := NewDuelStore(inner, cache)

	d := domain.Duel{ID: uuid.New(), Status: domain.DuelStatusBootstrapped}
	require.NoError(t, store.Insert(ctx, d))
	assert.Contains(t, cache.entries, d.ID, "insert should prime the cache")

	require.NoError(t, store.MarkLive(ctx, d.ID, nil))
	assert.NotContains(t, cache.entries, d.ID, "transition should evict the snapshot")

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusLive, got.Status)
}

func TestWagerPlaceInvalidatesDuelSnapshot(t *testing.T) {
	ctx := context.Background()
	duelID := uuid.New()
	cache := newMapCache()
	require.NoError(t, cache.Set(ctx, domain.Duel{ID: duelID}))

	wagers := NewWagerStore(&fakeWagerStore{}, cache)
	err := wagers.Place(ctx, domain.WagerRecord{
		DuelID:  duelID,
		Account: "0x2222222222222222222222222222222222222222",
		Option:  0,
		Amount:  domain.MoneyFromWhole(10),
	})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, duelID)
}

func TestRefundChunkInvalidatesDuelSnapshot(t *testing.T) {
	ctx := context.Background()
	duelID := uuid.New()
	cache := newMapCache()
	require.NoError(t, cache.Set(ctx, domain.Duel{ID: duelID}))

	payouts := NewPayoutStore(&fakePayoutStore{}, cache)
	err := payouts.ApplyRefundChunk(ctx, duelID, nil, domain.Cursor{Done: true})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, duelID)
}

type fakeWagerStore struct {
	domain.WagerStore
}

func (s *fakeWagerStore) Place(context.Context, domain.WagerRecord) error { return nil }

type fakePayoutStore struct {
	domain.PayoutStore
}

func (s *fakePayoutStore) ApplyRefundChunk(context.Context, uuid.UUID, []domain.RefundEntry, domain.Cursor) error {
	return nil
}
