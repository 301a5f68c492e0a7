package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DuelCache is a read-model cache of duel snapshots for the API surface.
type DuelCache interface {
	Set(ctx context.Context, d Duel) error
	Get(ctx context.Context, id uuid.UUID) (Duel, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// LockManager serializes mutation per duel. Acquire returns an unlock
// function that must be called to release the lock; it returns ErrLockHeld
// when another holder owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes engine events (duel created, wager placed, settled,
// cancelled, trade executed) to interested consumers such as the ws hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
