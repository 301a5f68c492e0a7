package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// duelTTL is short because duel snapshots change on every wager; the cache
// shields the store from read bursts, not from writes.
const duelTTL = 30 * time.Second

// DuelCache implements domain.DuelCache using Redis hashes with
// JSON-serialized duel snapshots.
//
// Key schema:
//
//	duel:{uuid} - hash with field "data" containing JSON
type DuelCache struct {
	rdb *redis.Client
}

// NewDuelCache creates a DuelCache backed by the given Client.
func NewDuelCache(c *Client) *DuelCache {
	return &DuelCache{rdb: c.Underlying()}
}

func duelKey(id uuid.UUID) string { return "duel:" + id.String() }

// Set stores a duel snapshot in the cache with a short TTL.
func (dc *DuelCache) Set(ctx context.Context, d domain.Duel) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: marshal duel %s: %w", d.ID, err)
	}

	key := duelKey(d.ID)

	pipe := dc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, duelTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set duel %s: %w", d.ID, err)
	}
	return nil
}

// Get retrieves a duel snapshot by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (dc *DuelCache) Get(ctx context.Context, id uuid.UUID) (domain.Duel, error) {
	data, err := dc.rdb.HGet(ctx, duelKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Duel{}, domain.ErrNotFound
		}
		return domain.Duel{}, fmt.Errorf("redis: get duel %s: %w", id, err)
	}

	var d domain.Duel
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.Duel{}, fmt.Errorf("redis: unmarshal duel %s: %w", id, err)
	}
	return d, nil
}

// Invalidate removes a duel snapshot from the cache. Mutating services call
// this after every state change so readers never see a stale terminal status.
func (dc *DuelCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := dc.rdb.Del(ctx, duelKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate duel %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.DuelCache = (*DuelCache)(nil)
