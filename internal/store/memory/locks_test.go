package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

func TestLockManagerExcludesSecondHolder(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "duel:a", time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "duel:a", time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := lm.Acquire(ctx, "duel:b", time.Second)
	require.NoError(t, err, "different keys do not contend")
	other()

	unlock()
	reacquired, err := lm.Acquire(ctx, "duel:a", time.Second)
	require.NoError(t, err)
	reacquired()
}

func TestLockManagerUnlockIsIdempotent(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "duel:a", time.Second)
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "duel:a", time.Second)
	require.NoError(t, err)
	defer again()

	// The stale double-unlock must not have released the new holder.
	_, err = lm.Acquire(ctx, "duel:a", time.Second)
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestSignalBusDeliversToSubscribers(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "duels")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "duels", []byte("hello")))
	require.NoError(t, bus.Publish(ctx, "wagers", []byte("other channel")))

	select {
	case got := <-ch:
		require.Equal(t, []byte("hello"), got)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}

	select {
	case got := <-ch:
		t.Fatalf("unexpected cross-channel delivery: %s", got)
	default:
	}
}
