package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

func TestContinueRefundsRequiresCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	_, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

// $25 vs $25 misses the $100 threshold; cancellation refunds both stakes in
// full, with no fee deducted.
func TestRefundsAfterThresholdCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 25)
	f.join(t, duel, acctC, 1, 25)
	require.NoError(t, f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, afterBootstrap()))

	progress, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Processed)
	assert.True(t, progress.Done)

	for _, acct := range []domain.Account{acctB, acctC} {
		bal, err := f.earnings.Balance(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, domain.MoneyFromWhole(25), bal, "refund equals the deposit exactly")
	}

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), got.TotalPool(), "pools drained by refunds")

	for opt := range got.Options {
		supply, err := f.store.Claims().Supply(ctx, domain.ClaimID{DuelID: duel.ID, Option: opt})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(0), supply, "claims burned with the refund")
	}
}

// A depositor staked on both options is refunded once, for the sum.
func TestRefundAggregatesAcrossOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 20)
	f.join(t, duel, acctB, 1, 15)
	require.NoError(t, f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, afterBootstrap()))

	progress, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Processed)
	assert.True(t, progress.Done)

	bal, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(35), bal)
}

// 35 depositors with a chunk size of 30: two chunks, then no-ops.
func TestRefundsResumeAcrossChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.admin.Params()
	params.RefundChunkSize = 30
	require.NoError(t, f.admin.Update(ctx, params))

	duel := f.categoricalDuel(t)
	depositors := make([]domain.Account, 35)
	for i := range depositors {
		depositors[i] = domain.Account(fmt.Sprintf("0x%040x", i+1))
		f.join(t, duel, depositors[i], i%2, 2)
	}
	require.NoError(t, f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, afterBootstrap()))

	progress, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, progress.Processed)
	assert.False(t, progress.Done)

	progress, err = f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, progress.Processed)
	assert.True(t, progress.Done)

	for _, acct := range depositors {
		bal, err := f.earnings.Balance(ctx, acct)
		require.NoError(t, err)
		require.Equal(t, domain.MoneyFromWhole(2), bal)
	}

	again, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.Zero(t, again.Processed, "completed refunds never pay twice")

	bal, err := f.earnings.Balance(ctx, depositors[0])
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(2), bal)
}
