package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

func TestRequestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params domain.CreateParams
	}{
		{
			name: "single option",
			params: domain.CreateParams{
				Kind:             domain.DuelKindCategorical,
				Options:          []string{"Only"},
				MinWagerPerTrade: domain.MoneyFromWhole(1),
				ExpiresAt:        baseTime.Add(24 * time.Hour),
			},
		},
		{
			name: "duplicate options",
			params: domain.CreateParams{
				Kind:             domain.DuelKindCategorical,
				Options:          []string{"Same", "Same"},
				MinWagerPerTrade: domain.MoneyFromWhole(1),
				ExpiresAt:        baseTime.Add(24 * time.Hour),
			},
		},
		{
			name: "price duel without trigger",
			params: domain.CreateParams{
				Kind:             domain.DuelKindPriceTrigger,
				Options:          []string{"Up", "Down"},
				MinWagerPerTrade: domain.MoneyFromWhole(1),
				ExpiresAt:        baseTime.Add(24 * time.Hour),
			},
		},
		{
			name: "price duel with three options",
			params: domain.CreateParams{
				Kind:             domain.DuelKindPriceTrigger,
				Options:          []string{"Up", "Down", "Flat"},
				MinWagerPerTrade: domain.MoneyFromWhole(1),
				ExpiresAt:        baseTime.Add(24 * time.Hour),
				Trigger: &domain.PriceTrigger{
					Symbol: "BTC-USD", Condition: domain.TriggerAbove, Type: domain.TriggerAbsolute, Value: 50_000,
				},
			},
		},
		{
			name: "zero min wager",
			params: domain.CreateParams{
				Kind:             domain.DuelKindCategorical,
				Options:          []string{"Red", "Blue"},
				MinWagerPerTrade: 0,
				ExpiresAt:        baseTime.Add(24 * time.Hour),
			},
		},
		{
			name: "expiry inside bootstrap window",
			params: domain.CreateParams{
				Kind:             domain.DuelKindCategorical,
				Options:          []string{"Red", "Blue"},
				MinWagerPerTrade: domain.MoneyFromWhole(1),
				ExpiresAt:        baseTime.Add(10 * time.Minute),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.lifecycle.RequestCreate(ctx, acctA, tc.params, baseTime)
			require.ErrorIs(t, err, domain.ErrOutOfBounds)
		})
	}
}

func TestApproveCreateChargesCreationFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	duel := f.categoricalDuel(t)

	assert.Equal(t, domain.DuelStatusBootstrapped, duel.Status)
	assert.Equal(t, baseTime.Add(15*time.Minute), duel.BootstrapEndsAt)
	assert.Equal(t, duel.ExpiresAt.Add(48*time.Hour), duel.ResolvingDeadline)

	balance, err := f.ledger.BalanceOf(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(9_995), balance, "creation fee deducted")

	fees, err := f.earnings.ProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(5), fees)
}

func TestApproveCreateRejectsUnderfundedRequester(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.lifecycle.RequestCreate(ctx, acctB, domain.CreateParams{
		Kind:             domain.DuelKindCategorical,
		Options:          []string{"Red", "Blue"},
		MinWagerPerTrade: domain.MoneyFromWhole(1),
		ExpiresAt:        baseTime.Add(24 * time.Hour),
	}, baseTime)
	require.NoError(t, err)

	_, err = f.lifecycle.ApproveCreate(ctx, req.ID, baseTime)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestRevokeCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, acctA, 100)
	req, err := f.lifecycle.RequestCreate(ctx, acctA, domain.CreateParams{
		Kind:             domain.DuelKindCategorical,
		Options:          []string{"Red", "Blue"},
		MinWagerPerTrade: domain.MoneyFromWhole(1),
		ExpiresAt:        baseTime.Add(24 * time.Hour),
	}, baseTime)
	require.NoError(t, err)

	err = f.lifecycle.RevokeCreate(ctx, req.ID, acctB)
	require.ErrorIs(t, err, domain.ErrUnauthorized, "stranger cannot revoke")

	require.NoError(t, f.lifecycle.RevokeCreate(ctx, req.ID, acctA))

	_, err = f.lifecycle.ApproveCreate(ctx, req.ID, baseTime)
	require.ErrorIs(t, err, domain.ErrInvalidStatus, "revoked request cannot be approved")

	balance, err := f.ledger.BalanceOf(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(100), balance, "no fee on a request that never materialized")
}

func TestJoinGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)
	inWindow := baseTime.Add(time.Minute)

	f.fund(t, acctB, 50)

	err := f.lifecycle.Join(ctx, duel.ID, 2, domain.MoneyFromWhole(10), acctB, inWindow)
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	err = f.lifecycle.Join(ctx, duel.ID, 0, domain.Money(500_000), acctB, inWindow)
	require.ErrorIs(t, err, domain.ErrWagerTooSmall)

	err = f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(10), acctB, baseTime.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidStatus, "bootstrap window closed")

	err = f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(500), acctB, inWindow)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(40), acctB, inWindow))

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(40), got.Pools[0])
	assert.Equal(t, domain.Money(0), got.Pools[1])

	claim := domain.ClaimID{DuelID: duel.ID, Option: 0}
	minted, err := f.store.Claims().Balance(ctx, claim, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(40), minted, "claims minted one-for-one with the stake")

	custody, err := f.ledger.BalanceOf(ctx, domain.CustodyAccount)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(45), custody, "creation fee plus stake held in custody")
}

func TestJoinRepeatedStakesAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 1, 30)
	f.join(t, duel, acctB, 1, 25)

	rec, err := f.store.Wagers().Get(ctx, duel.ID, acctB, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(55), rec.Amount)

	supply, err := f.store.Claims().Supply(ctx, domain.ClaimID{DuelID: duel.ID, Option: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(55), supply)
}

func TestStartThresholdGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 60)

	err := f.lifecycle.Start(ctx, duel.ID, nil, baseTime.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrTooEarly, "bootstrap window still open")

	err = f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrThresholdNotMet, "pool below threshold")

	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap()))

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusLive, got.Status)

	err = f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrInvalidStatus, "start is one-shot")
}

func TestStartPriceDuelRecordsStartPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.priceDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)

	err := f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrOutOfBounds, "price duel needs an observed price")

	price := 100.0
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, &price, afterBootstrap()))

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartPrice)
	assert.Equal(t, 100.0, *got.StartPrice)
}

// A Live duel keeps accepting wagers until expiry.
func TestJoinWhileLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap()))

	f.fund(t, acctB, 20)
	require.NoError(t, f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(20), acctB, baseTime.Add(2*time.Hour)))

	err := f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(1), acctB, afterExpiry())
	require.ErrorIs(t, err, domain.ErrInvalidStatus, "no wagers after expiry")
}

func TestCancelIfThresholdNotMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 25)
	f.join(t, duel, acctC, 1, 25)

	err := f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, baseTime.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrTooEarly)

	require.NoError(t, f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, afterBootstrap()))

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusCancelled, got.Status)

	err = f.lifecycle.Join(ctx, duel.ID, 0, domain.MoneyFromWhole(5), acctB, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestCancelRejectedWhenThresholdMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)

	err := f.lifecycle.CancelIfThresholdNotMet(ctx, duel.ID, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrThresholdMet)

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusBootstrapped, got.Status, "rejected cancel leaves the duel untouched")
}

func TestCancelUnresolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.categoricalDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap()))

	err := f.lifecycle.CancelUnresolved(ctx, duel.ID, afterExpiry())
	require.ErrorIs(t, err, domain.ErrTooEarly, "resolving window still open")

	pastDeadline := duel.ExpiresAt.Add(48*time.Hour + time.Minute)
	require.NoError(t, f.lifecycle.CancelUnresolved(ctx, duel.ID, pastDeadline))

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusCancelled, got.Status)

	progress, err := f.refunds.ContinueRefunds(ctx, duel.ID)
	require.NoError(t, err)
	require.True(t, progress.Done)

	balB, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(60), balB, "unresolved cancellation refunds in full")
}

func TestJoinRespectsDuelPoolCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.admin.Params()
	params.MaxDuelPool = domain.MoneyFromWhole(100)
	require.NoError(t, f.admin.Update(ctx, params))

	duel := f.categoricalDuel(t)
	f.join(t, duel, acctB, 0, 90)

	f.fund(t, acctC, 20)
	err := f.lifecycle.Join(ctx, duel.ID, 1, domain.MoneyFromWhole(20), acctC, baseTime.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrCapExceeded)
}
