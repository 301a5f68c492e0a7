package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// liveCategoricalDuel builds a Live categorical duel with $60 staked on
// each side by acctB and acctC.
func liveCategoricalDuel(t *testing.T, f *fixture) domain.Duel {
	t.Helper()
	duel := f.categoricalDuel(t)
	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(context.Background(), duel.ID, nil, afterBootstrap()))
	return duel
}

func TestSettleGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)
	input := domain.ResolutionInput{WinningOption: intPtr(0)}

	_, err := f.settlement.Settle(ctx, duel.ID, input, afterBootstrap())
	require.ErrorIs(t, err, domain.ErrTooEarly, "cannot settle before expiry")

	_, err = f.settlement.Settle(ctx, duel.ID, input, duel.ExpiresAt.Add(49*time.Hour))
	require.ErrorIs(t, err, domain.ErrResolvingExpired)

	_, err = f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(5)}, afterExpiry())
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	_, err = f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{}, afterExpiry())
	require.ErrorIs(t, err, domain.ErrInvalidOption, "categorical settle needs a winner")

	_, err = f.settlement.Settle(ctx, duel.ID, input, afterExpiry())
	require.NoError(t, err)

	_, err = f.settlement.Settle(ctx, duel.ID, input, afterExpiry())
	require.ErrorIs(t, err, domain.ErrMarketClosed, "settle is one-shot")
}

// $60 vs $60, option 0 wins. Fees come off the $120 total: 2% protocol and
// 2% creator, leaving a $115.20 pot for the sole winning holder.
func TestSettleFeeAdjustedPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	progress, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)
	require.True(t, progress.Done, "both holders fit one chunk")

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusSettled, got.Status)
	require.NotNil(t, got.WinningOption)
	assert.Equal(t, 0, *got.WinningOption)
	assert.Equal(t, domain.Money(115_200_000), got.DistributablePot)
	assert.Equal(t, domain.MoneyFromWhole(60), got.WinningSupply)

	balB, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(115_200_000), balB, "winner takes the whole pot")

	balC, err := f.earnings.Balance(ctx, acctC)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), balC, "loser gets nothing")

	protocolFees, err := f.earnings.ProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(7_400_000), protocolFees, "creation fee plus 2% of the pool")

	creatorFees, err := f.earnings.CreatorFees(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_400_000), creatorFees)
}

// Payout rights follow claim tokens: after acctB hands half their claims to
// acctC, each collects half the pot.
func TestSettlePaysClaimHoldersNotDepositors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	claim := domain.ClaimID{DuelID: duel.ID, Option: 0}
	require.NoError(t, f.store.Claims().Transfer(ctx, claim, acctB, acctC, domain.MoneyFromWhole(30)))

	_, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)

	balB, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(57_600_000), balB)

	balC, err := f.earnings.Balance(ctx, acctC)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(57_600_000), balC)
}

func TestSettlePriceTriggerDuel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.priceDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, floatPtr(100), afterBootstrap()))

	_, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{}, afterExpiry())
	require.ErrorIs(t, err, domain.ErrOutOfBounds, "price settle needs an end price")

	_, err = f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{EndPrice: floatPtr(105)}, afterExpiry())
	require.NoError(t, err)

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinningOption)
	assert.Equal(t, 0, *got.WinningOption, "price rose, Up wins")
	require.NotNil(t, got.EndPrice)
	assert.Equal(t, 105.0, *got.EndPrice)

	balB, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(115_200_000), balB)
}

// Unchanged price means neither side's condition is met: fees are still
// deducted, nobody is paid, and the pot stays in custody.
func TestSettleNoWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := f.priceDuel(t)

	f.join(t, duel, acctB, 0, 60)
	f.join(t, duel, acctC, 1, 60)
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, floatPtr(100), afterBootstrap()))

	progress, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{EndPrice: floatPtr(100)}, afterExpiry())
	require.NoError(t, err)
	assert.True(t, progress.Done, "nothing to distribute")

	got, err := f.lifecycle.GetDuel(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DuelStatusSettled, got.Status)
	assert.Nil(t, got.WinningOption)

	for _, acct := range []domain.Account{acctB, acctC} {
		bal, err := f.earnings.Balance(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(0), bal)
	}

	protocolFees, err := f.earnings.ProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(7_400_000), protocolFees, "fees deducted even without a winner")

	again, err := f.settlement.ContinueWinningsDistribution(ctx, duel.ID)
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.Zero(t, again.Processed)
}

// 35 winning holders with a chunk size of 30: the first chunk pays 30, the
// second pays the remaining 5, and every later call is a no-op.
func TestDistributionResumesAcrossChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.admin.Params()
	params.WinnersChunkSize = 30
	require.NoError(t, f.admin.Update(ctx, params))

	duel := f.categoricalDuel(t)
	winners := make([]domain.Account, 35)
	for i := range winners {
		winners[i] = domain.Account(fmt.Sprintf("0x%040x", i+1))
		f.join(t, duel, winners[i], 0, 3)
	}
	require.NoError(t, f.lifecycle.Start(ctx, duel.ID, nil, afterBootstrap()))

	progress, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)
	assert.Equal(t, 30, progress.Processed)
	assert.False(t, progress.Done)

	progress, err = f.settlement.ContinueWinningsDistribution(ctx, duel.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, progress.Processed)
	assert.True(t, progress.Done)

	// $105 pool, 4% fees, pot $100.80 split evenly 35 ways.
	for _, w := range winners {
		bal, err := f.earnings.Balance(ctx, w)
		require.NoError(t, err)
		require.Equal(t, domain.Money(2_880_000), bal)
	}

	again, err := f.settlement.ContinueWinningsDistribution(ctx, duel.ID)
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.Zero(t, again.Processed, "completed distribution never pays twice")

	bal, err := f.earnings.Balance(ctx, winners[0])
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_880_000), bal)
}

func TestContinueDistributionRequiresSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	_, err := f.settlement.ContinueWinningsDistribution(ctx, duel.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}
