package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Earnings from a settlement are withdrawable back to the value ledger;
// custody shrinks by the same amount.
func TestWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	_, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)

	custodyBefore, err := f.ledger.BalanceOf(ctx, domain.CustodyAccount)
	require.NoError(t, err)

	require.NoError(t, f.earnings.Withdraw(ctx, acctB, domain.MoneyFromWhole(100)))

	bal, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(15_200_000), bal, "remainder stays withdrawable")

	ledgerBal, err := f.ledger.BalanceOf(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(100), ledgerBal)

	custodyAfter, err := f.ledger.BalanceOf(ctx, domain.CustodyAccount)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(100), custodyBefore.Sub(custodyAfter))
}

func TestWithdrawRejectsOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.earnings.Withdraw(ctx, acctB, domain.MoneyFromWhole(1))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err := f.earnings.Balance(ctx, acctB)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), bal)
}

func TestWithdrawProtocolFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	_, err := f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)

	amount, err := f.earnings.WithdrawProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(7_400_000), amount)

	bal, err := f.ledger.BalanceOf(ctx, acctOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(7_400_000), bal)

	remaining, err := f.earnings.ProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), remaining)

	again, err := f.earnings.WithdrawProtocolFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), again, "second withdrawal finds nothing")
}

func TestWithdrawCreatorFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	duel := liveCategoricalDuel(t, f)

	balBefore, err := f.ledger.BalanceOf(ctx, acctA)
	require.NoError(t, err)

	_, err = f.settlement.Settle(ctx, duel.ID, domain.ResolutionInput{WinningOption: intPtr(0)}, afterExpiry())
	require.NoError(t, err)

	amount, err := f.earnings.WithdrawCreatorFees(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_400_000), amount)

	balAfter, err := f.ledger.BalanceOf(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_400_000), balAfter.Sub(balBefore))

	remaining, err := f.earnings.CreatorFees(ctx, acctA)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), remaining)
}
