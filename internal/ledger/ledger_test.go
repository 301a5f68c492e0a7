package ledger

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

const (
	alice = domain.Account("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob   = domain.Account("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestTransferMovesBalance(t *testing.T) {
	ctx := context.Background()
	l := New(domain.TokenStable)

	require.NoError(t, l.Mint(ctx, alice, domain.MoneyFromWhole(100)))
	require.NoError(t, l.Transfer(ctx, alice, bob, domain.MoneyFromWhole(40)))

	got, err := l.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(60), got)

	got, err = l.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(40), got)
}

func TestTransferInsufficientLeavesBalancesUntouched(t *testing.T) {
	ctx := context.Background()
	l := New(domain.TokenStable)

	require.NoError(t, l.Mint(ctx, alice, domain.MoneyFromWhole(5)))
	err := l.Transfer(ctx, alice, bob, domain.MoneyFromWhole(10))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	got, err := l.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(5), got)

	got, err = l.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), got)
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	ctx := context.Background()
	l := New(domain.TokenCredit)

	assert.ErrorIs(t, l.Mint(ctx, alice, 0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Mint(ctx, alice, -1), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Transfer(ctx, alice, bob, 0), domain.ErrInvalidQuantity)
}

func TestWireBalanceRescalesPerTokenKind(t *testing.T) {
	ctx := context.Background()

	// Stable tokens carry six decimals on the wire, same as the
	// accounting scale.
	stable := New(domain.TokenStable)
	require.NoError(t, stable.Mint(ctx, alice, domain.MoneyFromWhole(3)))
	wire, err := stable.WireBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.WireAmount(domain.MoneyFromWhole(3), domain.TokenStable), wire)

	credit := New(domain.TokenCredit)
	require.NoError(t, credit.Mint(ctx, alice, domain.MoneyFromWhole(3)))
	wire, err = credit.WireBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.WireAmount(domain.MoneyFromWhole(3), domain.TokenCredit), wire)
	assert.NotEqual(t, new(big.Int), wire)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	l := New(domain.TokenStable)
	require.NoError(t, l.Mint(ctx, alice, domain.MoneyFromWhole(1000)))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Transfer(ctx, alice, bob, domain.MoneyFromWhole(1))
		}()
	}
	wg.Wait()

	a, err := l.BalanceOf(ctx, alice)
	require.NoError(t, err)
	b, err := l.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromWhole(1000), a+b)
	assert.Equal(t, domain.MoneyFromWhole(100), b)
}
