package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeBps(t *testing.T) {
	// 2% of $120 is $2.40.
	assert.Equal(t, Money(2_400_000), MoneyFromWhole(120).FeeBps(200))
	assert.Equal(t, Money(0), MoneyFromWhole(120).FeeBps(0))
	assert.Equal(t, MoneyFromWhole(120), MoneyFromWhole(120).FeeBps(10_000))
	// Truncates toward zero: 1 micro-unit at 1 bps rounds to nothing.
	assert.Equal(t, Money(0), Money(1).FeeBps(1))
}

func TestProRata(t *testing.T) {
	pot := Money(115_200_000) // $115.20

	assert.Equal(t, pot, ProRata(pot, MoneyFromWhole(60), MoneyFromWhole(60)), "sole holder takes everything")
	assert.Equal(t, Money(57_600_000), ProRata(pot, MoneyFromWhole(30), MoneyFromWhole(60)))
	assert.Equal(t, Money(0), ProRata(pot, 0, MoneyFromWhole(60)))
	assert.Equal(t, Money(0), ProRata(pot, MoneyFromWhole(30), 0), "zero supply pays nothing")
}

// Payouts truncate, so the sum across holders never exceeds the pot.
func TestProRataNeverOverpays(t *testing.T) {
	pot := Money(1_000_000)
	total := Money(3)

	each := ProRata(pot, 1, total)
	assert.Equal(t, Money(333_333), each)
	assert.LessOrEqual(t, each*3, pot)
}

// The big.Int intermediate keeps pool-scale products from overflowing
// int64.
func TestProRataLargePool(t *testing.T) {
	pot := MoneyFromWhole(900_000_000)
	supply := MoneyFromWhole(900_000_000)
	assert.Equal(t, MoneyFromWhole(450_000_000), ProRata(pot, MoneyFromWhole(450_000_000), supply))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "115.200000", Money(115_200_000).String())
	assert.Equal(t, "0.000001", Money(1).String())
	assert.Equal(t, "-5.000000", MoneyFromWhole(-5).String())
	assert.Equal(t, "0.000000", Money(0).String())
}

func TestParseMoney(t *testing.T) {
	for in, want := range map[string]Money{
		"115.2":    115_200_000,
		"25":       25_000_000,
		"0.000001": 1,
		"-5":       -5_000_000,
	} {
		got, err := ParseMoney(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMoney("1.0000001")
	require.ErrorIs(t, err, ErrOutOfBounds, "more than six decimals")
}

func TestParseWireAmountStable(t *testing.T) {
	got, err := ParseWireAmount(big.NewInt(25_000_000), TokenStable)
	require.NoError(t, err)
	assert.Equal(t, MoneyFromWhole(25), got)
}

func TestParseWireAmountCredit(t *testing.T) {
	// 25 credit tokens: 25 * 10^18 on the wire.
	raw := new(big.Int).Mul(big.NewInt(25), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	got, err := ParseWireAmount(raw, TokenCredit)
	require.NoError(t, err)
	assert.Equal(t, MoneyFromWhole(25), got)
}

func TestParseWireAmountRejectsDust(t *testing.T) {
	// One wei below a whole micro-unit cannot be represented.
	raw := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	raw.Sub(raw, big.NewInt(1))
	_, err := ParseWireAmount(raw, TokenCredit)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ParseWireAmount(big.NewInt(-1), TokenStable)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = ParseWireAmount(nil, TokenStable)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestWireAmountRoundTrip(t *testing.T) {
	for _, kind := range []TokenKind{TokenStable, TokenCredit} {
		wire := WireAmount(Money(115_200_000), kind)
		back, err := ParseWireAmount(wire, kind)
		require.NoError(t, err)
		assert.Equal(t, Money(115_200_000), back, kind)
	}
}
