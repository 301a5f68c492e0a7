package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceTriggerWinnerAbsolute(t *testing.T) {
	above := PriceTrigger{Symbol: "BTC-USD", Condition: TriggerAbove, Type: TriggerAbsolute, Value: 50_000}

	w := above.Winner(0, 50_001)
	require.NotNil(t, w)
	assert.Equal(t, 0, *w, "end above the level, option 0 wins")

	w = above.Winner(0, 49_999)
	require.NotNil(t, w)
	assert.Equal(t, 1, *w)

	assert.Nil(t, above.Winner(0, 50_000), "landing on the level has no winner")

	below := above
	below.Condition = TriggerBelow

	w = below.Winner(0, 49_999)
	require.NotNil(t, w)
	assert.Equal(t, 0, *w, "below condition flips the sides")

	w = below.Winner(0, 50_001)
	require.NotNil(t, w)
	assert.Equal(t, 1, *w)
}

func TestPriceTriggerWinnerDelta(t *testing.T) {
	trig := PriceTrigger{Symbol: "ETH-USD", Condition: TriggerAbove, Type: TriggerDelta, Value: 10}

	w := trig.Winner(100, 111)
	require.NotNil(t, w)
	assert.Equal(t, 0, *w)

	w = trig.Winner(100, 89)
	require.NotNil(t, w)
	assert.Equal(t, 1, *w)

	for _, end := range []float64{90, 100, 110} {
		assert.Nil(t, trig.Winner(100, end), "inside the band has no winner")
	}
}

func TestDuelStatusTerminal(t *testing.T) {
	assert.False(t, DuelStatusBootstrapped.Terminal())
	assert.False(t, DuelStatusLive.Terminal())
	assert.True(t, DuelStatusSettled.Terminal())
	assert.True(t, DuelStatusCancelled.Terminal())
}

func TestAcceptsWagers(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	duel := Duel{
		Status:          DuelStatusBootstrapped,
		BootstrapEndsAt: now.Add(15 * time.Minute),
		ExpiresAt:       now.Add(24 * time.Hour),
	}

	assert.True(t, duel.AcceptsWagers(now))
	assert.False(t, duel.AcceptsWagers(now.Add(15*time.Minute)), "window closes at its end instant")

	duel.Status = DuelStatusLive
	assert.True(t, duel.AcceptsWagers(now.Add(time.Hour)))
	assert.False(t, duel.AcceptsWagers(now.Add(24*time.Hour)))

	duel.Status = DuelStatusSettled
	assert.False(t, duel.AcceptsWagers(now))
}

func TestTotalPoolAndValidOption(t *testing.T) {
	duel := Duel{
		Options: []string{"Red", "Blue"},
		Pools:   []Money{MoneyFromWhole(60), MoneyFromWhole(40)},
	}
	assert.Equal(t, MoneyFromWhole(100), duel.TotalPool())
	assert.True(t, duel.ValidOption(0))
	assert.True(t, duel.ValidOption(1))
	assert.False(t, duel.ValidOption(2))
	assert.False(t, duel.ValidOption(-1))
}

func TestParseAccount(t *testing.T) {
	got, err := ParseAccount("0x52908400098527886E0F7030069857D2E4169EE7")
	require.NoError(t, err)
	assert.Equal(t, Account("0x52908400098527886E0F7030069857D2E4169EE7"), got)

	_, err = ParseAccount("0x0000000000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrInvalidAccount, "zero address rejected")

	_, err = ParseAccount("not-an-address")
	require.ErrorIs(t, err, ErrInvalidAccount)
}
