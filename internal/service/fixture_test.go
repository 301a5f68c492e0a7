package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/ledger"
	"github.com/duelhouse/duelengine/internal/service"
	"github.com/duelhouse/duelengine/internal/store/memory"
)

var (
	acctA     = domain.Account("0x1111111111111111111111111111111111111111")
	acctB     = domain.Account("0x2222222222222222222222222222222222222222")
	acctC     = domain.Account("0x3333333333333333333333333333333333333333")
	acctOwner = domain.Account("0x9999999999999999999999999999999999999999")
	baseTime  = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store      *memory.Store
	ledger     *ledger.Ledger
	admin      *service.AdminService
	lifecycle  *service.LifecycleService
	settlement *service.SettlementService
	refunds    *service.RefundService
	market     *service.MarketplaceService
	earnings   *service.EarningsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	books := ledger.New(domain.TokenStable)
	locks := memory.NewLockManager()
	bus := memory.NewSignalBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	params := domain.DefaultEngineParams()
	params.ProtocolAccount = acctOwner
	admin := service.NewAdminService(store.Params(), store.Audit(), params, logger)

	return &fixture{
		store:  store,
		ledger: books,
		admin:  admin,
		lifecycle: service.NewLifecycleService(
			store.Duels(), store.Wagers(), store.Earnings(), books,
			locks, bus, store.Audit(), admin, logger,
		),
		settlement: service.NewSettlementService(
			store.Duels(), store.Claims(), store.Payouts(), store.Earnings(),
			locks, bus, store.Audit(), admin, logger,
		),
		refunds: service.NewRefundService(
			store.Duels(), store.Wagers(), store.Payouts(),
			locks, store.Audit(), admin, logger,
		),
		market: service.NewMarketplaceService(
			store.Duels(), store.Claims(), store.Listings(), books,
			locks, bus, store.Audit(), admin, logger,
		),
		earnings: service.NewEarningsService(
			store.Earnings(), books, admin, logger,
		),
	}
}

// fund mints participation value to an account.
func (f *fixture) fund(t *testing.T, account domain.Account, whole int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(context.Background(), account, domain.MoneyFromWhole(whole)))
}

// categoricalDuel creates and approves a two-option categorical duel whose
// bootstrap window opens at baseTime.
func (f *fixture) categoricalDuel(t *testing.T) domain.Duel {
	t.Helper()
	ctx := context.Background()

	f.fund(t, acctA, 10_000)
	req, err := f.lifecycle.RequestCreate(ctx, acctA, domain.CreateParams{
		Kind:             domain.DuelKindCategorical,
		Options:          []string{"Team Red", "Team Blue"},
		MinWagerPerTrade: domain.MoneyFromWhole(1),
		ExpiresAt:        baseTime.Add(24 * time.Hour),
	}, baseTime)
	require.NoError(t, err)

	duel, err := f.lifecycle.ApproveCreate(ctx, req.ID, baseTime)
	require.NoError(t, err)
	return duel
}

// priceDuel creates and approves an "Up"/"Down" price-trigger duel with a
// delta trigger of zero around the start price.
func (f *fixture) priceDuel(t *testing.T) domain.Duel {
	t.Helper()
	ctx := context.Background()

	f.fund(t, acctA, 10_000)
	req, err := f.lifecycle.RequestCreate(ctx, acctA, domain.CreateParams{
		Kind:             domain.DuelKindPriceTrigger,
		Options:          []string{"Up", "Down"},
		MinWagerPerTrade: domain.MoneyFromWhole(1),
		ExpiresAt:        baseTime.Add(24 * time.Hour),
		Trigger: &domain.PriceTrigger{
			Symbol:    "BTC-USD",
			Condition: domain.TriggerAbove,
			Type:      domain.TriggerDelta,
			Value:     0,
		},
	}, baseTime)
	require.NoError(t, err)

	duel, err := f.lifecycle.ApproveCreate(ctx, req.ID, baseTime)
	require.NoError(t, err)
	return duel
}

// join funds the account and stakes the amount on the option during the
// bootstrap window.
func (f *fixture) join(t *testing.T, duel domain.Duel, account domain.Account, option int, whole int64) {
	t.Helper()
	f.fund(t, account, whole)
	require.NoError(t, f.lifecycle.Join(
		context.Background(), duel.ID, option,
		domain.MoneyFromWhole(whole), account, baseTime.Add(time.Minute),
	))
}

// afterBootstrap is a time safely past the default bootstrap window.
func afterBootstrap() time.Time { return baseTime.Add(time.Hour) }

// afterExpiry is a time safely past the duel expiry used by the fixtures.
func afterExpiry() time.Time { return baseTime.Add(25 * time.Hour) }
