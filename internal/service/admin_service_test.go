package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/service"
	"github.com/duelhouse/duelengine/internal/store/memory"
)

func TestAdminUpdateRejectsOutOfBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.admin.Params()

	cases := []struct {
		name   string
		mutate func(*domain.EngineParams)
	}{
		{"creation fee above ceiling", func(p *domain.EngineParams) { p.CreationFee = domain.MoneyFromWhole(11) }},
		{"negative protocol fee", func(p *domain.EngineParams) { p.ProtocolFeeBps = -1 }},
		{"threshold too low", func(p *domain.EngineParams) { p.MinWagerThreshold = domain.MoneyFromWhole(49) }},
		{"threshold too high", func(p *domain.EngineParams) { p.MinWagerThreshold = domain.MoneyFromWhole(101) }},
		{"bootstrap too short", func(p *domain.EngineParams) { p.BootstrapPeriod = time.Minute }},
		{"bootstrap too long", func(p *domain.EngineParams) { p.BootstrapPeriod = time.Hour }},
		{"resolving too short", func(p *domain.EngineParams) { p.ResolvingPeriod = 24 * time.Hour }},
		{"chunk too small", func(p *domain.EngineParams) { p.WinnersChunkSize = 29 }},
		{"chunk too large", func(p *domain.EngineParams) { p.RefundChunkSize = 101 }},
		{"bad resolver account", func(p *domain.EngineParams) { p.ResolverAccount = "not-an-address" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := before
			tc.mutate(&p)
			err := f.admin.Update(ctx, p)
			require.ErrorIs(t, err, domain.ErrOutOfBounds)
			assert.Equal(t, before, f.admin.Params(), "rejected update changes nothing")
		})
	}
}

func TestAdminUpdatePersistsAndApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.admin.Params()
	p.CreationFee = domain.MoneyFromWhole(2)
	p.MinWagerThreshold = domain.MoneyFromWhole(80)
	require.NoError(t, f.admin.Update(ctx, p))

	assert.Equal(t, domain.MoneyFromWhole(2), f.admin.Params().CreationFee)

	saved, err := f.store.Params().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, saved)
}

func TestAdminInitLoadsPersisted(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	persisted := domain.DefaultEngineParams()
	persisted.CreationFee = domain.MoneyFromWhole(3)
	require.NoError(t, store.Params().Save(ctx, persisted))

	admin := service.NewAdminService(store.Params(), store.Audit(), domain.DefaultEngineParams(), logger)
	require.NoError(t, admin.Init(ctx))
	assert.Equal(t, domain.MoneyFromWhole(3), admin.Params().CreationFee)
}

func TestAdminInitKeepsDefaultsWhenNothingPersisted(t *testing.T) {
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	admin := service.NewAdminService(store.Params(), store.Audit(), domain.DefaultEngineParams(), logger)
	require.NoError(t, admin.Init(context.Background()))
	assert.Equal(t, domain.DefaultEngineParams(), admin.Params())
}
