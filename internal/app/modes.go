package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duelhouse/duelengine/internal/resolver"
	"github.com/duelhouse/duelengine/internal/server"
	"github.com/duelhouse/duelengine/internal/server/handler"
	"github.com/duelhouse/duelengine/internal/server/ws"
	"github.com/duelhouse/duelengine/internal/service"
)

// archiveInterval is how often Full mode sweeps finalized duels to object
// storage.
const archiveInterval = 24 * time.Hour

// services bundles the constructed service layer shared by every mode.
type services struct {
	admin       *service.AdminService
	lifecycle   *service.LifecycleService
	settlement  *service.SettlementService
	refunds     *service.RefundService
	marketplace *service.MarketplaceService
	earnings    *service.EarningsService
}

// buildServices constructs the service layer on top of the wired
// dependencies and loads (or seeds) the persisted engine parameters.
func (a *App) buildServices(ctx context.Context, deps *Dependencies) (*services, error) {
	seed, err := a.cfg.EngineParams()
	if err != nil {
		return nil, err
	}

	admin := service.NewAdminService(deps.ParamsStore, deps.AuditStore, seed, a.logger)
	if err := admin.Init(ctx); err != nil {
		return nil, err
	}

	return &services{
		admin: admin,
		lifecycle: service.NewLifecycleService(
			deps.DuelStore, deps.WagerStore, deps.EarningsStore, deps.Ledger,
			deps.LockManager, deps.SignalBus, deps.AuditStore, admin, a.logger,
		),
		settlement: service.NewSettlementService(
			deps.DuelStore, deps.ClaimStore, deps.PayoutStore, deps.EarningsStore,
			deps.LockManager, deps.SignalBus, deps.AuditStore, admin, a.logger,
		),
		refunds: service.NewRefundService(
			deps.DuelStore, deps.WagerStore, deps.PayoutStore,
			deps.LockManager, deps.AuditStore, admin, a.logger,
		),
		marketplace: service.NewMarketplaceService(
			deps.DuelStore, deps.ClaimStore, deps.ListingStore, deps.Ledger,
			deps.LockManager, deps.SignalBus, deps.AuditStore, admin, a.logger,
		),
		earnings: service.NewEarningsService(
			deps.EarningsStore, deps.Ledger, admin, a.logger,
		),
	}, nil
}

// ServeMode runs the HTTP and WebSocket API without the background resolver.
// A separate resolve-mode process (or manual resolver calls) drives the
// lifecycle deadlines.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svcs)
	return g.Wait()
}

// ResolveMode runs only the background resolver bot: deadline scans,
// automatic settlement of expired price-trigger duels, threshold and
// unresolved cancellations, and payout continuation.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting resolve mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startResolver(ctx, g, deps, svcs)
	return g.Wait()
}

// FullMode runs the API, the resolver, and the periodic duel archive sweep
// in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svcs)
	a.startResolver(ctx, g, deps, svcs)

	if deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(archiveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					count, err := deps.Archiver.ArchiveFinalized(ctx, time.Now().UTC())
					if err != nil {
						a.logger.WarnContext(ctx, "archive sweep failed",
							slog.String("error", err.Error()),
						)
						continue
					}
					if count > 0 {
						a.logger.InfoContext(ctx, "archive sweep done",
							slog.Int64("duels", count),
						)
					}
				}
			}
		})
	}

	return g.Wait()
}

// MemoryMode is FullMode on in-process backends: no postgres, redis, or S3.
// It exists for local development and integration testing.
func (a *App) MemoryMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting memory mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svcs)
	a.startResolver(ctx, g, deps, svcs)
	return g.Wait()
}

// startServer registers the HTTP/WebSocket surface on the errgroup when the
// server is enabled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		// The hub only stops on context cancellation; don't tear the
		// group down for it.
		_ = hub.Run(ctx)
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		OwnerKey:        a.cfg.Server.OwnerKey,
		ResolverKey:     a.cfg.Server.ResolverKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: time.Minute,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Duels:       handler.NewDuelHandler(svcs.lifecycle, svcs.settlement, svcs.refunds, a.logger),
		Marketplace: handler.NewMarketplaceHandler(svcs.marketplace, a.logger),
		Earnings:    handler.NewEarningsHandler(svcs.earnings, a.logger),
		Admin:       handler.NewAdminHandler(svcs.admin, deps.AuditStore, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startResolver registers the resolver bot on the errgroup when enabled.
func (a *App) startResolver(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Resolver.Enabled {
		a.logger.InfoContext(ctx, "resolver disabled")
		return
	}

	bot := resolver.New(
		svcs.lifecycle,
		svcs.settlement,
		svcs.refunds,
		deps.DuelStore,
		deps.Oracle,
		deps.Notifier,
		resolver.Config{
			Interval:  a.cfg.Resolver.PollInterval.Duration,
			BatchSize: a.cfg.Resolver.BatchSize,
		},
		a.logger,
	)
	g.Go(func() error {
		return bot.Run(ctx)
	})
}
