// Package resolver runs the background loops that move duels through their
// time-gated transitions: starting funded duels when bootstrap ends,
// cancelling underfunded or unresolved ones, settling expired price-trigger
// duels against the oracle, and driving chunked payouts to completion.
// Categorical duels are settled through the resolver API, not here.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/notify"
	"github.com/duelhouse/duelengine/internal/service"
)

// Config controls the bot's polling cadence and scan width.
type Config struct {
	// Interval between scan passes.
	Interval time.Duration
	// BatchSize caps how many duels one pass examines per status.
	BatchSize int
}

// Bot drives the engine's time-gated transitions. All state lives in the
// stores; the bot is stateless and safe to restart at any point, because
// every operation it calls is idempotent or lock-guarded.
type Bot struct {
	lifecycle  *service.LifecycleService
	settlement *service.SettlementService
	refunds    *service.RefundService
	duels      domain.DuelStore
	prices     domain.PriceSource
	notifier   *notify.Notifier
	cfg        Config
	logger     *slog.Logger
}

// New creates a resolver Bot. The notifier may be nil.
func New(
	lifecycle *service.LifecycleService,
	settlement *service.SettlementService,
	refunds *service.RefundService,
	duels domain.DuelStore,
	prices domain.PriceSource,
	notifier *notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Bot {
	return &Bot{
		lifecycle:  lifecycle,
		settlement: settlement,
		refunds:    refunds,
		duels:      duels,
		prices:     prices,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "resolver")),
	}
}

// Run starts the scan loops and blocks until the context is cancelled or a
// loop fails unrecoverably.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "resolver starting",
		slog.Duration("interval", b.cfg.Interval),
		slog.Int("batch_size", b.cfg.BatchSize),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.loop(ctx, "bootstrapped", b.scanBootstrapped)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("bootstrapped loop: %w", err)
	})

	g.Go(func() error {
		err := b.loop(ctx, "live", b.scanLive)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("live loop: %w", err)
	})

	g.Go(func() error {
		err := b.loop(ctx, "payouts", b.scanPayouts)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("payouts loop: %w", err)
	})

	if err := g.Wait(); err != nil {
		b.logger.ErrorContext(ctx, "resolver stopped with error", slog.String("error", err.Error()))
		return err
	}

	b.logger.InfoContext(ctx, "resolver stopped cleanly")
	return nil
}

// loop runs one scan immediately, then repeats on the configured interval.
// Scan errors are logged, not fatal.
func (b *Bot) loop(ctx context.Context, name string, scan func(context.Context) error) error {
	if err := scan(ctx); err != nil {
		b.logger.ErrorContext(ctx, "scan failed",
			slog.String("scan", name), slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := scan(ctx); err != nil {
				b.logger.ErrorContext(ctx, "scan failed",
					slog.String("scan", name), slog.String("error", err.Error()))
			}
		}
	}
}

// scanBootstrapped starts duels whose bootstrap window has closed with the
// threshold met, and cancels those that stayed under it.
func (b *Bot) scanBootstrapped(ctx context.Context) error {
	duels, err := b.duels.ListByStatus(ctx, domain.DuelStatusBootstrapped, domain.ListOpts{Limit: b.cfg.BatchSize})
	if err != nil {
		return fmt.Errorf("list bootstrapped duels: %w", err)
	}

	now := time.Now().UTC()
	for _, d := range duels {
		if now.Before(d.BootstrapEndsAt) {
			continue
		}

		if d.TotalPool() < d.MinWagerThreshold {
			if err := b.lifecycle.CancelIfThresholdNotMet(ctx, d.ID, now); err != nil {
				b.skipOrLog(ctx, "cancel underfunded duel", d, err)
			} else if b.notifier != nil {
				d.Status = domain.DuelStatusCancelled
				_ = b.notifier.DuelCancelled(ctx, d)
			}
			continue
		}

		var startPrice *float64
		if d.Kind == domain.DuelKindPriceTrigger {
			price, err := b.prices.Price(ctx, d.Trigger.Symbol)
			if err != nil {
				b.skipOrLog(ctx, "fetch start price", d, err)
				continue
			}
			startPrice = &price
		}
		if err := b.lifecycle.Start(ctx, d.ID, startPrice, now); err != nil {
			b.skipOrLog(ctx, "start duel", d, err)
		}
	}
	return nil
}

// scanLive settles expired price-trigger duels against the oracle and
// cancels duels that outlived their resolving deadline unsettled.
func (b *Bot) scanLive(ctx context.Context) error {
	duels, err := b.duels.ListByStatus(ctx, domain.DuelStatusLive, domain.ListOpts{Limit: b.cfg.BatchSize})
	if err != nil {
		return fmt.Errorf("list live duels: %w", err)
	}

	now := time.Now().UTC()
	for _, d := range duels {
		if !now.Before(d.ResolvingDeadline) {
			if err := b.lifecycle.CancelUnresolved(ctx, d.ID, now); err != nil {
				b.skipOrLog(ctx, "cancel unresolved duel", d, err)
			} else if b.notifier != nil {
				d.Status = domain.DuelStatusCancelled
				_ = b.notifier.DuelCancelled(ctx, d)
			}
			continue
		}
		if now.Before(d.ExpiresAt) || d.Kind != domain.DuelKindPriceTrigger {
			continue
		}

		endPrice, err := b.prices.Price(ctx, d.Trigger.Symbol)
		if err != nil {
			b.skipOrLog(ctx, "fetch end price", d, err)
			continue
		}
		if _, err := b.settlement.Settle(ctx, d.ID, domain.ResolutionInput{EndPrice: &endPrice}, now); err != nil {
			b.skipOrLog(ctx, "settle duel", d, err)
			continue
		}
		if b.notifier != nil {
			if settled, err := b.duels.Get(ctx, d.ID); err == nil {
				_ = b.notifier.DuelSettled(ctx, settled)
			}
		}
	}
	return nil
}

// scanPayouts drives unfinished distribution and refund runs one chunk at a
// time. Finished runs no-op cheaply, so re-scanning terminal duels is safe.
func (b *Bot) scanPayouts(ctx context.Context) error {
	settled, err := b.duels.ListByStatus(ctx, domain.DuelStatusSettled, domain.ListOpts{Limit: b.cfg.BatchSize})
	if err != nil {
		return fmt.Errorf("list settled duels: %w", err)
	}
	for _, d := range settled {
		for {
			progress, err := b.settlement.ContinueWinningsDistribution(ctx, d.ID)
			if err != nil {
				b.skipOrLog(ctx, "continue distribution", d, err)
				break
			}
			if progress.Done || progress.Processed == 0 {
				break
			}
		}
	}

	cancelled, err := b.duels.ListByStatus(ctx, domain.DuelStatusCancelled, domain.ListOpts{Limit: b.cfg.BatchSize})
	if err != nil {
		return fmt.Errorf("list cancelled duels: %w", err)
	}
	for _, d := range cancelled {
		var refunded int
		for {
			progress, err := b.refunds.ContinueRefunds(ctx, d.ID)
			if err != nil {
				b.skipOrLog(ctx, "continue refunds", d, err)
				break
			}
			refunded += progress.Processed
			if progress.Done {
				if refunded > 0 && b.notifier != nil {
					_ = b.notifier.RefundsCompleted(ctx, d.ID, refunded)
				}
				break
			}
			if progress.Processed == 0 {
				break
			}
		}
	}
	return nil
}

// skipOrLog drops expected contention errors and logs the rest. Another
// caller holding the duel lock or having already advanced the status is
// normal when the API races the bot.
func (b *Bot) skipOrLog(ctx context.Context, action string, d domain.Duel, err error) {
	if errors.Is(err, domain.ErrLockHeld) || errors.Is(err, domain.ErrInvalidStatus) {
		return
	}
	b.logger.WarnContext(ctx, action+" failed",
		slog.String("duel_id", d.ID.String()),
		slog.String("error", err.Error()),
	)
	if b.notifier != nil {
		_ = b.notifier.Error(ctx, action, err)
	}
}
