package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/duelhouse/duelengine/internal/blob/s3"
	"github.com/duelhouse/duelengine/internal/cache/redis"
	"github.com/duelhouse/duelengine/internal/config"
	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/ledger"
	"github.com/duelhouse/duelengine/internal/notify"
	"github.com/duelhouse/duelengine/internal/oracle"
	"github.com/duelhouse/duelengine/internal/store/cached"
	"github.com/duelhouse/duelengine/internal/store/memory"
	"github.com/duelhouse/duelengine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	DuelStore     domain.DuelStore
	WagerStore    domain.WagerStore
	ClaimStore    domain.ClaimStore
	ListingStore  domain.ListingStore
	EarningsStore domain.EarningsStore
	PayoutStore   domain.PayoutStore
	ParamsStore   domain.ParamsStore
	AuditStore    domain.AuditStore

	// Coordination
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Value movement and prices
	Ledger domain.ValueLedger
	Oracle domain.PriceSource

	// Blob archive (postgres modes with S3 configured)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// memoryMode reports whether the mode runs entirely on in-process backends.
func memoryMode(mode string) bool {
	return mode == "memory"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if memoryMode(cfg.Mode) {
		arena := memory.New()
		deps.DuelStore = arena.Duels()
		deps.WagerStore = arena.Wagers()
		deps.ClaimStore = arena.Claims()
		deps.ListingStore = arena.Listings()
		deps.EarningsStore = arena.Earnings()
		deps.PayoutStore = arena.Payouts()
		deps.ParamsStore = arena.Params()
		deps.AuditStore = arena.Audit()
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
	} else {
		// --- PostgreSQL ---
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		// --- Redis ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		pool := pgClient.Pool()
		duelCache := redis.NewDuelCache(redisClient)

		deps.DuelStore = cached.NewDuelStore(postgres.NewDuelStore(pool), duelCache)
		deps.WagerStore = cached.NewWagerStore(postgres.NewWagerStore(pool), duelCache)
		deps.ClaimStore = postgres.NewClaimStore(pool)
		deps.ListingStore = postgres.NewListingStore(pool)
		deps.EarningsStore = postgres.NewEarningsStore(pool)
		deps.PayoutStore = cached.NewPayoutStore(postgres.NewPayoutStore(pool), duelCache)
		deps.ParamsStore = postgres.NewParamsStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)

		// --- S3 duel archive (optional) ---
		if cfg.S3.Endpoint != "" || cfg.S3.AccessKey != "" {
			s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				UseSSL:         cfg.S3.UseSSL,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}
			if err := s3Client.Health(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}
			closers = append(closers, func() { _ = s3Client.Close() })

			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				s3blob.NewReader(s3Client),
				deps.DuelStore,
				deps.AuditStore,
			)
		}
	}

	// --- Participation-token value ledger ---
	params, err := cfg.EngineParams()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: engine params: %w", err)
	}
	deps.Ledger = ledger.New(params.Token)

	// --- Price oracle ---
	if cfg.Oracle.BaseURL != "" {
		deps.Oracle = oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.Timeout.Duration)
	} else {
		deps.Oracle = oracle.NewStatic(nil)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
