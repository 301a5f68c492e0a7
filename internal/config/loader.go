package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DUEL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DUEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DUEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DUEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DUEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DUEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DUEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DUEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DUEL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DUEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DUEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DUEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DUEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DUEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DUEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DUEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DUEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DUEL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DUEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DUEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "DUEL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DUEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DUEL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DUEL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DUEL_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "DUEL_ORACLE_BASE_URL")
	setDuration(&cfg.Oracle.Timeout, "DUEL_ORACLE_TIMEOUT")

	// ── Engine seed ──
	setStr(&cfg.Engine.CreationFee, "DUEL_ENGINE_CREATION_FEE")
	setInt(&cfg.Engine.ProtocolFeeBps, "DUEL_ENGINE_PROTOCOL_FEE_BPS")
	setInt(&cfg.Engine.CreatorFeeBps, "DUEL_ENGINE_CREATOR_FEE_BPS")
	setInt(&cfg.Engine.SellerFeeBps, "DUEL_ENGINE_SELLER_FEE_BPS")
	setInt(&cfg.Engine.BuyerFeeBps, "DUEL_ENGINE_BUYER_FEE_BPS")
	setStr(&cfg.Engine.MinWagerThreshold, "DUEL_ENGINE_MIN_WAGER_THRESHOLD")
	setDuration(&cfg.Engine.BootstrapPeriod, "DUEL_ENGINE_BOOTSTRAP_PERIOD")
	setDuration(&cfg.Engine.ResolvingPeriod, "DUEL_ENGINE_RESOLVING_PERIOD")
	setInt(&cfg.Engine.WinnersChunkSize, "DUEL_ENGINE_WINNERS_CHUNK_SIZE")
	setInt(&cfg.Engine.RefundChunkSize, "DUEL_ENGINE_REFUND_CHUNK_SIZE")
	setStr(&cfg.Engine.MaxDuelPool, "DUEL_ENGINE_MAX_DUEL_POOL")
	setStr(&cfg.Engine.MaxProtocolPool, "DUEL_ENGINE_MAX_PROTOCOL_POOL")
	setStr(&cfg.Engine.Token, "DUEL_ENGINE_TOKEN")
	setStr(&cfg.Engine.ResolverAccount, "DUEL_ENGINE_RESOLVER_ACCOUNT")
	setStr(&cfg.Engine.ProtocolAccount, "DUEL_ENGINE_PROTOCOL_ACCOUNT")

	// ── Resolver ──
	setBool(&cfg.Resolver.Enabled, "DUEL_RESOLVER_ENABLED")
	setDuration(&cfg.Resolver.PollInterval, "DUEL_RESOLVER_POLL_INTERVAL")
	setInt(&cfg.Resolver.BatchSize, "DUEL_RESOLVER_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DUEL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DUEL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DUEL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.OwnerKey, "DUEL_SERVER_OWNER_KEY")
	setStr(&cfg.Server.ResolverKey, "DUEL_SERVER_RESOLVER_KEY")
	setInt(&cfg.Server.RateLimit, "DUEL_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DUEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DUEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DUEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DUEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DUEL_MODE")
	setStr(&cfg.LogLevel, "DUEL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
