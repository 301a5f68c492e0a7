// Package config defines the top-level configuration for the duel engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DUEL_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Engine   EngineConfig   `toml:"engine"`
	Resolver ResolverConfig `toml:"resolver"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the duel
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds the price feed endpoint used to start and settle
// price-trigger duels.
type OracleConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// EngineConfig seeds the engine parameters at first boot. Once a persisted
// copy exists the admin surface owns them; these values are only the seed.
type EngineConfig struct {
	CreationFee       string   `toml:"creation_fee"`
	ProtocolFeeBps    int      `toml:"protocol_fee_bps"`
	CreatorFeeBps     int      `toml:"creator_fee_bps"`
	SellerFeeBps      int      `toml:"seller_fee_bps"`
	BuyerFeeBps       int      `toml:"buyer_fee_bps"`
	MinWagerThreshold string   `toml:"min_wager_threshold"`
	BootstrapPeriod   duration `toml:"bootstrap_period"`
	ResolvingPeriod   duration `toml:"resolving_period"`
	WinnersChunkSize  int      `toml:"winners_chunk_size"`
	RefundChunkSize   int      `toml:"refund_chunk_size"`
	MaxDuelPool       string   `toml:"max_duel_pool"`
	MaxProtocolPool   string   `toml:"max_protocol_pool"`
	Token             string   `toml:"token"`
	ResolverAccount   string   `toml:"resolver_account"`
	ProtocolAccount   string   `toml:"protocol_account"`
}

// ResolverConfig tunes the background resolver loop: how often it scans for
// due duels and drives pending distributions.
type ResolverConfig struct {
	Enabled      bool     `toml:"enabled"`
	PollInterval duration `toml:"poll_interval"`
	BatchSize    int      `toml:"batch_size"`
}

// ServerConfig holds the HTTP API parameters. OwnerKey authenticates the
// admin and fee surface, ResolverKey the lifecycle transitions.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	OwnerKey    string   `toml:"owner_key"`
	ResolverKey string   `toml:"resolver_key"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials and the event names
// to forward.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML files can use "15m" / "48h" strings.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns the built-in configuration applied before the TOML file
// and environment overrides.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "duelengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "duel-archive",
			UseSSL: true,
		},
		Oracle: OracleConfig{
			Timeout: duration{10 * time.Second},
		},
		Engine: EngineConfig{
			CreationFee:       "5",
			ProtocolFeeBps:    200,
			CreatorFeeBps:     200,
			SellerFeeBps:      100,
			BuyerFeeBps:       100,
			MinWagerThreshold: "100",
			BootstrapPeriod:   duration{15 * time.Minute},
			ResolvingPeriod:   duration{48 * time.Hour},
			WinnersChunkSize:  50,
			RefundChunkSize:   50,
			MaxDuelPool:       "1000000",
			MaxProtocolPool:   "10000000",
			Token:             string(domain.TokenStable),
		},
		Resolver: ResolverConfig{
			Enabled:      true,
			PollInterval: duration{30 * time.Second},
			BatchSize:    50,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"duel_settled", "duel_cancelled", "refunds_completed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"resolve": true,
	"full":    true,
	"memory":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// EngineParams converts the seed section into validated domain parameters.
func (c *Config) EngineParams() (domain.EngineParams, error) {
	fee, err := domain.ParseMoney(c.Engine.CreationFee)
	if err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: creation_fee: %w", err)
	}
	threshold, err := domain.ParseMoney(c.Engine.MinWagerThreshold)
	if err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: min_wager_threshold: %w", err)
	}
	maxDuel, err := domain.ParseMoney(c.Engine.MaxDuelPool)
	if err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: max_duel_pool: %w", err)
	}
	maxProtocol, err := domain.ParseMoney(c.Engine.MaxProtocolPool)
	if err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: max_protocol_pool: %w", err)
	}

	p := domain.EngineParams{
		CreationFee:       fee,
		ProtocolFeeBps:    c.Engine.ProtocolFeeBps,
		CreatorFeeBps:     c.Engine.CreatorFeeBps,
		SellerFeeBps:      c.Engine.SellerFeeBps,
		BuyerFeeBps:       c.Engine.BuyerFeeBps,
		MinWagerThreshold: threshold,
		BootstrapPeriod:   c.Engine.BootstrapPeriod.Duration,
		ResolvingPeriod:   c.Engine.ResolvingPeriod.Duration,
		WinnersChunkSize:  c.Engine.WinnersChunkSize,
		RefundChunkSize:   c.Engine.RefundChunkSize,
		MaxDuelPool:       maxDuel,
		MaxProtocolPool:   maxProtocol,
		Token:             domain.TokenKind(c.Engine.Token),
	}
	if c.Engine.ResolverAccount != "" {
		acct, err := domain.ParseAccount(c.Engine.ResolverAccount)
		if err != nil {
			return domain.EngineParams{}, fmt.Errorf("engine: resolver_account: %w", err)
		}
		p.ResolverAccount = acct
	}
	if c.Engine.ProtocolAccount != "" {
		acct, err := domain.ParseAccount(c.Engine.ProtocolAccount)
		if err != nil {
			return domain.EngineParams{}, fmt.Errorf("engine: protocol_account: %w", err)
		}
		p.ProtocolAccount = acct
	}
	if err := p.Validate(); err != nil {
		return domain.EngineParams{}, fmt.Errorf("engine: %w", err)
	}
	return p, nil
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, resolve, full, memory)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Memory mode carries its own stores; external backends are only
	// required outside it.
	external := strings.ToLower(c.Mode) != "memory"

	// Postgres
	if external {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}

		// Redis
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Oracle — required when the resolver runs, which needs prices for
	// price-trigger duels.
	if c.Resolver.Enabled && (c.Mode == "resolve" || c.Mode == "full") {
		if c.Oracle.BaseURL == "" {
			errs = append(errs, "oracle: base_url is required when the resolver is enabled")
		}
		if c.Resolver.PollInterval.Duration <= 0 {
			errs = append(errs, "resolver: poll_interval must be > 0")
		}
		if c.Resolver.BatchSize < 1 {
			errs = append(errs, "resolver: batch_size must be >= 1")
		}
	}

	// Engine seed parameters
	if _, err := c.EngineParams(); err != nil {
		errs = append(errs, err.Error())
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 1 {
			errs = append(errs, "server: rate_limit must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
