package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "duel.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "memory"
log_level = "debug"

[engine]
creation_fee = "2.5"
bootstrap_period = "10m"

[server]
port = 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Mode)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Engine.BootstrapPeriod.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr, "untouched defaults survive")

	params, err := cfg.EngineParams()
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_500_000), params.CreationFee)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "memory"`)

	t.Setenv("DUEL_SERVER_PORT", "8443")
	t.Setenv("DUEL_ENGINE_MIN_WAGER_THRESHOLD", "80")
	t.Setenv("DUEL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "80", cfg.Engine.MinWagerThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"threshold out of range", func(c *Config) { c.Engine.MinWagerThreshold = "500" }},
		{"bootstrap too long", func(c *Config) { c.Engine.BootstrapPeriod = duration{2 * time.Hour} }},
		{"chunk below floor", func(c *Config) { c.Engine.WinnersChunkSize = 5 }},
		{"unknown token", func(c *Config) { c.Engine.Token = "doubloon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Mode = "memory"
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRequiresBackendsOutsideMemoryMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Resolver.Enabled = false
	cfg.Redis.Addr = ""
	require.Error(t, cfg.Validate())

	cfg.Redis.Addr = "localhost:6379"
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresOracleForResolver(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	require.Error(t, cfg.Validate(), "resolver without an oracle endpoint")

	cfg.Oracle.BaseURL = "http://localhost:7100"
	require.NoError(t, cfg.Validate())
}
