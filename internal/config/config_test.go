package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 3s
database:
  url: postgres://u:p@db:5432/rentals?sslmode=disable
auth:
  jwt_secret: `+testSecret+`
  token_ttl: 2h
log:
  level: debug
  format: console
audit:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, "postgres://u:p@db:5432/rentals?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, ":9090", cfg.Address())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://env@localhost/env")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("AUDIT_SCHEDULE", "0 0 * * * *")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres://env@localhost/env", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "0 0 * * * *", cfg.Audit.Schedule)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unterminated"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("bad port env", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("PORT", "eighty")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid PORT")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = testSecret
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"db url", func(c *Config) { c.Database.URL = "" }, "database url is required"},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt secret is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32 characters"},
		{"ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "invalid token ttl"},
		{"rate", func(c *Config) { c.Auth.LoginBurst = 0 }, "rate limit"},
		{"audit", func(c *Config) { c.Audit.Schedule = "" }, "audit schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
