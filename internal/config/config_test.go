// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("POLYCHAT_HOME", dir)
	for _, key := range []string{
		"POLYCHAT_ADDR", "POLYCHAT_DB_DRIVER", "POLYCHAT_DB_DSN", "OPENROUTER_API_KEY",
		"POLYCHAT_API_KEY", "POLYCHAT_PROVIDER_URL", "POLYCHAT_MODEL", "POLYCHAT_PROVIDER_TIMEOUT",
		"POLYCHAT_RATE_WINDOW", "POLYCHAT_RATE_MAX", "POLYCHAT_MENTORS_DIR", "POLYCHAT_LOG_LEVEL",
		"POLYCHAT_API_URL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "polychat.db"), cfg.Database.DSN)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout())
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow())
	assert.Equal(t, 20, cfg.RateLimit.MaxMessages)
	assert.Equal(t, DefaultChatModel, cfg.Provider.DefaultModel)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "0.0.0.0:9000"

[rate_limit]
max_messages = 5

[provider]
timeout_secs = 3
`), 0600))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.RateLimit.MaxMessages)
	assert.Equal(t, 60, cfg.RateLimit.WindowSecs, "unset fields keep defaults")
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout())
}

func TestLoad_JSONPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("POLYCHAT_RATE_MAX", "7")
	t.Setenv("POLYCHAT_MODEL", "xai/grok-4-fast")
	t.Setenv("POLYCHAT_PROVIDER_TIMEOUT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 7, cfg.RateLimit.MaxMessages)
	assert.Equal(t, "xai/grok-4-fast", cfg.Provider.DefaultModel)
	assert.Equal(t, 15, cfg.Provider.TimeoutSecs)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres needs dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }, "database.dsn"},
		{"bad provider url", func(c *Config) { c.Provider.BaseURL = "not a url" }, "provider.base_url"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"negative ip rate", func(c *Config) { c.Server.IPRatePerSecond = -1 }, "server.ip_rate_per_second"},
		{"totp without token", func(c *Config) { c.Admin.TOTPSecret = "JBSWY3DPEHPK3PXP" }, "admin.totp_secret"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

// =============================================================================
// SAVE AND GLOBAL TESTS
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Server.Addr = "127.0.0.1:1234"
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", loaded.Server.Addr)
}

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	SetGlobal(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}
