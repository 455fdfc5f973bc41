// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles polychat configuration loading and management.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/polychat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the main configuration structure.
type Config struct {
	Version   string          `toml:"version" json:"version"`
	Server    ServerConfig    `toml:"server" json:"server"`
	Database  DatabaseConfig  `toml:"database" json:"database"`
	Provider  ProviderConfig  `toml:"provider" json:"provider"`
	RateLimit RateLimitConfig `toml:"rate_limit" json:"rate_limit"`
	Mentors   MentorsConfig   `toml:"mentors" json:"mentors"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Client    ClientConfig    `toml:"client" json:"client"`
	Admin     AdminConfig     `toml:"admin" json:"admin"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr             string   `toml:"addr" json:"addr"`
	ReadTimeoutSecs  int      `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs int      `toml:"write_timeout_secs" json:"write_timeout_secs"`
	CORSOrigins      []string `toml:"cors_origins" json:"cors_origins"`
	TrustedProxies   []string `toml:"trusted_proxies" json:"trusted_proxies"`
	IPRatePerSecond  float64  `toml:"ip_rate_per_second" json:"ip_rate_per_second"`
	IPBurst          int      `toml:"ip_burst" json:"ip_burst"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `toml:"driver" json:"driver"` // sqlite or postgres
	DSN    string `toml:"dsn" json:"dsn"`
}

// ProviderConfig configures the language model provider.
type ProviderConfig struct {
	BaseURL      string `toml:"base_url" json:"base_url"`
	APIKey       string `toml:"api_key" json:"api_key,omitempty"`
	DefaultModel string `toml:"default_model" json:"default_model"`
	TimeoutSecs  int    `toml:"timeout_secs" json:"timeout_secs"`
	Referer      string `toml:"referer" json:"referer"`
	Title        string `toml:"title" json:"title"`
}

// RateLimitConfig configures the per-conversation sliding window.
type RateLimitConfig struct {
	WindowSecs  int `toml:"window_secs" json:"window_secs"`
	MaxMessages int `toml:"max_messages" json:"max_messages"`
}

// MentorsConfig points at an optional mentor registry directory.
type MentorsConfig struct {
	Dir   string `toml:"dir" json:"dir"`
	Watch bool   `toml:"watch" json:"watch"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Pretty bool   `toml:"pretty" json:"pretty"`
	Caller bool   `toml:"caller" json:"caller"`
}

// AdminConfig guards the mentor config endpoints. An empty token hash leaves
// them open, which is only suitable for local use.
type AdminConfig struct {
	TokenHash  string `toml:"token_hash" json:"token_hash,omitempty"`
	TOTPSecret string `toml:"totp_secret" json:"totp_secret,omitempty"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	APIURL             string `toml:"api_url" json:"api_url"`
	SessionFile        string `toml:"session_file" json:"session_file"`
	HealthIntervalSecs int    `toml:"health_interval_secs" json:"health_interval_secs"`
	TimeoutSecs        int    `toml:"timeout_secs" json:"timeout_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// DefaultChatModel is used when neither the request nor the catalog picks one.
const DefaultChatModel = "openai/gpt-4o-mini"

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Addr:             "127.0.0.1:8787",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 60,
			CORSOrigins:      []string{"*"},
			IPRatePerSecond:  10,
			IPBurst:          40,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "",
		},
		Provider: ProviderConfig{
			BaseURL:      DefaultOpenRouterURL,
			DefaultModel: DefaultChatModel,
			TimeoutSecs:  15,
			Title:        "Polychat",
		},
		RateLimit: RateLimitConfig{
			WindowSecs:  60,
			MaxMessages: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Client: ClientConfig{
			APIURL:             "http://127.0.0.1:8787",
			HealthIntervalSecs: 30,
			TimeoutSecs:        30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the polychat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("POLYCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".polychat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path. An empty path tries the TOML file in
// ConfigDir, then the JSON file, then falls back to defaults. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if p, err := ConfigPathTOML(); err == nil && fileExists(p) {
			path = p
		} else if p, err := ConfigPathJSON(); err == nil && fileExists(p) {
			path = p
		}
	}

	if path != "" {
		var err error
		if strings.HasSuffix(path, ".json") {
			err = LoadJSON(cfg, path)
		} else {
			err = LoadTOML(cfg, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.ReadTimeoutSecs <= 0 {
		cfg.Server.ReadTimeoutSecs = defaults.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs <= 0 {
		cfg.Server.WriteTimeoutSecs = defaults.Server.WriteTimeoutSecs
	}
	if cfg.Server.IPBurst <= 0 {
		cfg.Server.IPBurst = defaults.Server.IPBurst
	}

	// Database
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		cfg.Database.DSN = filepath.Join(dir, "polychat.db")
	}

	// Provider
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = defaults.Provider.BaseURL
	}
	if cfg.Provider.DefaultModel == "" {
		cfg.Provider.DefaultModel = defaults.Provider.DefaultModel
	}
	if cfg.Provider.TimeoutSecs <= 0 {
		cfg.Provider.TimeoutSecs = defaults.Provider.TimeoutSecs
	}

	// Rate limit
	if cfg.RateLimit.WindowSecs <= 0 {
		cfg.RateLimit.WindowSecs = defaults.RateLimit.WindowSecs
	}
	if cfg.RateLimit.MaxMessages <= 0 {
		cfg.RateLimit.MaxMessages = defaults.RateLimit.MaxMessages
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	// Client
	if cfg.Client.APIURL == "" {
		cfg.Client.APIURL = defaults.Client.APIURL
	}
	if cfg.Client.HealthIntervalSecs <= 0 {
		cfg.Client.HealthIntervalSecs = defaults.Client.HealthIntervalSecs
	}
	if cfg.Client.TimeoutSecs <= 0 {
		cfg.Client.TimeoutSecs = defaults.Client.TimeoutSecs
	}
	if cfg.Client.SessionFile == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		cfg.Client.SessionFile = filepath.Join(dir, "session.json")
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration as TOML with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# polychat configuration\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, ValidationError{
			Field:   "database.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: sqlite, postgres", c.Database.Driver),
		})
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		errs = append(errs, ValidationError{Field: "database.dsn", Message: "required for postgres"})
	}

	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{Field: "provider.base_url", Message: fmt.Sprintf("invalid URL '%s'", c.Provider.BaseURL)})
	}
	if c.Provider.TimeoutSecs > 300 {
		errs = append(errs, ValidationError{Field: "provider.timeout_secs", Message: "must be at most 300"})
	}

	if c.RateLimit.MaxMessages > 10000 {
		errs = append(errs, ValidationError{Field: "rate_limit.max_messages", Message: "must be at most 10000"})
	}

	if c.Server.IPRatePerSecond < 0 {
		errs = append(errs, ValidationError{Field: "server.ip_rate_per_second", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if u, err := url.Parse(c.Client.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{Field: "client.api_url", Message: fmt.Sprintf("invalid URL '%s'", c.Client.APIURL)})
	}

	if c.Admin.TOTPSecret != "" && c.Admin.TokenHash == "" {
		errs = append(errs, ValidationError{Field: "admin.totp_secret", Message: "requires admin.token_hash"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// ProviderTimeout returns the provider request timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSecs) * time.Second
}

// RateLimitWindow returns the sliding window length.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSecs) * time.Second
}

// HealthInterval returns the client health check interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Client.HealthIntervalSecs) * time.Second
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - POLYCHAT_ADDR: overrides server.addr
//   - POLYCHAT_DB_DRIVER, POLYCHAT_DB_DSN: override database settings
//   - OPENROUTER_API_KEY, POLYCHAT_API_KEY: override provider.api_key
//   - POLYCHAT_PROVIDER_URL: overrides provider.base_url
//   - POLYCHAT_MODEL: overrides provider.default_model
//   - POLYCHAT_PROVIDER_TIMEOUT: seconds, overrides provider.timeout_secs
//   - POLYCHAT_RATE_WINDOW, POLYCHAT_RATE_MAX: override rate_limit
//   - POLYCHAT_MENTORS_DIR: overrides mentors.dir
//   - POLYCHAT_LOG_LEVEL: overrides logging.level
//   - POLYCHAT_API_URL: overrides client.api_url
//   - POLYCHAT_ADMIN_TOKEN_HASH, POLYCHAT_ADMIN_TOTP_SECRET: override admin
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("POLYCHAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("POLYCHAT_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("POLYCHAT_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("POLYCHAT_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("POLYCHAT_PROVIDER_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("POLYCHAT_MODEL"); v != "" {
		c.Provider.DefaultModel = v
	}
	if n, ok := envInt("POLYCHAT_PROVIDER_TIMEOUT"); ok {
		c.Provider.TimeoutSecs = n
	}
	if n, ok := envInt("POLYCHAT_RATE_WINDOW"); ok {
		c.RateLimit.WindowSecs = n
	}
	if n, ok := envInt("POLYCHAT_RATE_MAX"); ok {
		c.RateLimit.MaxMessages = n
	}
	if v := os.Getenv("POLYCHAT_MENTORS_DIR"); v != "" {
		c.Mentors.Dir = v
	}
	if v := os.Getenv("POLYCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("POLYCHAT_API_URL"); v != "" {
		c.Client.APIURL = v
	}
	if v := os.Getenv("POLYCHAT_ADMIN_TOKEN_HASH"); v != "" {
		c.Admin.TokenHash = v
	}
	if v := os.Getenv("POLYCHAT_ADMIN_TOTP_SECRET"); v != "" {
		c.Admin.TOTPSecret = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not an integer\n", key, v)
		return 0, false
	}
	return n, true
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the global configuration, loading defaults on first access.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	loaded, err := Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		loaded = Default()
		_ = fillDefaults(loaded)
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}
