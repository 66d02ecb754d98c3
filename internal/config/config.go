// Package config resolves the service configuration from built-in defaults,
// an optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName     string
	HTTPPort        int
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	Marketplace MarketplaceConfig
	Auth        AuthConfig
	Fetch       FetchConfig
	Cache       CacheConfig
	Rates       RatesConfig
}

type MarketplaceConfig struct {
	BaseURL          string
	CompanyURI       string
	PublicBaseURL    string
	RegisterListings bool
	EnrichLimit      int
	BatchSize        int
	FleetPageSize    int
	FleetMaxPages    int
}

type AuthConfig struct {
	PrivateKeyPEM     string
	KeyID             string
	TokenURL          string
	Audience          string
	Scopes            []string
	AssertionLifetime time.Duration
	TokenTTL          time.Duration
	AllowEphemeralKey bool
}

type FetchConfig struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Timeout          time.Duration
	Backoff          string
	Jitter           float64
	BreakerEnabled   bool
	BreakerFailures  int
	BreakerRecovery  time.Duration
	UserAgent        string
	MaxResponseBytes int64
}

type CacheConfig struct {
	ResponseTTL time.Duration
	Shards      int
}

type RatesConfig struct {
	URL string
	TTL time.Duration
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		Name            string        `yaml:"name"`
		HTTPPort        int           `yaml:"http_port"`
		LogLevel        string        `yaml:"log_level"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"service"`
	Marketplace struct {
		BaseURL          string `yaml:"base_url"`
		CompanyURI       string `yaml:"company_uri"`
		PublicBaseURL    string `yaml:"public_base_url"`
		RegisterListings *bool  `yaml:"register_listings"`
		EnrichLimit      *int   `yaml:"enrich_limit"`
		BatchSize        int    `yaml:"batch_size"`
		FleetPageSize    int    `yaml:"fleet_page_size"`
		FleetMaxPages    int    `yaml:"fleet_max_pages"`
	} `yaml:"marketplace"`
	Auth struct {
		KeyID             string        `yaml:"key_id"`
		TokenURL          string        `yaml:"token_url"`
		Audience          string        `yaml:"audience"`
		Scopes            []string      `yaml:"scopes"`
		AssertionLifetime time.Duration `yaml:"assertion_lifetime"`
		TokenTTL          time.Duration `yaml:"token_ttl"`
		AllowEphemeralKey *bool         `yaml:"allow_ephemeral_key"`
	} `yaml:"auth"`
	Fetch struct {
		MaxAttempts      int           `yaml:"max_attempts"`
		BaseDelay        time.Duration `yaml:"base_delay"`
		MaxDelay         time.Duration `yaml:"max_delay"`
		Timeout          time.Duration `yaml:"timeout"`
		Backoff          string        `yaml:"backoff"`
		Jitter           float64       `yaml:"jitter"`
		MaxResponseBytes int64         `yaml:"max_response_bytes"`
		UserAgent        string        `yaml:"user_agent"`
		Breaker          struct {
			Enabled  *bool         `yaml:"enabled"`
			Failures int           `yaml:"failures"`
			Recovery time.Duration `yaml:"recovery"`
		} `yaml:"breaker"`
	} `yaml:"fetch"`
	Cache struct {
		ResponseTTL time.Duration `yaml:"response_ttl"`
		Shards      int           `yaml:"shards"`
	} `yaml:"cache"`
	Rates struct {
		URL string        `yaml:"url"`
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"rates"`
}

// Default returns the built-in configuration. It is not valid on its own:
// the marketplace URL and company must still be supplied.
func Default() Config {
	return Config{
		ServiceName:     "ahoyd",
		HTTPPort:        8080,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: 10 * time.Second,
		Marketplace: MarketplaceConfig{
			EnrichLimit:   20,
			BatchSize:     20,
			FleetPageSize: 100,
			FleetMaxPages: 20,
		},
		Auth: AuthConfig{
			TokenURL:          "https://api.ankor.io/iam/oauth/token",
			Audience:          "ankor.io",
			Scopes:            []string{"website:read:*"},
			AssertionLifetime: time.Hour,
			TokenTTL:          50 * time.Minute,
		},
		Fetch: FetchConfig{
			MaxAttempts:      3,
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			Timeout:          10 * time.Second,
			Backoff:          "exponential",
			BreakerEnabled:   true,
			BreakerFailures:  5,
			BreakerRecovery:  time.Minute,
			UserAgent:        "ahoyd",
			MaxResponseBytes: 10 << 20,
		},
		Cache: CacheConfig{
			ResponseTTL: 5 * time.Minute,
			Shards:      16,
		},
		Rates: RatesConfig{
			URL: "https://api.exchangerate-api.com/v4/latest/USD",
			TTL: time.Hour,
		},
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.ServiceName, f.Service.Name)
	setInt(&cfg.HTTPPort, f.Service.HTTPPort)
	if f.Service.LogLevel != "" {
		level, err := parseLevel(f.Service.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	setDuration(&cfg.ShutdownTimeout, f.Service.ShutdownTimeout)
	if len(f.Service.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = f.Service.AllowedOrigins
	}

	m := &cfg.Marketplace
	setString(&m.BaseURL, f.Marketplace.BaseURL)
	setString(&m.CompanyURI, f.Marketplace.CompanyURI)
	setString(&m.PublicBaseURL, f.Marketplace.PublicBaseURL)
	if f.Marketplace.RegisterListings != nil {
		m.RegisterListings = *f.Marketplace.RegisterListings
	}
	if f.Marketplace.EnrichLimit != nil {
		m.EnrichLimit = *f.Marketplace.EnrichLimit
	}
	setInt(&m.BatchSize, f.Marketplace.BatchSize)
	setInt(&m.FleetPageSize, f.Marketplace.FleetPageSize)
	setInt(&m.FleetMaxPages, f.Marketplace.FleetMaxPages)

	a := &cfg.Auth
	setString(&a.KeyID, f.Auth.KeyID)
	setString(&a.TokenURL, f.Auth.TokenURL)
	setString(&a.Audience, f.Auth.Audience)
	if len(f.Auth.Scopes) > 0 {
		a.Scopes = f.Auth.Scopes
	}
	setDuration(&a.AssertionLifetime, f.Auth.AssertionLifetime)
	setDuration(&a.TokenTTL, f.Auth.TokenTTL)
	if f.Auth.AllowEphemeralKey != nil {
		a.AllowEphemeralKey = *f.Auth.AllowEphemeralKey
	}

	fc := &cfg.Fetch
	setInt(&fc.MaxAttempts, f.Fetch.MaxAttempts)
	setDuration(&fc.BaseDelay, f.Fetch.BaseDelay)
	setDuration(&fc.MaxDelay, f.Fetch.MaxDelay)
	setDuration(&fc.Timeout, f.Fetch.Timeout)
	setString(&fc.Backoff, f.Fetch.Backoff)
	if f.Fetch.Jitter > 0 {
		fc.Jitter = f.Fetch.Jitter
	}
	if f.Fetch.MaxResponseBytes > 0 {
		fc.MaxResponseBytes = f.Fetch.MaxResponseBytes
	}
	setString(&fc.UserAgent, f.Fetch.UserAgent)
	if f.Fetch.Breaker.Enabled != nil {
		fc.BreakerEnabled = *f.Fetch.Breaker.Enabled
	}
	setInt(&fc.BreakerFailures, f.Fetch.Breaker.Failures)
	setDuration(&fc.BreakerRecovery, f.Fetch.Breaker.Recovery)

	setDuration(&cfg.Cache.ResponseTTL, f.Cache.ResponseTTL)
	setInt(&cfg.Cache.Shards, f.Cache.Shards)
	setString(&cfg.Rates.URL, f.Rates.URL)
	setDuration(&cfg.Rates.TTL, f.Rates.TTL)
	return nil
}

// applyEnv reads the variable names the service has always used first, then
// the more specific names.
func (cfg *Config) applyEnv() {
	cfg.HTTPPort = envInt("PORT", envInt("HTTP_PORT", cfg.HTTPPort))
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := parseLevel(raw); err == nil {
			cfg.LogLevel = level
		}
	}
	cfg.AllowedOrigins = envCSV("ALLOWED_ORIGINS", cfg.AllowedOrigins)

	m := &cfg.Marketplace
	m.BaseURL = envOrDefault("MARKETPLACE_API_URL", envOrDefault("NEXT_PUBLIC_BASE_ANKOR_API_URL", m.BaseURL))
	m.CompanyURI = envOrDefault("COMPANY_URI", envOrDefault("NEXT_PUBLIC_COMPANY_URI", m.CompanyURI))
	m.PublicBaseURL = envOrDefault("BASE_URL", m.PublicBaseURL)
	m.RegisterListings = envBool("REGISTER_LISTINGS", m.RegisterListings)
	m.EnrichLimit = envInt("ENRICH_LIMIT", m.EnrichLimit)

	a := &cfg.Auth
	a.PrivateKeyPEM = envOrDefault("PRIVATE_KEY", a.PrivateKeyPEM)
	a.KeyID = envOrDefault("KEY_ID", a.KeyID)
	a.TokenURL = envOrDefault("TOKEN_URL", a.TokenURL)
	a.Scopes = envCSV("TOKEN_SCOPES", a.Scopes)
	a.TokenTTL = envDuration("TOKEN_TTL", a.TokenTTL)
	a.AllowEphemeralKey = envBool("ALLOW_EPHEMERAL_KEY", a.AllowEphemeralKey)

	fc := &cfg.Fetch
	fc.MaxAttempts = envInt("FETCH_MAX_ATTEMPTS", fc.MaxAttempts)
	fc.BaseDelay = envDuration("FETCH_BASE_DELAY", fc.BaseDelay)
	fc.Timeout = envDuration("FETCH_TIMEOUT", fc.Timeout)
	fc.Backoff = envOrDefault("FETCH_BACKOFF", fc.Backoff)

	cfg.Cache.ResponseTTL = envDuration("CACHE_TTL", cfg.Cache.ResponseTTL)
	cfg.Rates.URL = envOrDefault("RATES_URL", cfg.Rates.URL)
}

// Validate reports every problem at once.
func (cfg Config) Validate() error {
	var problems []string
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("http port %d out of range", cfg.HTTPPort))
	}
	if cfg.Marketplace.BaseURL == "" {
		problems = append(problems, "missing MARKETPLACE_API_URL/NEXT_PUBLIC_BASE_ANKOR_API_URL")
	}
	if cfg.Marketplace.CompanyURI == "" {
		problems = append(problems, "missing COMPANY_URI/NEXT_PUBLIC_COMPANY_URI")
	}
	if cfg.Marketplace.RegisterListings && cfg.Marketplace.PublicBaseURL == "" {
		problems = append(problems, "listing registration needs BASE_URL")
	}
	if cfg.Marketplace.EnrichLimit < 0 {
		problems = append(problems, "enrich limit must not be negative")
	}
	if cfg.Marketplace.BatchSize <= 0 {
		problems = append(problems, "batch size must be positive")
	}
	if (cfg.Auth.PrivateKeyPEM == "" || cfg.Auth.KeyID == "") && !cfg.Auth.AllowEphemeralKey {
		problems = append(problems, "missing PRIVATE_KEY or KEY_ID")
	}
	if cfg.Auth.TokenURL == "" {
		problems = append(problems, "missing token URL")
	}
	if cfg.Fetch.MaxAttempts <= 0 {
		problems = append(problems, "fetch max attempts must be positive")
	}
	if cfg.Fetch.Timeout <= 0 {
		problems = append(problems, "fetch timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the HTTP listen address.
func (cfg Config) Addr() string {
	return fmt.Sprintf(":%d", cfg.HTTPPort)
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", raw, err)
	}
	return level, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go duration strings ("90s", "5m").
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
