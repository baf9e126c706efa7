package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Pricing defaults.
	DefaultOrgID        string
	CurrencyCode        string
	TaxRateBPS          int
	RuleDefaultPriority int

	// Quote sharing.
	ShareTokenTTL  time.Duration
	ShareRateLimit string

	// Caching and idempotency.
	CatalogCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	// Notifications.
	NotifyEmailEnabled bool
	NotifyEmailFrom    string
	WorkerConcurrency  int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:         k.String("DATABASE_URL"),
		RedisURL:            k.String("REDIS_URL"),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		DefaultOrgID:        valueOrDefault(k.String("CPQ_DEFAULT_ORG_ID"), "default"),
		CurrencyCode:        valueOrDefault(k.String("CPQ_CURRENCY"), "USD"),
		TaxRateBPS:          parseInt(k.String("CPQ_TAX_RATE_BPS"), 500),
		RuleDefaultPriority: parseInt(k.String("CPQ_RULE_DEFAULT_PRIORITY"), 0),
		ShareTokenTTL:       parseDuration(k.String("CPQ_SHARE_TOKEN_TTL"), "720h"),
		ShareRateLimit:      valueOrDefault(k.String("CPQ_SHARE_RATE_LIMIT"), "30-M"),
		CatalogCacheTTL:     parseDuration(k.String("CPQ_CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:      parseDuration(k.String("CPQ_IDEMPOTENCY_TTL"), "24h"),
		NotifyEmailEnabled:  parseBool(k.String("CPQ_NOTIFY_EMAIL_ENABLED")),
		NotifyEmailFrom:     valueOrDefault(k.String("CPQ_NOTIFY_EMAIL_FROM"), "quotes@example.com"),
		WorkerConcurrency:   parseInt(k.String("CPQ_WORKER_CONCURRENCY"), 4),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.TaxRateBPS < 0 {
		return nil, errors.New("CPQ_TAX_RATE_BPS must not be negative")
	}

	return cfg, nil
}

// MustLoad is Load for wiring paths that cannot continue without config.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
