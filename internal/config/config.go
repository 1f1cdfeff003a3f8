package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
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
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  http.SameSite

	CurrencyCode     string
	TaxRateBPS       int
	LoyaltyUnit      int
	CartTTL          time.Duration
	TenderSessionTTL time.Duration
	ShiftLockTTL     time.Duration
	CatalogCacheTTL  time.Duration
	ReportCacheTTL   time.Duration
	ReportRangeDays  int
	IdempotencyTTL   time.Duration

	LoginRateLimit  int
	LoginRateWindow time.Duration

	ReceiptEmailEnabled bool
	WebhookEnabled      bool
	WebhookURL          string
	WebhookSecret       string
	WebhookMaxAttempts  int
	WorkerConcurrency   int

	OTLPEndpoint string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL:  parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		RefreshTokenTTL: parseDuration(k.String("REFRESH_TOKEN_TTL"), "720h"),
		CookieDomain:    strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:    parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite:  parseSameSite(k.String("COOKIE_SAMESITE")),

		CurrencyCode:     valueOrDefault(k.String("CURRENCY_CODE"), "USD"),
		TaxRateBPS:       intOrDefault(k.Int("PRICING_TAX_RATE_BPS"), 800),
		LoyaltyUnit:      intOrDefault(k.Int("LOYALTY_POINTS_PER_CURRENCY_UNIT"), 100),
		CartTTL:          parseDuration(k.String("CART_TTL"), "12h"),
		TenderSessionTTL: parseDuration(k.String("TENDER_SESSION_TTL"), "30m"),
		ShiftLockTTL:     parseDuration(k.String("SHIFT_LOCK_TTL"), "10s"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		ReportCacheTTL:   parseDuration(k.String("REPORT_CACHE_TTL"), "10m"),
		ReportRangeDays:  intOrDefault(k.Int("REPORT_DEFAULT_RANGE_DAYS"), 30),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		LoginRateLimit:  intOrDefault(k.Int("LOGIN_RATE_LIMIT"), 10),
		LoginRateWindow: parseDuration(k.String("LOGIN_RATE_WINDOW"), "1m"),

		ReceiptEmailEnabled: parseBool(k.String("RECEIPT_EMAIL_ENABLED")),
		WebhookEnabled:      parseBool(k.String("WEBHOOK_ENABLED")),
		WebhookURL:          strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:       k.String("WEBHOOK_SECRET"),
		WebhookMaxAttempts:  intOrDefault(k.Int("WEBHOOK_MAX_ATTEMPTS"), 6),
		WorkerConcurrency:   intOrDefault(k.Int("WORKER_CONCURRENCY"), 4),

		OTLPEndpoint: strings.TrimSpace(k.String("OTLP_ENDPOINT")),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TaxRateBPS < 0 || cfg.TaxRateBPS > 10000 {
		return nil, errors.New("PRICING_TAX_RATE_BPS must be between 0 and 10000")
	}

	return cfg, nil
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

func intOrDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
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
