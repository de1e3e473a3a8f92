// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string
	BaseURL  string // Public base URL, used in payment redirect/callback links

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Enrichment upstreams
	EtherscanAPIKey string // Etherscan-family explorer key; empty degrades wallet enrichment

	// Payments (NOWPayments)
	NowPaymentsAPIKey    string // empty disables invoice creation
	NowPaymentsIPNSecret string // empty disables IPN processing

	// Entitlement & quota
	AdminEmails      []string // privileged identities, always premium
	DailyFreeLimit   int      // free wallet checks per identity per day
	SubscriptionDays int      // days granted per verified payment

	// Security
	IdentitySecret string // HMAC secret for the identity header; empty trusts the header as-is
	RateLimitRPM   int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultBaseURL          = "http://127.0.0.1:8080"
	DefaultDailyFreeLimit   = 3
	DefaultSubscriptionDays = 30
	DefaultRateLimitRPM     = 60
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		BaseURL:              getEnv("BASE_URL", DefaultBaseURL),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		EtherscanAPIKey:      os.Getenv("ETHERSCAN_API_KEY"),
		NowPaymentsAPIKey:    os.Getenv("NOWPAYMENTS_API_KEY"),
		NowPaymentsIPNSecret: os.Getenv("NOWPAYMENTS_IPN_SECRET"),
		AdminEmails:          splitList(os.Getenv("ADMIN_EMAILS")),
		DailyFreeLimit:       getEnvInt("DAILY_FREE_LIMIT", DefaultDailyFreeLimit),
		SubscriptionDays:     getEnvInt("SUBSCRIPTION_DAYS", DefaultSubscriptionDays),
		IdentitySecret:       os.Getenv("IDENTITY_SECRET"),
		RateLimitRPM:         getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency. Missing upstream credentials
// are not errors here: the service degrades per-feature instead.
func (c *Config) Validate() error {
	if c.DailyFreeLimit < 1 {
		return fmt.Errorf("DAILY_FREE_LIMIT must be at least 1, got %d", c.DailyFreeLimit)
	}
	if c.SubscriptionDays < 1 {
		return fmt.Errorf("SUBSCRIPTION_DAYS must be at least 1, got %d", c.SubscriptionDays)
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("RATE_LIMIT_RPM must be at least 1, got %d", c.RateLimitRPM)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
