// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	AllowedOrigins []string

	// Document store (GitHub Contents API)
	GitHubAPIURL string
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string
	GitHubToken  string
	DataFile     string

	// Exchange rates
	RatesAPIURL   string
	LocalCurrency string
	QuoteCurrency string
	FallbackRate  float64

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	JWTSecret         string
	JWTAccessTTL      time.Duration
	OwnerPassword     string
	OwnerPasswordHash string

	// Snapshots
	SnapshotSchedule string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		GitHubAPIURL: getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubOwner:  getEnv("GITHUB_OWNER", ""),
		GitHubRepo:   getEnv("GITHUB_REPO", ""),
		GitHubBranch: getEnv("GITHUB_BRANCH", "main"),
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		DataFile:     getEnv("DATA_FILE", "investments.json"),

		RatesAPIURL:   getEnv("RATES_API_URL", "https://api.exchangerate-api.com"),
		LocalCurrency: getEnv("LOCAL_CURRENCY", "ILS"),
		QuoteCurrency: getEnv("QUOTE_CURRENCY", "USD"),
		FallbackRate:  getEnvFloat("FALLBACK_RATE", 3.65),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret:         getEnv("JWT_SECRET", "ftm-default-dev-secret-change-me"),
		JWTAccessTTL:      getEnvDuration("JWT_ACCESS_TTL", 12*time.Hour),
		OwnerPassword:     getEnv("OWNER_PASSWORD", ""),
		OwnerPasswordHash: getEnv("OWNER_PASSWORD_HASH", ""),

		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "@daily"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
