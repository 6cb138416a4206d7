// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL prepended to aliases (e.g., https://sho.rt)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Authentication
	JWTAccessSecret string `env:"JWT_ACCESS_SECRET,required"`

	// Analytics cache. CacheKeySecret falls back to JWTAccessSecret.
	CacheKeySecret    string        `env:"CACHE_KEY_SECRET"`
	AnalyticsCacheTTL time.Duration `env:"ANALYTICS_CACHE_TTL" envDefault:"300s"`
	RedirectCacheTTL  time.Duration `env:"REDIRECT_CACHE_TTL" envDefault:"1h"`

	// Geolocation enrichment
	GeoLookupURL     string        `env:"GEO_LOOKUP_URL" envDefault:"https://ipinfo.io"`
	GeoLookupTimeout time.Duration `env:"GEO_LOOKUP_TIMEOUT" envDefault:"2s"`
	GeoCacheSize     int           `env:"GEO_CACHE_SIZE" envDefault:"10000"`
	GeoCacheTTL      time.Duration `env:"GEO_CACHE_TTL" envDefault:"1h"`

	// Click recording
	ClickRecordTimeout time.Duration `env:"CLICK_RECORD_TIMEOUT" envDefault:"5s"`
	ClickRecordRetries uint64        `env:"CLICK_RECORD_RETRIES" envDefault:"3"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (requests per IP per window)
	RateLimitEnabled   bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	ShortenRateLimit   int           `env:"SHORTEN_RATE_LIMIT" envDefault:"10"`
	AnalyticsRateLimit int           `env:"ANALYTICS_RATE_LIMIT" envDefault:"100"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"10m"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Comma-separated proxy IPs or CIDRs whose X-Forwarded-For / X-Real-IP
	// headers are trusted. Empty means the socket address is always used.
	TrustedProxies string `env:"TRUSTED_PROXIES" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetTrustedProxies parses the comma-separated trusted proxy list.
func (c *Config) GetTrustedProxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load reads an optional .env file, parses environment variables and
// returns a Config. Returns an error if required variables are missing.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.CacheKeySecret == "" {
		cfg.CacheKeySecret = cfg.JWTAccessSecret
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("failed to parse config: RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}
