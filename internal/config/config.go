// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/auth"
	"github.com/nicevod/service/internal/keys"
	"github.com/nicevod/service/internal/storage"
)

// DefaultAllowedTypes is the MIME allow-list used when ALLOWED_TYPES is unset.
var DefaultAllowedTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"audio/mpeg",
	"audio/wav",
}

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// DatabaseURL is optional; without it quotas and short links are disabled.
	DatabaseURL string
	DBMigrate   bool

	LogLevel  string
	LogFormat string

	Auth       auth.Config
	AdminToken string

	// Object storage (S3-compatible: MinIO locally, R2 in production)
	Storage       storage.Config
	PublicBaseURL string // browser-accessible base URL, e.g. "https://cdn.nicevod.com"

	AllowedTypes    []string
	AllowedMatch    admission.MatchMode
	MaxFileSize     int64
	MaxRequestBytes int64
	// QuotaTotalBytes is the per-user cap; zero disables quota checks.
	QuotaTotalBytes      int64
	MissingProfileAsZero bool
	KeyStrategy          keys.Strategy
	MaxNameLength        int

	// EnvFileLoaded reports whether a .env file was read.
	EnvFileLoaded bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	envLoaded := godotenv.Load() == nil

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "https://cdn.nicevod.com"),
		AllowedTypes:  getList("ALLOWED_TYPES", DefaultAllowedTypes),
		EnvFileLoaded: envLoaded,

		Auth: auth.Config{
			Mode:           auth.Mode(strings.ToLower(getEnv("AUTH_MODE", "jwt"))),
			JWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
			JWTAudience:    os.Getenv("AUTH_JWT_AUDIENCE"),
			ProviderURL:    os.Getenv("AUTH_URL"),
			ProviderAPIKey: os.Getenv("AUTH_API_KEY"),
			OIDCIssuer:     os.Getenv("AUTH_OIDC_ISSUER"),
			OIDCClientID:   os.Getenv("AUTH_OIDC_CLIENT_ID"),
		},

		Storage: storage.Config{
			Driver:    getEnv("STORAGE_DRIVER", "minio"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("STORAGE_BUCKET", "uploads"),
			Region:    os.Getenv("STORAGE_REGION"),
		},
	}

	var err error
	cfg.DBMigrate, err = getBool("DB_MIGRATE", true)
	collect(err)
	cfg.Storage.UseSSL, err = getBool("STORAGE_USE_SSL", false)
	collect(err)
	cfg.Storage.PublicRead, err = getBool("STORAGE_PUBLIC_READ", false)
	collect(err)

	cfg.AllowedMatch, err = admission.ParseMatchMode(os.Getenv("ALLOWED_MATCH"))
	collect(err)
	cfg.MaxFileSize, err = getInt64("MAX_FILE_SIZE", 6*1024*1024)
	collect(err)
	cfg.MaxRequestBytes, err = getInt64("MAX_REQUEST_BYTES", cfg.MaxFileSize+1024*1024)
	collect(err)
	cfg.QuotaTotalBytes, err = getInt64("QUOTA_TOTAL_BYTES", 0)
	collect(err)
	cfg.KeyStrategy, err = keys.ParseStrategy(os.Getenv("KEY_STRATEGY"))
	collect(err)
	maxName, err := getInt64("MAX_NAME_LENGTH", keys.DefaultMaxNameLength)
	collect(err)
	cfg.MaxNameLength = int(maxName)

	switch policy := strings.ToLower(getEnv("QUOTA_MISSING_PROFILE", "zero")); policy {
	case "zero":
		cfg.MissingProfileAsZero = true
	case "reject":
		cfg.MissingProfileAsZero = false
	default:
		collect(fmt.Errorf("QUOTA_MISSING_PROFILE: unknown policy %q", policy))
	}

	if cfg.MaxFileSize <= 0 {
		collect(errors.New("MAX_FILE_SIZE must be positive"))
	}
	if cfg.QuotaTotalBytes < 0 {
		collect(errors.New("QUOTA_TOTAL_BYTES must not be negative"))
	}
	if cfg.IsProduction() && !cfg.AuthEnforced() {
		collect(errors.New("AUTH_MODE=none is not allowed when APP_ENV=production"))
	}
	if cfg.QuotaTotalBytes > 0 && cfg.DatabaseURL == "" {
		collect(errors.New("QUOTA_TOTAL_BYTES requires DATABASE_URL"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AuthEnforced reports whether requests must carry a verified bearer token.
func (c *Config) AuthEnforced() bool {
	return c.Auth.Mode != auth.ModeNone
}

// Admission returns the upload admission policy.
func (c *Config) Admission() admission.Config {
	return admission.Config{
		AllowList:     admission.AllowList{Mode: c.AllowedMatch, Types: c.AllowedTypes},
		MaxFileSize:   c.MaxFileSize,
		TotalQuotaCap: c.QuotaTotalBytes,
		KeyStrategy:   c.KeyStrategy,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
