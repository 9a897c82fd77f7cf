package config

import (
	"fmt"
	"os"
	"strconv"
)

// Chunk size bounds accepted from clients. Requests outside the range are
// clamped rather than rejected.
const (
	MinChunkSize     = 256 * 1024
	MaxChunkSize     = 16 * 1024 * 1024
	DefaultChunkSize = 4 * 1024 * 1024
)

// Config holds all application configuration
type Config struct {
	Port      string
	PublicURL string // Optional: override auto-detected URL behind a reverse proxy

	// Database. DBType selects the repository backend.
	DBType           string // "sqlite" or "postgres"
	DBPath           string // sqlite file path
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Blob storage (S3-compatible).
	S3Bucket          string
	S3Region          string
	S3Endpoint        string // Optional: MinIO/R2 endpoint
	S3AccessKey       string
	S3SecretKey       string
	S3UsePathStyle    bool
	PresignTTLSeconds int

	// Upload and sharing limits.
	MaxFileSize              int64
	DefaultExpirationHours   int
	MaxExpirationHours       int
	UploadSessionExpireHours int
	DefaultMaxDownloads      int

	// Background sweeping.
	SweepIntervalMinutes int

	// Requester privacy.
	IPHashSalt string

	// Identity provider (optional; empty issuer disables authenticated routes).
	OIDCIssuerURL string
	OIDCAudience  string

	// Rate limiting, per IP per hour.
	RateLimitUpload   int
	RateLimitRequests int
	RateLimitDownload int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", ""),

		DBType:           getEnv("DB_TYPE", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./securepass.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "securepass"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "securepass"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "prefer"),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:       getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
		PresignTTLSeconds: getEnvInt("PRESIGN_TTL_SECONDS", 3600),

		MaxFileSize:              getEnvInt64("MAX_FILE_SIZE", 1073741824), // 1GB default
		DefaultExpirationHours:   getEnvInt("DEFAULT_EXPIRATION_HOURS", 72),
		MaxExpirationHours:       getEnvInt("MAX_EXPIRATION_HOURS", 168), // 7 days
		UploadSessionExpireHours: getEnvInt("UPLOAD_SESSION_EXPIRE_HOURS", 24),
		DefaultMaxDownloads:      getEnvInt("DEFAULT_MAX_DOWNLOADS", 5),

		SweepIntervalMinutes: getEnvInt("SWEEP_INTERVAL_MINUTES", 15),

		IPHashSalt: getEnv("IP_HASH_SALT", ""),

		OIDCIssuerURL: getEnv("OIDC_ISSUER_URL", ""),
		OIDCAudience:  getEnv("OIDC_AUDIENCE", ""),

		RateLimitUpload:   getEnvInt("RATE_LIMIT_UPLOAD", 30),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitDownload: getEnvInt("RATE_LIMIT_DOWNLOAD", 120),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.DBType {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when DB_TYPE is sqlite")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required when DB_TYPE is postgres")
		}
	default:
		return fmt.Errorf("DB_TYPE must be sqlite or postgres, got %q", c.DBType)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	if c.DefaultExpirationHours <= 0 {
		return fmt.Errorf("DEFAULT_EXPIRATION_HOURS must be positive, got %d", c.DefaultExpirationHours)
	}

	if c.MaxExpirationHours <= 0 {
		return fmt.Errorf("MAX_EXPIRATION_HOURS must be positive, got %d", c.MaxExpirationHours)
	}

	if c.DefaultExpirationHours > c.MaxExpirationHours {
		return fmt.Errorf("DEFAULT_EXPIRATION_HOURS (%d) cannot exceed MAX_EXPIRATION_HOURS (%d)", c.DefaultExpirationHours, c.MaxExpirationHours)
	}

	if c.UploadSessionExpireHours <= 0 {
		return fmt.Errorf("UPLOAD_SESSION_EXPIRE_HOURS must be positive, got %d", c.UploadSessionExpireHours)
	}

	if c.DefaultMaxDownloads <= 0 {
		return fmt.Errorf("DEFAULT_MAX_DOWNLOADS must be positive, got %d", c.DefaultMaxDownloads)
	}

	if c.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_MINUTES must be positive, got %d", c.SweepIntervalMinutes)
	}

	if c.PresignTTLSeconds <= 0 {
		return fmt.Errorf("PRESIGN_TTL_SECONDS must be positive, got %d", c.PresignTTLSeconds)
	}

	if c.RateLimitUpload <= 0 || c.RateLimitRequests <= 0 || c.RateLimitDownload <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.OIDCIssuerURL != "" && c.OIDCAudience == "" {
		return fmt.Errorf("OIDC_AUDIENCE is required when OIDC_ISSUER_URL is set")
	}

	return nil
}

// ClampChunkSize forces a requested chunk size into the accepted range.
func ClampChunkSize(size int64) int64 {
	if size <= 0 {
		return DefaultChunkSize
	}
	if size < MinChunkSize {
		return MinChunkSize
	}
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return size
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
