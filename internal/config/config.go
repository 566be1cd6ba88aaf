// Package config loads the connector configuration from environment variables.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_ENCODING: console or json (default: console)
//
// Google OAuth:
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URI (required)
//
// Database Configuration:
//   - DATABASE_TYPE: "memory", "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./gmb_connector.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration (empty REDIS_ADDRESS disables redis):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// Error records:
//   - AMQP_URL: broker for classified error records (optional)
//   - AMQP_EXCHANGE: exchange name (default: gmb.errors)
//
// Upstream behaviour:
//   - HTTP_TIMEOUT: transport timeout for Google calls (default: 30s)
//   - REPORT_LOCATION_ERRORS: populate per-location failure lists (default: true)
//   - POSTS_PAGE_SIZE: posts fetched per location per page (default: 30)
//   - POST_INSIGHTS_ENABLED: enrich posts with insights (default: false)
//   - TOKEN_REFRESH_SCHEDULE: cron spec for background refresh (default: @every 5m)
//   - TOKEN_REFRESH_LOOKAHEAD: refresh tokens expiring within this window (default: 10m)
//   - UPSTREAM_RATE_LIMIT, QANDA_RATE_LIMIT: per-user requests per second (defaults: 10, 2)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration values for the connector.
type Config struct {
	// Application settings
	Port        string
	LogLevel    string
	LogEncoding string
	// AdminToken guards the admin routes; empty disables them.
	AdminToken string

	// Google OAuth client
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Encryption key for tokens at rest
	EncryptionKey string

	// AMQP error-record sink
	AMQPURL      string
	AMQPExchange string

	// Upstream behaviour
	HTTPTimeout           time.Duration
	ReportLocationErrors  bool
	PostsPageSize         int
	PostInsightsEnabled   bool
	TokenRefreshSchedule  string
	TokenRefreshLookahead time.Duration
	UpstreamRateLimit     float64
	QandARateLimit        float64
}

// Load creates a new Config instance with values loaded from environment variables.
// Call Validate on the result before use.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "console"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),

		DatabaseType:     strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:     getEnv("DATABASE_PATH", "./gmb_connector.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "gmb_connector"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gmb.errors"),

		HTTPTimeout:           getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		ReportLocationErrors:  getBoolEnv("REPORT_LOCATION_ERRORS", true),
		PostsPageSize:         getIntEnv("POSTS_PAGE_SIZE", 30),
		PostInsightsEnabled:   getBoolEnv("POST_INSIGHTS_ENABLED", false),
		TokenRefreshSchedule:  getEnv("TOKEN_REFRESH_SCHEDULE", "@every 5m"),
		TokenRefreshLookahead: getDurationEnv("TOKEN_REFRESH_LOOKAHEAD", 10*time.Minute),
		UpstreamRateLimit:     getFloatEnv("UPSTREAM_RATE_LIMIT", 10),
		QandARateLimit:        getFloatEnv("QANDA_RATE_LIMIT", 2),
	}
}

// PostgresDSN builds the libpq style connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

// RedisDBNumber returns REDIS_DB as an int. Validate guarantees it parses.
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int.
func (c *Config) RedisPoolSizeNumber() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, formats and cross-field dependencies.
func (c *Config) Validate() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID environment variable is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET environment variable is required")
	}
	if c.GoogleRedirectURI == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URI environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "memory", "sqlite":
	case "postgres", "postgresql":
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'memory', 'sqlite' or 'postgres'")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be a positive duration")
	}
	if c.PostsPageSize < 1 || c.PostsPageSize > 100 {
		return fmt.Errorf("POSTS_PAGE_SIZE must be between 1 and 100")
	}
	if c.UpstreamRateLimit <= 0 || c.QandARateLimit <= 0 {
		return fmt.Errorf("UPSTREAM_RATE_LIMIT and QANDA_RATE_LIMIT must be positive")
	}
	if c.TokenRefreshLookahead <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_LOOKAHEAD must be a positive duration")
	}
	if _, err := cron.ParseStandard(c.TokenRefreshSchedule); err != nil {
		return fmt.Errorf("TOKEN_REFRESH_SCHEDULE is not a valid cron spec: %w", err)
	}

	return nil
}
