package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the infrastructure side of configuration: addresses, secrets and
// backends. Source: environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr     string
	DBDriver     string
	DBPath       string
	DatabaseURL  string
	JWTSecret    string
	TokenTTL     time.Duration
	RedisURL     string
	MediaBaseURL string
	AMQPURL      string
	BookingQueue string
	ConfigPath   string
	// AllowedOrigins empty means any origin may call the API.
	AllowedOrigins []string
}

// Load loads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional .env file and environment variables.
func LoadWithFile(envFile string) (*Config, error) {
	// Attempt to load .env file if provided, but don't fail if it doesn't exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	ttl, err := parseDuration(os.Getenv("TOKEN_TTL"), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		HTTPAddr:     getEnvOrDefault("HTTP_ADDR", ":8080"),
		DBDriver:     strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverSQLite)),
		DBPath:       getEnvOrDefault("DB_PATH", "./data"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		TokenTTL:     ttl,
		RedisURL:     os.Getenv("REDIS_URL"),
		MediaBaseURL: strings.TrimRight(os.Getenv("MEDIA_BASE_URL"), "/"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		BookingQueue: getEnvOrDefault("BOOKING_QUEUE", "reservation.commands"),
		ConfigPath:   getEnvOrDefault("CONFIG_PATH", "./data/meeting_config.toml"),

		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER must be one of sqlite, postgres, memory (got %q)", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// RequireAMQP is checked by processes that consume the command queue.
func (c *Config) RequireAMQP() error {
	if c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if c.BookingQueue == "" {
		return fmt.Errorf("BOOKING_QUEUE is required")
	}
	return nil
}

// EnvFile is the .env path named by ENV_FILE, or ".env".
func EnvFile() string {
	return getEnvOrDefault("ENV_FILE", ".env")
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDuration accepts Go durations ("36h") and falls back when empty.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
