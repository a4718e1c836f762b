// Package config provides configuration management for the token ledger service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	// ServiceName identifies the service to its backends
	ServiceName = "rudolf-ledger"
	// DefaultDeployer is the first development account
	DefaultDeployer = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MinConnections int
	ConnectTimeout time.Duration

	// MaxConnLifetime and MaxConnIdleTime recycle pooled connections
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ApplicationName tags the sessions in pg_stat_activity
	ApplicationName string
	MigrationsPath  string
}

// URL returns the connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string

	// archive writes are batched per call
	MaxOpenConns     int
	MaxIdleConns     int
	DialTimeout      time.Duration
	MaxExecutionTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	EventChannel   string
	ClaimableTTL   time.Duration
}

// TokenConfig holds the construction-time parameters of the token
type TokenConfig struct {
	Deployer string
	// ReferenceEpoch is the deployment reference date; the first
	// distribution is the first Dec-25 00:00 UTC at or after it.
	ReferenceEpoch time.Time
	// MaxCatchUpPerCall caps distribution boundaries processed in one
	// call. 0 means unlimited.
	MaxCatchUpPerCall int
}

// RateLimitConfig holds per-caller rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	epoch, err := getEnvAsDate("TOKEN_REFERENCE_EPOCH", time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "rudolf"),
				User:           getEnv("POSTGRES_USER", "rudolf"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),

				MaxConnections:  getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MinConnections:  getEnvAsInt("POSTGRES_MIN_CONNECTIONS", 1),
				ConnectTimeout:  getEnvAsDuration("POSTGRES_CONNECT_TIMEOUT", 10*time.Second),
				MaxConnLifetime: getEnvAsDuration("POSTGRES_MAX_CONN_LIFETIME", time.Hour),
				MaxConnIdleTime: getEnvAsDuration("POSTGRES_MAX_CONN_IDLE_TIME", 30*time.Minute),
				ApplicationName: getEnv("POSTGRES_APPLICATION_NAME", ServiceName),
				MigrationsPath:  getEnv("POSTGRES_MIGRATIONS_PATH", "migrations/postgres"),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "rudolf"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),

				MaxOpenConns:     getEnvAsInt("CLICKHOUSE_MAX_OPEN_CONNS", 4),
				MaxIdleConns:     getEnvAsInt("CLICKHOUSE_MAX_IDLE_CONNS", 2),
				DialTimeout:      getEnvAsDuration("CLICKHOUSE_DIAL_TIMEOUT", 10*time.Second),
				MaxExecutionTime: getEnvAsDuration("CLICKHOUSE_MAX_EXECUTION_TIME", time.Minute),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				EventChannel:   getEnv("REDIS_EVENT_CHANNEL", "rudolf:events"),
				ClaimableTTL:   getEnvAsDuration("REDIS_CLAIMABLE_TTL", 30*time.Second),
			},
		},
		Token: TokenConfig{
			Deployer:          getEnv("TOKEN_DEPLOYER", DefaultDeployer),
			ReferenceEpoch:    epoch,
			MaxCatchUpPerCall: getEnvAsInt("TOKEN_MAX_CATCHUP_PER_CALL", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Token.Deployer) {
		return fmt.Errorf("invalid TOKEN_DEPLOYER address: %q", c.Token.Deployer)
	}
	if common.HexToAddress(c.Token.Deployer) == (common.Address{}) {
		return fmt.Errorf("TOKEN_DEPLOYER must not be the zero address")
	}
	if c.Token.MaxCatchUpPerCall < 0 {
		return fmt.Errorf("TOKEN_MAX_CATCHUP_PER_CALL must be >= 0, got %d", c.Token.MaxCatchUpPerCall)
	}
	if pg := c.Database.Postgres; pg.Enabled && (pg.MinConnections < 0 || pg.MinConnections > pg.MaxConnections) {
		return fmt.Errorf("POSTGRES_MIN_CONNECTIONS must be within [0, %d], got %d", pg.MaxConnections, pg.MinConnections)
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0, got %d", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDate gets an environment variable as a YYYY-MM-DD UTC date.
// Unlike the other getters a malformed value is an error.
func getEnvAsDate(key string, defaultValue time.Time) (time.Time, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseInLocation("2006-01-02", valueStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
