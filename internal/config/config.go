// Package config provides configuration management for the bond service.
// Defaults are overlaid by an optional TOML file and then by environment
// variables (including a .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ConfigFileEnv names the environment variable pointing at an optional TOML file
const ConfigFileEnv = "BOND_SERVICE_CONFIG"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	ISIN      ISINConfig      `toml:"isin"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Logging   LoggingConfig   `toml:"logging"`
	CORS      CORSConfig      `toml:"cors"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `toml:"port"`
	Host            string        `toml:"host"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	Database       string `toml:"database"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	SSLMode        string `toml:"ssl_mode"`
	MaxConnections int    `toml:"max_connections"`
	MigrationsPath string `toml:"migrations_path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	MaxConnections int    `toml:"max_connections"`
}

// AuthConfig holds token signing and password hashing settings
type AuthConfig struct {
	JWTSecret       string        `toml:"jwt_secret"`
	Issuer          string        `toml:"issuer"`
	AccessTokenTTL  time.Duration `toml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `toml:"refresh_token_ttl"`
	BcryptCost      int           `toml:"bcrypt_cost"`
}

// ISINConfig holds settings of the central depository ISIN lookup
type ISINConfig struct {
	Enabled       bool          `toml:"enabled"`
	BaseURL       string        `toml:"base_url"`
	Timeout       time.Duration `toml:"timeout"`
	CacheTTL      time.Duration `toml:"cache_ttl"`
	RetryAttempts int           `toml:"retry_attempts"`

	// RequestsPerSecond caps outbound registry calls; 0 disables the cap
	RequestsPerSecond int `toml:"requests_per_second"`
}

// RateLimitConfig holds per-principal request limits (requests per second)
type RateLimitConfig struct {
	UserRPS      int `toml:"user_rps"`
	SuperuserRPS int `toml:"superuser_rps"`
	Burst        int `toml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// CORSConfig holds the allowed origins; "*" allows any
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           "localhost",
				Port:           "5432",
				Database:       "bond_service",
				User:           "bonds",
				SSLMode:        "disable",
				MaxConnections: 25,
				MigrationsPath: "migrations/postgres",
			},
			Redis: RedisConfig{
				Host:           "localhost",
				Port:           "6379",
				MaxConnections: 50,
			},
		},
		Auth: AuthConfig{
			Issuer:          "bond-service",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			BcryptCost:      12,
		},
		ISIN: ISINConfig{
			Enabled:           true,
			BaseURL:           "https://www.cdcp.cz/isbpublicjson/api/VydaneISINy",
			Timeout:           10 * time.Second,
			CacheTTL:          24 * time.Hour,
			RetryAttempts:     3,
			RequestsPerSecond: 5,
		},
		RateLimit: RateLimitConfig{
			UserRPS:      20,
			SuperuserRPS: 100,
			Burst:        40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadConfig loads configuration from the optional TOML file, the .env file
// and environment variables, in that order of increasing precedence, and
// validates it for serving
func LoadConfig() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is LoadConfig without validation, for tools that never sign tokens
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := Defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("error decoding config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	pg := &cfg.Database.Postgres
	pg.Host = getEnv("POSTGRES_HOST", pg.Host)
	pg.Port = getEnv("POSTGRES_PORT", pg.Port)
	pg.Database = getEnv("POSTGRES_DB", pg.Database)
	pg.User = getEnv("POSTGRES_USER", pg.User)
	pg.Password = getEnv("POSTGRES_PASSWORD", pg.Password)
	pg.SSLMode = getEnv("POSTGRES_SSLMODE", pg.SSLMode)
	pg.MaxConnections = getEnvAsInt("POSTGRES_MAX_CONNECTIONS", pg.MaxConnections)
	pg.MigrationsPath = getEnv("POSTGRES_MIGRATIONS_PATH", pg.MigrationsPath)

	rd := &cfg.Database.Redis
	rd.Host = getEnv("REDIS_HOST", rd.Host)
	rd.Port = getEnv("REDIS_PORT", rd.Port)
	rd.Password = getEnv("REDIS_PASSWORD", rd.Password)
	rd.DB = getEnvAsInt("REDIS_DB", rd.DB)
	rd.MaxConnections = getEnvAsInt("REDIS_MAX_CONNECTIONS", rd.MaxConnections)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.AccessTokenTTL = getEnvAsDuration("JWT_ACCESS_TTL", cfg.Auth.AccessTokenTTL)
	cfg.Auth.RefreshTokenTTL = getEnvAsDuration("JWT_REFRESH_TTL", cfg.Auth.RefreshTokenTTL)
	cfg.Auth.BcryptCost = getEnvAsInt("BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.ISIN.Enabled = getEnvAsBool("ISIN_VALIDATION_ENABLED", cfg.ISIN.Enabled)
	cfg.ISIN.BaseURL = getEnv("ISIN_API_URL", cfg.ISIN.BaseURL)
	cfg.ISIN.Timeout = getEnvAsDuration("ISIN_API_TIMEOUT", cfg.ISIN.Timeout)
	cfg.ISIN.CacheTTL = getEnvAsDuration("ISIN_CACHE_TTL", cfg.ISIN.CacheTTL)
	cfg.ISIN.RetryAttempts = getEnvAsInt("ISIN_RETRY_ATTEMPTS", cfg.ISIN.RetryAttempts)
	cfg.ISIN.RequestsPerSecond = getEnvAsInt("ISIN_API_RPS", cfg.ISIN.RequestsPerSecond)

	cfg.RateLimit.UserRPS = getEnvAsInt("RATE_LIMIT_USER_RPS", cfg.RateLimit.UserRPS)
	cfg.RateLimit.SuperuserRPS = getEnvAsInt("RATE_LIMIT_SUPERUSER_RPS", cfg.RateLimit.SuperuserRPS)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.CORS.AllowedOrigins = getEnvAsSlice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.ISIN.Enabled && c.ISIN.BaseURL == "" {
		return fmt.Errorf("ISIN_API_URL must be set when ISIN validation is enabled")
	}
	return nil
}

// PostgresURL returns the connection URL used by pgx and golang-migrate
func (p PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma separated variable, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
