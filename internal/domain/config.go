package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Session     SessionConfig   `mapstructure:"session"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Matching    MatchingConfig  `mapstructure:"matching"`
	Auth        AuthConfig      `mapstructure:"auth"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig selects the case repository backend
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "postgres", "sqlite"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SessionConfig selects and tunes the editing session store
type SessionConfig struct {
	Backend    string        `mapstructure:"backend"` // "redis", "memory"
	RedisURL   string        `mapstructure:"redis_url"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// LLMConfig represents the case generation model configuration
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second
	MaxRetries  int           `mapstructure:"max_retries"`
}

// MatchingConfig holds the bucket reconciliation thresholds and matrix defaults
type MatchingConfig struct {
	SimilarityCutoff float64 `mapstructure:"similarity_cutoff"`
	TokenCutoff      float64 `mapstructure:"token_cutoff"`
	ProjectionCutoff float64 `mapstructure:"projection_cutoff"`
	Strict           bool    `mapstructure:"strict"`
	Precision        int     `mapstructure:"precision"`
	MinLR            float64 `mapstructure:"min_lr"`
	NeutralLR        float64 `mapstructure:"neutral_lr"`
	PriorTolerance   float64 `mapstructure:"prior_tolerance"`
}

// AuthConfig holds the basic auth credentials guarding generation endpoints
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CORSConfig represents cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig represents per-client request throttling
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}
