package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/medcase-generator/internal/database"
	"github.com/medcase-generator/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile loads configuration from an explicit file instead of searching the
// default locations. An empty path searches.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(path); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(path string) error {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/medcase-generator/")
	}

	v.SetEnvPrefix("MEDCASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names used by hosting platforms
	_ = v.BindEnv("llm.api_key", "MEDCASE_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("session.redis_url", "MEDCASE_SESSION_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("auth.username", "MEDCASE_AUTH_USERNAME", "APP_USERNAME")
	_ = v.BindEnv("auth.password", "MEDCASE_AUTH_PASSWORD", "APP_PASSWORD")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "medcase")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 3)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "")
	v.SetDefault("database.max_retries", 3)
	v.SetDefault("database.retry_delay", "1s")

	// Storage defaults
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.sqlite_path", "./data/cases.db")

	// Session defaults
	v.SetDefault("session.backend", "redis")
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.max_entries", 1024)
	v.SetDefault("session.pool_size", 10)

	// Case generation defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-2024-08-06")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.rate_limit", 2.0)
	v.SetDefault("llm.max_retries", 3)

	// Bucket matching defaults
	v.SetDefault("matching.similarity_cutoff", 0.6)
	v.SetDefault("matching.token_cutoff", 0.5)
	v.SetDefault("matching.projection_cutoff", 0.4)
	v.SetDefault("matching.strict", false)
	v.SetDefault("matching.precision", 2)
	v.SetDefault("matching.min_lr", 0.01)
	v.SetDefault("matching.neutral_lr", 1.0)
	v.SetDefault("matching.prior_tolerance", domain.DefaultPriorTolerance)

	// Auth defaults
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetMatchingConfig returns the bucket matching configuration
func (m *Manager) GetMatchingConfig() *domain.MatchingConfig {
	return &m.config.Matching
}

// Reload reloads the configuration from the same file
func (m *Manager) Reload() error {
	return m.loadConfig(m.v.ConfigFileUsed())
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Driver {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", config.Storage.Driver)
	}

	switch config.Session.Backend {
	case "redis":
		if _, err := url.Parse(config.Session.RedisURL); err != nil || config.Session.RedisURL == "" {
			return fmt.Errorf("valid Redis URL is required for the redis session backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid session backend: %s", config.Session.Backend)
	}
	if config.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}

	if m.IsProduction() && config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required in production")
	}
	if m.IsProduction() && config.Auth.Password == "" {
		return fmt.Errorf("auth password is required in production")
	}

	mc := config.Matching
	for name, cutoff := range map[string]float64{
		"similarity_cutoff": mc.SimilarityCutoff,
		"token_cutoff":      mc.TokenCutoff,
		"projection_cutoff": mc.ProjectionCutoff,
	} {
		if cutoff < 0 || cutoff > 1 {
			return fmt.Errorf("matching %s must be within [0, 1], got %v", name, cutoff)
		}
	}
	if mc.MinLR <= 0 {
		return fmt.Errorf("matching min_lr must be positive")
	}
	if mc.PriorTolerance <= 0 {
		return fmt.Errorf("matching prior_tolerance must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database configuration as a postgres:// URL
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFromDomain(m.config.Database).URL()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Session.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
