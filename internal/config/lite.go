// Package config provides configuration management for the case generator.
// This file contains the lightweight configuration for the standalone MCP server.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/medcase-generator/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and reads cases from a local SQLite file.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files
	DBPath  string // SQLite case store; defaults to <DataDir>/cases.db

	// Matching
	StrictMatching bool // Exact bucket matching only

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:   filepath.Join(homeDir, ".medcase-generator"),
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("MEDCASE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MEDCASE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv("MEDCASE_STRICT_MATCHING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StrictMatching = b
		}
	}

	if v := os.Getenv("MEDCASE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEDCASE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CaseDBPath returns the path to the SQLite case store.
func (c *LiteConfig) CaseDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "cases.db")
}

// ExportDir returns the directory for rendered artifacts.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Logging returns the logging section for the lite server. Logs go to stderr because stdout
// carries the MCP protocol.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}

// Matching returns the default matching configuration with the lite server's strictness.
func (c *LiteConfig) Matching() domain.MatchingConfig {
	return domain.MatchingConfig{
		SimilarityCutoff: 0.6,
		TokenCutoff:      0.5,
		ProjectionCutoff: 0.4,
		Strict:           c.StrictMatching,
		Precision:        2,
		MinLR:            0.01,
		NeutralLR:        1.0,
		PriorTolerance:   domain.DefaultPriorTolerance,
	}
}
