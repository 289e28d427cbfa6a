package domain

import (
	"context"
	"time"
)

// CaseGenerator produces case content with an external language model. The three calls
// mirror the generation pipeline: narrative, tiered framework, then likelihood ratios.
type CaseGenerator interface {
	GenerateCaseDetails(ctx context.Context, description, primaryDiagnosis string) (*CaseDetails, error)
	GenerateDiagnosticFramework(ctx context.Context, details *CaseDetails, primaryDiagnosis string) (DiagnosticFramework, error)
	GenerateLikelihoodRatios(ctx context.Context, details *CaseDetails, framework DiagnosticFramework) ([]FeatureLikelihoodRatio, error)
}

// SessionStore holds editing drafts with a time-to-live.
type SessionStore interface {
	Save(ctx context.Context, id string, data *SessionData, ttl time.Duration) error
	Get(ctx context.Context, id string) (*SessionData, error)
	// Update applies fn to the current draft and stores the result. Concurrent updates of the
	// same id are serialized; fn may be invoked more than once.
	Update(ctx context.Context, id string, ttl time.Duration, fn func(*SessionData) error) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// CaseRepository defines the interface for case persistence
type CaseRepository interface {
	Create(ctx context.Context, c *Case) error
	Get(ctx context.Context, id int64) (*Case, error)
	List(ctx context.Context) ([]CaseSummary, error)
	Ping(ctx context.Context) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetMatchingConfig() *MatchingConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
