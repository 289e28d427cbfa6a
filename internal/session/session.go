// Package session stores editing drafts between preview and finalization.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
)

// Backend names accepted in configuration
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// New creates the store selected by cfg.Backend.
func New(cfg domain.SessionConfig, logger *logrus.Logger) (domain.SessionStore, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisStore(cfg, logger)
	case BackendMemory, "":
		return NewMemoryStore(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

func encode(data *domain.SessionData) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session data: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (*domain.SessionData, error) {
	var data domain.SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &data, nil
}
