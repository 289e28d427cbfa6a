// Package repository persists finalized cases with their diagnostic frameworks and feature
// likelihood ratios.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/database"
	"github.com/medcase-generator/internal/domain"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects the configured storage backend. PostgreSQL is migrated to the latest schema
// before use; SQLite creates its schema on open.
func Open(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.CaseRepository, error) {
	switch cfg.Storage.Driver {
	case DriverSQLite:
		return NewSQLiteCaseRepository(cfg.Storage.SQLitePath, logger)
	case DriverPostgres, "":
		dbConfig := database.ConfigFromDomain(cfg.Database)
		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			return nil, err
		}

		runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		defer runner.Close()
		if err := runner.Up(ctx); err != nil {
			db.Close()
			return nil, err
		}

		return NewPostgresCaseRepository(db, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// caseColumns holds the JSON-encoded columns shared by both backends.
type caseColumns struct {
	details []byte
	tiers   []tierColumns
}

type tierColumns struct {
	level   int
	buckets []byte
	priors  []byte
}

func encodeCase(c *domain.Case) (*caseColumns, error) {
	details, err := json.Marshal(c.Details)
	if err != nil {
		return nil, fmt.Errorf("encoding case details: %w", err)
	}

	cols := &caseColumns{details: details, tiers: make([]tierColumns, 0, len(c.Framework))}
	for _, tier := range c.Framework {
		buckets := tier.Buckets
		if buckets == nil {
			buckets = []domain.DiagnosticBucket{}
		}
		b, err := json.Marshal(buckets)
		if err != nil {
			return nil, fmt.Errorf("encoding tier %d buckets: %w", tier.TierLevel, err)
		}
		priors := tier.APrioriProbabilities
		if priors == nil {
			priors = map[string]float64{}
		}
		p, err := json.Marshal(priors)
		if err != nil {
			return nil, fmt.Errorf("encoding tier %d probabilities: %w", tier.TierLevel, err)
		}
		cols.tiers = append(cols.tiers, tierColumns{level: tier.TierLevel, buckets: b, priors: p})
	}
	return cols, nil
}

func decodeTier(level int, buckets, priors []byte) (domain.DiagnosticTier, error) {
	tier := domain.DiagnosticTier{TierLevel: level}
	if err := json.Unmarshal(buckets, &tier.Buckets); err != nil {
		return tier, fmt.Errorf("decoding tier %d buckets: %w", level, err)
	}
	if err := json.Unmarshal(priors, &tier.APrioriProbabilities); err != nil {
		return tier, fmt.Errorf("decoding tier %d probabilities: %w", level, err)
	}
	return tier, nil
}

// frameworkLink returns the framework row an LR record belongs to, or nil when the record has
// no tier or its tier is not part of the framework.
func frameworkLink(ids map[int]int64, tierLevel *int) interface{} {
	if tierLevel == nil {
		return nil
	}
	if id, ok := ids[*tierLevel]; ok {
		return id
	}
	return nil
}

func tierValue(tierLevel *int) interface{} {
	if tierLevel == nil {
		return nil
	}
	return *tierLevel
}

func decodeDetails(raw []byte, details *domain.CaseDetails) error {
	if err := json.Unmarshal(raw, details); err != nil {
		return fmt.Errorf("decoding case details: %w", err)
	}
	return nil
}
