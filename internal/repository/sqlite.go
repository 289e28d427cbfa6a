package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/medcase-generator/internal/database"
	"github.com/medcase-generator/internal/domain"
)

// SQLiteCaseRepository implements domain.CaseRepository on an embedded SQLite file.
type SQLiteCaseRepository struct {
	db    *sql.DB
	retry database.RetryPolicy
	log   *logrus.Logger
	now   func() time.Time
}

// NewSQLiteCaseRepository opens the database file, creating it and its schema if they
// don't exist.
func NewSQLiteCaseRepository(dbPath string, logger *logrus.Logger) (*SQLiteCaseRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a case is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite case store opened")
	return NewSQLiteCaseRepositoryFromDB(db, database.DefaultRetryPolicy(), logger), nil
}

// NewSQLiteCaseRepositoryFromDB wraps an open handle whose schema is already in place.
func NewSQLiteCaseRepositoryFromDB(db *sql.DB, retry database.RetryPolicy, logger *logrus.Logger) *SQLiteCaseRepository {
	return &SQLiteCaseRepository{
		db:    db,
		retry: retry,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func createSchema(db *sql.DB) error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS cases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		primary_diagnosis TEXT NOT NULL,
		case_details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS diagnostic_frameworks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		tier_level INTEGER NOT NULL,
		diagnostic_buckets TEXT NOT NULL DEFAULT '[]',
		a_priori_probabilities TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feature_likelihood_ratios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id INTEGER NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
		framework_id INTEGER REFERENCES diagnostic_frameworks(id) ON DELETE SET NULL,
		feature_name TEXT NOT NULL,
		feature_category TEXT NOT NULL,
		diagnostic_bucket TEXT NOT NULL,
		tier_level INTEGER,
		likelihood_ratio REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frameworks_case_id ON diagnostic_frameworks(case_id);
	CREATE INDEX IF NOT EXISTS idx_lrs_case_id ON feature_likelihood_ratios(case_id);
	`

	_, err := db.Exec(schema)
	return err
}

// Create stores the case, its tiers and its LR records in one transaction.
func (s *SQLiteCaseRepository) Create(ctx context.Context, c *domain.Case) error {
	cols, err := encodeCase(c)
	if err != nil {
		return err
	}

	now := s.now()
	var id int64
	err = database.WithRetry(ctx, s.retry, s.log, "create case", func(ctx context.Context) error {
		var txErr error
		id, txErr = s.insert(ctx, c, cols, now)
		return txErr
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"title": c.Title,
			"error": err,
		}).Error("Failed to create case")
		return fmt.Errorf("creating case: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now

	s.log.WithFields(logrus.Fields{
		"case_id":           c.ID,
		"tiers":             len(c.Framework),
		"likelihood_ratios": len(c.LikelihoodRatios),
	}).Info("Case created successfully")
	return nil
}

func (s *SQLiteCaseRepository) insert(ctx context.Context, c *domain.Case, cols *caseColumns, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO cases (title, description, primary_diagnosis, case_details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Title, c.Description, c.PrimaryDiagnosis, string(cols.details), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert case: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert ID: %w", err)
	}

	frameworkIDs := make(map[int]int64, len(cols.tiers))
	for _, tier := range cols.tiers {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostic_frameworks (case_id, tier_level, diagnostic_buckets, a_priori_probabilities, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, tier.level, string(tier.buckets), string(tier.priors), now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert tier %d: %w", tier.level, err)
		}
		frameworkID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get tier insert ID: %w", err)
		}
		if _, exists := frameworkIDs[tier.level]; !exists {
			frameworkIDs[tier.level] = frameworkID
		}
	}

	if len(c.LikelihoodRatios) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO feature_likelihood_ratios (
				case_id, framework_id, feature_name, feature_category,
				diagnostic_bucket, tier_level, likelihood_ratio, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare likelihood ratio insert: %w", err)
		}
		defer stmt.Close()

		for i, lr := range c.LikelihoodRatios {
			_, err := stmt.ExecContext(ctx,
				id,
				frameworkLink(frameworkIDs, lr.TierLevel),
				lr.FeatureName,
				string(lr.FeatureCategory),
				lr.DiagnosticBucket,
				tierValue(lr.TierLevel),
				lr.LikelihoodRatio,
				now,
			)
			if err != nil {
				return 0, fmt.Errorf("failed to insert likelihood ratio %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// Get loads a case with its framework and LR records.
func (s *SQLiteCaseRepository) Get(ctx context.Context, id int64) (*domain.Case, error) {
	var c *domain.Case
	err := database.WithRetry(ctx, s.retry, s.log, "get case", func(ctx context.Context) error {
		var loadErr error
		c, loadErr = s.load(ctx, id)
		return loadErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %d not found: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting case: %w", err)
	}
	return c, nil
}

func (s *SQLiteCaseRepository) load(ctx context.Context, id int64) (*domain.Case, error) {
	c := &domain.Case{}
	var details string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, primary_diagnosis, case_details, created_at, updated_at
		FROM cases
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &c.Description, &c.PrimaryDiagnosis, &details, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeDetails([]byte(details), &c.Details); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier_level, diagnostic_buckets, a_priori_probabilities
		FROM diagnostic_frameworks
		WHERE case_id = ?
		ORDER BY tier_level, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query framework: %w", err)
	}
	defer rows.Close()

	c.Framework = domain.DiagnosticFramework{}
	for rows.Next() {
		var (
			level           int
			buckets, priors string
		)
		if err := rows.Scan(&level, &buckets, &priors); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tier, err := decodeTier(level, []byte(buckets), []byte(priors))
		if err != nil {
			return nil, err
		}
		c.Framework = append(c.Framework, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lrRows, err := s.db.QueryContext(ctx, `
		SELECT l.feature_name, l.feature_category, l.diagnostic_bucket,
			COALESCE(l.tier_level, f.tier_level), l.likelihood_ratio
		FROM feature_likelihood_ratios l
		LEFT JOIN diagnostic_frameworks f ON f.id = l.framework_id
		WHERE l.case_id = ?
		ORDER BY l.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query likelihood ratios: %w", err)
	}
	defer lrRows.Close()

	c.LikelihoodRatios = []domain.FeatureLikelihoodRatio{}
	for lrRows.Next() {
		var (
			lr       domain.FeatureLikelihoodRatio
			category string
			tier     sql.NullInt64
		)
		if err := lrRows.Scan(&lr.FeatureName, &category, &lr.DiagnosticBucket, &tier, &lr.LikelihoodRatio); err != nil {
			return nil, fmt.Errorf("failed to scan likelihood ratio: %w", err)
		}
		lr.FeatureCategory = domain.FeatureCategory(category)
		if tier.Valid {
			lr.TierLevel = domain.IntPtr(int(tier.Int64))
		}
		c.LikelihoodRatios = append(c.LikelihoodRatios, lr)
	}
	return c, lrRows.Err()
}

// List returns every case in insertion order.
func (s *SQLiteCaseRepository) List(ctx context.Context) ([]domain.CaseSummary, error) {
	summaries := []domain.CaseSummary{}
	err := database.WithRetry(ctx, s.retry, s.log, "list cases", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, title, primary_diagnosis FROM cases ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		summaries = summaries[:0]
		for rows.Next() {
			var cs domain.CaseSummary
			if err := rows.Scan(&cs.ID, &cs.Title, &cs.PrimaryDiagnosis); err != nil {
				return err
			}
			summaries = append(summaries, cs)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	return summaries, nil
}

// Ping checks the database handle
func (s *SQLiteCaseRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteCaseRepository) Close() error {
	return s.db.Close()
}

var (
	_ domain.CaseRepository = (*SQLiteCaseRepository)(nil)
	_ domain.CaseRepository = (*PostgresCaseRepository)(nil)
)
