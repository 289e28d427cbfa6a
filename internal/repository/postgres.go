package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/database"
	"github.com/medcase-generator/internal/domain"
)

// PostgresCaseRepository handles case persistence in PostgreSQL
type PostgresCaseRepository struct {
	db    *pgxpool.Pool
	retry database.RetryPolicy
	log   *logrus.Logger
	owner *database.DB
}

// NewPostgresCaseRepository creates a repository on an established connection pool. The
// repository takes ownership of db and closes it on Close.
func NewPostgresCaseRepository(db *database.DB, logger *logrus.Logger) *PostgresCaseRepository {
	return &PostgresCaseRepository{
		db:    db.Pool,
		retry: db.Retry,
		log:   logger,
		owner: db,
	}
}

// Create stores the case, its tiers and its LR records in one transaction and fills in the
// generated ID and timestamps.
func (r *PostgresCaseRepository) Create(ctx context.Context, c *domain.Case) error {
	cols, err := encodeCase(c)
	if err != nil {
		return err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = database.WithRetry(ctx, r.retry, r.log, "create case", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			var txErr error
			id, createdAt, updatedAt, txErr = r.insert(ctx, tx, c, cols)
			return txErr
		})
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"title": c.Title,
			"error": err,
		}).Error("Failed to create case")
		return fmt.Errorf("creating case: %w", err)
	}

	c.ID = id
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt

	r.log.WithFields(logrus.Fields{
		"case_id":           c.ID,
		"tiers":             len(c.Framework),
		"likelihood_ratios": len(c.LikelihoodRatios),
	}).Info("Case created successfully")
	return nil
}

func (r *PostgresCaseRepository) insert(ctx context.Context, tx pgx.Tx, c *domain.Case, cols *caseColumns) (int64, time.Time, time.Time, error) {
	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err := tx.QueryRow(ctx, `
		INSERT INTO cases (title, description, primary_diagnosis, case_details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.Title, c.Description, c.PrimaryDiagnosis, cols.details,
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("inserting case: %w", err)
	}

	frameworkIDs := make(map[int]int64, len(cols.tiers))
	for _, tier := range cols.tiers {
		var frameworkID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO diagnostic_frameworks (case_id, tier_level, diagnostic_buckets, a_priori_probabilities)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			id, tier.level, tier.buckets, tier.priors,
		).Scan(&frameworkID)
		if err != nil {
			return 0, time.Time{}, time.Time{}, fmt.Errorf("inserting tier %d: %w", tier.level, err)
		}
		if _, exists := frameworkIDs[tier.level]; !exists {
			frameworkIDs[tier.level] = frameworkID
		}
	}

	if len(c.LikelihoodRatios) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"feature_likelihood_ratios"},
			[]string{"case_id", "framework_id", "feature_name", "feature_category", "diagnostic_bucket", "tier_level", "likelihood_ratio"},
			pgx.CopyFromSlice(len(c.LikelihoodRatios), func(i int) ([]interface{}, error) {
				lr := c.LikelihoodRatios[i]
				return []interface{}{
					id,
					frameworkLink(frameworkIDs, lr.TierLevel),
					lr.FeatureName,
					string(lr.FeatureCategory),
					lr.DiagnosticBucket,
					tierValue(lr.TierLevel),
					lr.LikelihoodRatio,
				}, nil
			}),
		)
		if err != nil {
			return 0, time.Time{}, time.Time{}, fmt.Errorf("inserting likelihood ratios: %w", err)
		}
	}

	return id, createdAt, updatedAt, nil
}

// Get loads a case with its framework and LR records.
func (r *PostgresCaseRepository) Get(ctx context.Context, id int64) (*domain.Case, error) {
	var c *domain.Case
	err := database.WithRetry(ctx, r.retry, r.log, "get case", func(ctx context.Context) error {
		var loadErr error
		c, loadErr = r.load(ctx, id)
		return loadErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("case %d not found: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"case_id": id,
			"error":   err,
		}).Error("Failed to get case")
		return nil, fmt.Errorf("getting case: %w", err)
	}
	return c, nil
}

func (r *PostgresCaseRepository) load(ctx context.Context, id int64) (*domain.Case, error) {
	c := &domain.Case{}
	var details []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, title, description, primary_diagnosis, case_details, created_at, updated_at
		FROM cases
		WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.PrimaryDiagnosis, &details, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeDetails(details, &c.Details); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT tier_level, diagnostic_buckets, a_priori_probabilities
		FROM diagnostic_frameworks
		WHERE case_id = $1
		ORDER BY tier_level, id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying framework: %w", err)
	}
	c.Framework = domain.DiagnosticFramework{}
	for rows.Next() {
		var (
			level           int
			buckets, priors []byte
		)
		if err := rows.Scan(&level, &buckets, &priors); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning tier: %w", err)
		}
		tier, err := decodeTier(level, buckets, priors)
		if err != nil {
			rows.Close()
			return nil, err
		}
		c.Framework = append(c.Framework, tier)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating framework: %w", err)
	}

	lrRows, err := r.db.Query(ctx, `
		SELECT l.feature_name, l.feature_category, l.diagnostic_bucket,
			   COALESCE(l.tier_level, f.tier_level), l.likelihood_ratio
		FROM feature_likelihood_ratios l
		LEFT JOIN diagnostic_frameworks f ON f.id = l.framework_id
		WHERE l.case_id = $1
		ORDER BY l.id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying likelihood ratios: %w", err)
	}
	c.LikelihoodRatios, err = pgx.CollectRows(lrRows, func(row pgx.CollectableRow) (domain.FeatureLikelihoodRatio, error) {
		var (
			lr       domain.FeatureLikelihoodRatio
			category string
		)
		err := row.Scan(&lr.FeatureName, &category, &lr.DiagnosticBucket, &lr.TierLevel, &lr.LikelihoodRatio)
		lr.FeatureCategory = domain.FeatureCategory(category)
		return lr, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning likelihood ratios: %w", err)
	}
	if c.LikelihoodRatios == nil {
		c.LikelihoodRatios = []domain.FeatureLikelihoodRatio{}
	}
	return c, nil
}

// List returns every case in insertion order.
func (r *PostgresCaseRepository) List(ctx context.Context) ([]domain.CaseSummary, error) {
	var summaries []domain.CaseSummary
	err := database.WithRetry(ctx, r.retry, r.log, "list cases", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `SELECT id, title, primary_diagnosis FROM cases ORDER BY id`)
		if err != nil {
			return err
		}
		summaries, err = pgx.CollectRows(rows, pgx.RowToStructByPos[domain.CaseSummary])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	if summaries == nil {
		summaries = []domain.CaseSummary{}
	}
	return summaries, nil
}

// Ping checks the database connection
func (r *PostgresCaseRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close releases the connection pool
func (r *PostgresCaseRepository) Close() error {
	r.owner.Close()
	return nil
}
