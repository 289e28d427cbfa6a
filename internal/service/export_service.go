package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/pkg/lrmatrix"
)

// DefaultExportTier is the tier used by matrix and priors exports when none is requested.
const DefaultExportTier = 1

// MatrixOptions selects the tier and matching mode of a matrix build. A nil Strict falls
// back to the configured default.
type MatrixOptions struct {
	TierLevel *int
	Strict    *bool
}

// ExportService turns stored cases into simulator artifacts
type ExportService struct {
	logger    *logrus.Logger
	builder   *lrmatrix.Builder
	strict    bool
	tolerance float64
}

// MatrixConfig converts the matching configuration section into builder settings.
func MatrixConfig(cfg domain.MatchingConfig) lrmatrix.Config {
	return lrmatrix.Config{
		SimilarityCutoff: cfg.SimilarityCutoff,
		TokenCutoff:      cfg.TokenCutoff,
		ProjectionCutoff: cfg.ProjectionCutoff,
		Precision:        cfg.Precision,
		MinLR:            cfg.MinLR,
		NeutralLR:        cfg.NeutralLR,
	}
}

// NewExportService creates a new export service
func NewExportService(logger *logrus.Logger, cfg domain.MatchingConfig) *ExportService {
	tolerance := cfg.PriorTolerance
	if tolerance <= 0 {
		tolerance = domain.DefaultPriorTolerance
	}
	return &ExportService{
		logger:    logger,
		builder:   lrmatrix.NewBuilder(MatrixConfig(cfg)),
		strict:    cfg.Strict,
		tolerance: tolerance,
	}
}

func (s *ExportService) resolveStrict(opts MatrixOptions) bool {
	if opts.Strict != nil {
		return *opts.Strict
	}
	return s.strict
}

// BuildMatrix builds the LR matrix for a case and logs how the bucket labels were matched.
// Unmatched records never fail the build.
func (s *ExportService) BuildMatrix(c *domain.Case, opts MatrixOptions) (*lrmatrix.Result, error) {
	strict := s.resolveStrict(opts)
	result, err := s.builder.Build(lrmatrix.Request{
		Framework: c.Framework,
		Records:   c.LikelihoodRatios,
		TierLevel: opts.TierLevel,
		Strict:    strict,
	})
	if err != nil {
		return nil, fmt.Errorf("building LR matrix for case %d: %w", c.ID, err)
	}

	report := result.Report
	s.logger.WithFields(logrus.Fields{
		"case_id":       c.ID,
		"tier_level":    report.TierLevel,
		"tier_fallback": report.TierFallback,
		"strict":        strict,
		"columns":       len(report.Columns),
		"rows":          result.Table.Len(),
		"total":         report.Total,
		"matched":       report.Matched,
		"unmatched":     report.Unmatched,
		"filtered_out":  report.FilteredOut,
	}).Info("Built LR matrix")

	for _, e := range report.UnmatchedEntries() {
		s.logger.WithFields(logrus.Fields{
			"case_id":          c.ID,
			"feature":          e.FeatureLabel,
			"bucket":           e.OriginalBucket,
			"suggested_bucket": e.SuggestedBucket,
			"suggestion_score": e.SuggestionScore,
		}).Warn("LR record bucket did not match any column, keeping neutral value")
	}

	return result, nil
}

// ValidatedMatrix builds the matrix and rejects it with a *domain.MatrixValidationError when
// the simulator would not accept it.
func (s *ExportService) ValidatedMatrix(c *domain.Case, opts MatrixOptions) (*lrmatrix.Result, error) {
	result, err := s.BuildMatrix(c, opts)
	if err != nil {
		return nil, err
	}

	validation := lrmatrix.Validate(result.Table)
	if len(validation.Warnings) > 0 {
		s.logger.WithFields(logrus.Fields{
			"case_id":  c.ID,
			"warnings": validation.Warnings,
		}).Warn("LR matrix validation warnings")
	}
	if !validation.Valid {
		return nil, &domain.MatrixValidationError{Errors: validation.Errors, Warnings: validation.Warnings}
	}
	return result, nil
}

// ValidateMatrix builds the matrix and returns the validator's verdict without rejecting it.
func (s *ExportService) ValidateMatrix(c *domain.Case, opts MatrixOptions) (lrmatrix.ValidationResult, error) {
	result, err := s.BuildMatrix(c, opts)
	if err != nil {
		return lrmatrix.ValidationResult{}, err
	}
	return lrmatrix.Validate(result.Table), nil
}

// ExportCSV renders the validated matrix as CSV.
func (s *ExportService) ExportCSV(c *domain.Case, opts MatrixOptions) (*export.Artifact, error) {
	result, err := s.ValidatedMatrix(c, opts)
	if err != nil {
		return nil, err
	}
	data, err := export.RenderCSV(result.Table)
	if err != nil {
		return nil, err
	}
	return &export.Artifact{Name: export.MatrixCSVName(c.ID), ContentType: export.ContentTypeCSV, Data: data}, nil
}

// ExportSpreadsheet renders the validated matrix as an XLSX workbook.
func (s *ExportService) ExportSpreadsheet(c *domain.Case, opts MatrixOptions) (*export.Artifact, error) {
	result, err := s.ValidatedMatrix(c, opts)
	if err != nil {
		return nil, err
	}
	data, err := export.RenderSpreadsheet(result.Table)
	if err != nil {
		return nil, err
	}
	return &export.Artifact{Name: export.MatrixSpreadsheetName(c.ID), ContentType: export.ContentTypeSpreadsheet, Data: data}, nil
}

// Priors extracts a tier's a priori probabilities and enforces the sum tolerance.
func (s *ExportService) Priors(c *domain.Case, tierLevel int) (map[string]float64, error) {
	priors := lrmatrix.ExtractPriors(c.Framework, tierLevel)
	if len(priors) == 0 {
		return nil, fmt.Errorf("no prior probabilities found for tier %d: %w", tierLevel, domain.ErrNotFound)
	}
	if err := export.CheckPriorSum(priors, tierLevel, s.tolerance); err != nil {
		s.logger.WithFields(logrus.Fields{
			"case_id":    c.ID,
			"tier_level": tierLevel,
		}).WithError(err).Warn("Rejected prior probabilities export")
		return nil, err
	}
	return priors, nil
}

// ExportPriors renders a tier's priors as JSON.
func (s *ExportService) ExportPriors(c *domain.Case, tierLevel int) (*export.Artifact, error) {
	priors, err := s.Priors(c, tierLevel)
	if err != nil {
		return nil, err
	}
	data, err := export.RenderPriors(priors)
	if err != nil {
		return nil, err
	}
	return &export.Artifact{Name: export.PriorsName(c.ID, tierLevel), ContentType: export.ContentTypeJSON, Data: data}, nil
}

// ExportSummary renders the case summary transcript.
func (s *ExportService) ExportSummary(c *domain.Case) *export.Artifact {
	id := c.ID
	text := export.RenderCaseSummary(c.Details, c.PrimaryDiagnosis, &id)
	return &export.Artifact{Name: export.SummaryName(c.ID), ContentType: export.ContentTypeText, Data: []byte(text)}
}

// ExportBundle renders all four artifacts for one tier into a zip archive. The matrix is
// built for the same tier as the priors.
func (s *ExportService) ExportBundle(ctx context.Context, c *domain.Case, tierLevel int, strict *bool) (*export.Artifact, error) {
	result, err := s.ValidatedMatrix(c, MatrixOptions{TierLevel: &tierLevel, Strict: strict})
	if err != nil {
		return nil, err
	}
	priors, err := s.Priors(c, tierLevel)
	if err != nil {
		return nil, err
	}

	data, err := export.RenderBundle(ctx, export.Bundle{
		CaseID:           c.ID,
		TierLevel:        tierLevel,
		Table:            result.Table,
		Priors:           priors,
		Details:          c.Details,
		PrimaryDiagnosis: c.PrimaryDiagnosis,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering export bundle for case %d: %w", c.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":    c.ID,
		"tier_level": tierLevel,
		"bytes":      len(data),
	}).Info("Rendered simulator export bundle")

	return &export.Artifact{Name: export.BundleName(c.ID), ContentType: export.ContentTypeZip, Data: data}, nil
}

// DebugMatching returns the matching decisions for every LR record of the case.
func (s *ExportService) DebugMatching(c *domain.Case, opts MatrixOptions) (*lrmatrix.MatchReport, error) {
	result, err := s.BuildMatrix(c, opts)
	if err != nil {
		return nil, err
	}
	return result.Report, nil
}
