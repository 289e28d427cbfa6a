package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/pkg/lrmatrix"
)

func boolPtr(v bool) *bool { return &v }

func TestExportService_ExportCSV(t *testing.T) {
	svc := NewExportService(testLogger(), testMatchingConfig())

	t.Run("fuzzy matching by default", func(t *testing.T) {
		artifact, err := svc.ExportCSV(testCase(), MatrixOptions{TierLevel: domain.IntPtr(1)})
		require.NoError(t, err)

		assert.Equal(t, "case_42_lr_matrix.csv", artifact.Name)
		assert.Equal(t, export.ContentTypeCSV, artifact.ContentType)
		assert.Equal(t,
			"Feature,Pulmonary Causes,Cardiac Causes\n"+
				"Patient Has: recent travel,3.0,0.8\n"+
				"Physical Finding: clear lungs,1.0,1.0\n",
			string(artifact.Data))
	})

	t.Run("strict request", func(t *testing.T) {
		artifact, err := svc.ExportCSV(testCase(), MatrixOptions{TierLevel: domain.IntPtr(1), Strict: boolPtr(true)})
		require.NoError(t, err)

		assert.Contains(t, string(artifact.Data), "Patient Has: recent travel,3.0,1.0\n")
	})

	t.Run("strict from configuration", func(t *testing.T) {
		cfg := testMatchingConfig()
		cfg.Strict = true
		artifact, err := NewExportService(testLogger(), cfg).ExportCSV(testCase(), MatrixOptions{TierLevel: domain.IntPtr(1)})
		require.NoError(t, err)

		assert.Contains(t, string(artifact.Data), "Patient Has: recent travel,3.0,1.0\n")
	})

	t.Run("input shape error", func(t *testing.T) {
		c := testCase()
		c.LikelihoodRatios[0].FeatureName = ""

		_, err := svc.ExportCSV(c, MatrixOptions{TierLevel: domain.IntPtr(1)})

		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "feature_likelihood_ratios[0].feature_name", verr.Field)
	})
}

func TestExportService_ExportSpreadsheet(t *testing.T) {
	svc := NewExportService(testLogger(), testMatchingConfig())

	artifact, err := svc.ExportSpreadsheet(testCase(), MatrixOptions{TierLevel: domain.IntPtr(2)})
	require.NoError(t, err)

	assert.Equal(t, "case_42_lr_matrix.xlsx", artifact.Name)
	assert.Equal(t, export.ContentTypeSpreadsheet, artifact.ContentType)
	assert.NotEmpty(t, artifact.Data)
}

func TestExportService_Priors(t *testing.T) {
	svc := NewExportService(testLogger(), testMatchingConfig())

	t.Run("valid tier", func(t *testing.T) {
		artifact, err := svc.ExportPriors(testCase(), 1)
		require.NoError(t, err)

		assert.Equal(t, "case_42_tier_1_priors.json", artifact.Name)
		assert.Equal(t, "{\n  \"Cardiac Causes\": 0.3,\n  \"Pulmonary Causes\": 0.7\n}", string(artifact.Data))
	})

	t.Run("sum outside tolerance", func(t *testing.T) {
		_, err := svc.ExportPriors(testCase(), 2)

		var sumErr *domain.ProbabilitySumError
		require.True(t, errors.As(err, &sumErr))
		assert.Equal(t, 2, sumErr.TierLevel)
		assert.InDelta(t, 0.8, sumErr.Sum, 1e-9)
	})

	t.Run("missing tier falls back to first", func(t *testing.T) {
		priors, err := svc.Priors(testCase(), 5)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"Pulmonary Causes": 0.7, "Cardiac Causes": 0.3}, priors)
	})

	t.Run("no framework", func(t *testing.T) {
		c := testCase()
		c.Framework = nil

		_, err := svc.Priors(c, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestExportService_ExportSummary(t *testing.T) {
	artifact := NewExportService(testLogger(), testMatchingConfig()).ExportSummary(testCase())

	assert.Equal(t, "case_42_summary.txt", artifact.Name)
	assert.Contains(t, string(artifact.Data), "CASE ID: 42\nPRIMARY DIAGNOSIS: Pulmonary embolism\n")
	assert.Contains(t, string(artifact.Data), "Question: Any recent travel?\nPatient Response: Long flight last week.\n")
}

func TestExportService_ExportBundle(t *testing.T) {
	svc := NewExportService(testLogger(), testMatchingConfig())

	artifact, err := svc.ExportBundle(context.Background(), testCase(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "case_42_simulator_export.zip", artifact.Name)

	zr, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 4)

	_, err = svc.ExportBundle(context.Background(), testCase(), 2, nil)
	var sumErr *domain.ProbabilitySumError
	assert.True(t, errors.As(err, &sumErr))
}

func TestExportService_DebugMatching(t *testing.T) {
	svc := NewExportService(testLogger(), testMatchingConfig())

	report, err := svc.DebugMatching(testCase(), MatrixOptions{TierLevel: domain.IntPtr(1)})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.FilteredOut)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.ByStrategy[lrmatrix.StrategySimilarity])

	unmatched := report.UnmatchedEntries()
	require.Len(t, unmatched, 1)
	assert.Equal(t, "Endocrine Disorders", unmatched[0].OriginalBucket)
	assert.Equal(t, "endocrine disorders", unmatched[0].NormalizedBucket)
	assert.NotEmpty(t, unmatched[0].SuggestedBucket)
}

func TestExportService_ValidateMatrix(t *testing.T) {
	result, err := NewExportService(testLogger(), testMatchingConfig()).ValidateMatrix(testCase(), MatrixOptions{TierLevel: domain.IntPtr(1)})
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestMatrixConfig(t *testing.T) {
	assert.Equal(t, lrmatrix.DefaultConfig(), MatrixConfig(testMatchingConfig()))
}
