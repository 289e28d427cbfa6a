package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcase-generator/internal/config"
	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/internal/repository"
	"github.com/medcase-generator/internal/service"
	"github.com/medcase-generator/internal/session"
)

const (
	testUser     = "admin"
	testPassword = "s3cret"
)

// stubGenerator returns fixed content, or err for every call when set.
type stubGenerator struct {
	err error
}

func (g *stubGenerator) GenerateCaseDetails(_ context.Context, _, _ string) (*domain.CaseDetails, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &domain.CaseDetails{
		Presentation:       "62-year-old with sudden dyspnea.",
		PatientPersonality: "Calm, precise historian.",
		HistoryQuestions: []domain.HistoryQuestion{
			{Question: "Any recent travel?", ExpectedAnswer: "Long flight last week."},
		},
		PhysicalExamFindings: []domain.PhysicalExamFinding{
			{Examination: "Lungs", Findings: "Clear"},
		},
		DiagnosticWorkup: []domain.DiagnosticTest{
			{Test: "CT angiography", Rationale: "Rule out embolism"},
		},
	}, nil
}

func (g *stubGenerator) GenerateDiagnosticFramework(_ context.Context, _ *domain.CaseDetails, _ string) (domain.DiagnosticFramework, error) {
	if g.err != nil {
		return nil, g.err
	}
	return domain.DiagnosticFramework{
		{
			TierLevel: 1,
			Buckets: []domain.DiagnosticBucket{
				{Name: "Pulmonary Causes", Description: "Lung and pulmonary vascular"},
				{Name: "Cardiac Causes", Description: "Heart"},
			},
			APrioriProbabilities: map[string]float64{"Pulmonary Causes": 0.7, "Cardiac Causes": 0.3},
		},
		{
			TierLevel: 2,
			Buckets: []domain.DiagnosticBucket{
				{Name: "Pulmonary Embolism", Description: "PE"},
				{Name: "Heart Failure", Description: "CHF"},
			},
			APrioriProbabilities: map[string]float64{"Pulmonary Embolism": 0.5, "Heart Failure": 0.3},
		},
	}, nil
}

func (g *stubGenerator) GenerateLikelihoodRatios(_ context.Context, _ *domain.CaseDetails, _ domain.DiagnosticFramework) ([]domain.FeatureLikelihoodRatio, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []domain.FeatureLikelihoodRatio{
		{FeatureName: "Recent travel", FeatureCategory: domain.CategoryHistory, DiagnosticBucket: "Pulmonary Causes", TierLevel: domain.IntPtr(1), LikelihoodRatio: 3},
		{FeatureName: "Recent travel", FeatureCategory: domain.CategoryHistory, DiagnosticBucket: "cardiac cause", TierLevel: domain.IntPtr(1), LikelihoodRatio: 0.8},
		{FeatureName: "CT filling defect", FeatureCategory: domain.CategoryDiagnosticWorkup, DiagnosticBucket: "Pulmonary Embolism", TierLevel: domain.IntPtr(2), LikelihoodRatio: 20},
		{FeatureName: "Clear lungs", FeatureCategory: domain.CategoryPhysicalExam, DiagnosticBucket: "Endocrine Disorders", TierLevel: domain.IntPtr(1), LikelihoodRatio: 1.5},
	}, nil
}

type testEnv struct {
	handler   http.Handler
	generator *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, v := range []string{"MEDCASE_AUTH_PASSWORD", "APP_PASSWORD", "MEDCASE_LOGGING_LEVEL", "MEDCASE_RATE_LIMIT_ENABLED"} {
		t.Setenv(v, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
storage:
  driver: sqlite
  sqlite_path: %s
session:
  backend: memory
auth:
  username: %s
  password: %s
rate_limit:
  enabled: false
logging:
  level: fatal
`, filepath.Join(dir, "cases.db"), testUser, testPassword)), 0o600))

	manager, err := config.NewManagerWithFile(path)
	require.NoError(t, err)
	cfg := manager.GetConfig()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	repo, err := repository.Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	sessions, err := session.New(cfg.Session, logger)
	require.NoError(t, err)

	generator := &stubGenerator{}
	exports := service.NewExportService(logger, cfg.Matching)
	cases := service.NewCaseService(logger, generator, sessions, repo, exports, cfg.Session.TTL)

	server := NewServer(manager, Dependencies{
		Cases:    cases,
		Exports:  exports,
		Repo:     repo,
		Sessions: sessions,
	}, logger)

	return &testEnv{handler: server.Handler(), generator: generator}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.SetBasicAuth(testUser, testPassword)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, code, apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)
}

var pulmonaryInput = domain.CaseInput{
	Description:      "Dyspnea after a long-haul flight",
	PrimaryDiagnosis: "Pulmonary embolism",
}

// generateCase stores a case through the direct generation endpoint and returns its id.
func (e *testEnv) generateCase(t *testing.T) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/generate-case", pulmonaryInput, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved domain.Case
	decode(t, w, &saved)
	require.NotZero(t, saved.ID)
	return saved.ID
}

func TestServer_RootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/preview-case")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = env.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, map[string]string{"storage": "ok", "sessions": "ok"}, health.Checks)
}

func TestServer_DraftLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/preview-case", pulmonaryInput, false)
	assertAPIError(t, w, http.StatusUnauthorized, domain.ErrAuthentication)

	w = env.do(t, http.MethodPost, "/preview-case", pulmonaryInput, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var preview service.PreviewResult
	decode(t, w, &preview)
	require.NotEmpty(t, preview.SessionID)
	assert.Len(t, preview.DiagnosticFramework, 2)
	assert.Len(t, preview.FeatureLikelihoodRatios, 4)
	require.Len(t, preview.Warnings, 1, "tier 2 priors sum to 0.8")
	assert.Contains(t, preview.Warnings[0], "tier 2")

	edited := preview.CaseDetails
	edited.Presentation = "58-year-old with pleuritic chest pain."
	w = env.do(t, http.MethodPut, "/edit-case", service.EditRequest{
		SessionID:   preview.SessionID,
		CaseDetails: &edited,
	}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/session/"+preview.SessionID, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var draft domain.SessionData
	decode(t, w, &draft)
	assert.Equal(t, "58-year-old with pleuritic chest pain.", draft.CaseDetails.Presentation)
	assert.Equal(t, pulmonaryInput, draft.OriginalInput)

	w = env.do(t, http.MethodPost, "/finalize-case", service.FinalizeRequest{SessionID: preview.SessionID}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var finalized struct {
		CaseID int64  `json:"case_id"`
		Title  string `json:"title"`
	}
	decode(t, w, &finalized)
	assert.Equal(t, "Case: Pulmonary embolism", finalized.Title)

	w = env.do(t, http.MethodGet, "/session/"+preview.SessionID, nil, false)
	assertAPIError(t, w, http.StatusNotFound, domain.ErrSessionExpired)

	w = env.do(t, http.MethodGet, "/cases", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var cases []domain.CaseSummary
	decode(t, w, &cases)
	assert.Equal(t, []domain.CaseSummary{{
		ID:               finalized.CaseID,
		Title:            "Case: Pulmonary embolism",
		PrimaryDiagnosis: "Pulmonary embolism",
	}}, cases)
}

func TestServer_RequestErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		auth       bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "preview without diagnosis",
			method:     http.MethodPost,
			path:       "/preview-case",
			body:       map[string]string{"description": "Dyspnea"},
			auth:       true,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrInvalidInput,
		},
		{
			name:       "blank diagnosis",
			method:     http.MethodPost,
			path:       "/generate-case",
			body:       domain.CaseInput{Description: "Dyspnea", PrimaryDiagnosis: "   "},
			auth:       true,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.ErrValidation,
		},
		{
			name:       "edit unknown session",
			method:     http.MethodPut,
			path:       "/edit-case",
			body:       service.EditRequest{SessionID: "missing"},
			wantStatus: http.StatusNotFound,
			wantCode:   domain.ErrSessionExpired,
		},
		{
			name:   "edit with invalid tier",
			method: http.MethodPut,
			path:   "/edit-case",
			body: service.EditRequest{
				SessionID:           "missing",
				DiagnosticFramework: domain.DiagnosticFramework{{TierLevel: 0}},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.ErrValidation,
		},
		{
			name:       "finalize without session id",
			method:     http.MethodPost,
			path:       "/finalize-case",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrInvalidInput,
		},
		{
			name:       "non-numeric case id",
			method:     http.MethodGet,
			path:       "/case/abc/output-files",
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.ErrInvalidInput,
		},
		{
			name:       "unknown case",
			method:     http.MethodGet,
			path:       "/case/999/simulator-exports",
			wantStatus: http.StatusNotFound,
			wantCode:   domain.ErrNotFoundCode,
		},
		{
			name:       "unknown case export",
			method:     http.MethodGet,
			path:       "/case/999/simulator-export/case-summary",
			wantStatus: http.StatusNotFound,
			wantCode:   domain.ErrNotFoundCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, tt.auth)
			assertAPIError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestServer_GenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.generator.err = fmt.Errorf("%w: case_details: upstream returned 503", domain.ErrGenerationFailed)

	w := env.do(t, http.MethodPost, "/generate-case", pulmonaryInput, true)
	assertAPIError(t, w, http.StatusBadGateway, domain.ErrGeneration)
	assert.NotContains(t, w.Body.String(), "503", "upstream details stay in the logs")
}

func TestServer_CaseViews(t *testing.T) {
	env := newTestEnv(t)
	id := env.generateCase(t)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/case/%d/output-files", id), nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var files service.OutputFiles
	decode(t, w, &files)
	assert.Equal(t, id, files.CaseDetailsJSON.CaseID)
	assert.Equal(t, 0.7, files.APrioriProbabilitiesJSON["tier_1"].Probabilities["Pulmonary Causes"])
	assert.Equal(t, 3.0, files.FeatureLikelihoodRatiosJSON["history"]["Recent travel"]["Pulmonary Causes"])

	w = env.do(t, http.MethodGet, fmt.Sprintf("/case/%d/simulator-exports", id), nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var info service.ExportInfo
	decode(t, w, &info)
	assert.Equal(t, []int{1, 2}, info.AvailableTiers)
	assert.Equal(t, 3, info.TotalFeatures)
	assert.Equal(t, 4, info.TotalDiagnosticBuckets)
	assert.Len(t, info.AvailableExports, 5)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/case/%d/debug-lr-data?tier_level=1", id), nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var debug struct {
		TotalFeatureLRs     int                       `json:"total_feature_lrs"`
		CaseDetailsFeatures service.CaseDetailFeatures `json:"case_details_features"`
	}
	decode(t, w, &debug)
	assert.Equal(t, 4, debug.TotalFeatureLRs)
	assert.Equal(t, []string{"Any recent travel?"}, debug.CaseDetailsFeatures.HistoryQuestions)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/case/%d/debug-lr-data?strict=maybe", id), nil, false)
	assertAPIError(t, w, http.StatusBadRequest, domain.ErrInvalidInput)
}

func TestServer_SimulatorExports(t *testing.T) {
	env := newTestEnv(t)
	id := env.generateCase(t)
	base := fmt.Sprintf("/case/%d/simulator-export", id)

	t.Run("csv", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/lr-matrix-csv", nil, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, export.ContentTypeCSV, w.Header().Get("Content-Type"))
		assert.Equal(t, fmt.Sprintf(`attachment; filename="case_%d_lr_matrix.csv"`, id), w.Header().Get("Content-Disposition"))
		assert.Equal(t,
			"Feature,Pulmonary Causes,Cardiac Causes\n"+
				"Patient Has: recent travel,3.0,0.8\n"+
				"Physical Finding: clear lungs,1.0,1.0\n",
			w.Body.String())
	})

	t.Run("strict csv", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/lr-matrix-csv?tier_level=1&strict=true", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Patient Has: recent travel,3.0,1.0\n")
	})

	t.Run("spreadsheet", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/lr-matrix-excel?tier_level=2", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, export.ContentTypeSpreadsheet, w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})

	t.Run("priors", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/prior-probabilities", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		var priors map[string]float64
		decode(t, w, &priors)
		assert.Equal(t, map[string]float64{"Pulmonary Causes": 0.7, "Cardiac Causes": 0.3}, priors)
	})

	t.Run("priors off tolerance", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/prior-probabilities?tier_level=2", nil, false)
		assertAPIError(t, w, http.StatusUnprocessableEntity, domain.ErrProbabilitySum)
	})

	t.Run("bad tier", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/prior-probabilities?tier_level=zero", nil, false)
		assertAPIError(t, w, http.StatusBadRequest, domain.ErrInvalidInput)
	})

	t.Run("summary", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/case-summary", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
		assert.Contains(t, w.Body.String(), "62-year-old with sudden dyspnea.")
	})

	t.Run("bundle", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/bundle", nil, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, export.ContentTypeZip, w.Header().Get("Content-Type"))

		zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.ElementsMatch(t, []string{
			export.MatrixCSVName(id),
			export.MatrixSpreadsheetName(id),
			export.PriorsName(id, 1),
			export.SummaryName(id),
		}, names)
	})

	t.Run("bundle rejects off-tolerance tier", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base+"/bundle?tier_level=2", nil, false)
		assertAPIError(t, w, http.StatusUnprocessableEntity, domain.ErrProbabilitySum)
	})
}
