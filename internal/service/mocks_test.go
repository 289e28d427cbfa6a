package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/medcase-generator/internal/domain"
)

// MockCaseGenerator is a mock implementation of the CaseGenerator interface
type MockCaseGenerator struct {
	mock.Mock
}

func (m *MockCaseGenerator) GenerateCaseDetails(ctx context.Context, description, primaryDiagnosis string) (*domain.CaseDetails, error) {
	args := m.Called(ctx, description, primaryDiagnosis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaseDetails), args.Error(1)
}

func (m *MockCaseGenerator) GenerateDiagnosticFramework(ctx context.Context, details *domain.CaseDetails, primaryDiagnosis string) (domain.DiagnosticFramework, error) {
	args := m.Called(ctx, details, primaryDiagnosis)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.DiagnosticFramework), args.Error(1)
}

func (m *MockCaseGenerator) GenerateLikelihoodRatios(ctx context.Context, details *domain.CaseDetails, framework domain.DiagnosticFramework) ([]domain.FeatureLikelihoodRatio, error) {
	args := m.Called(ctx, details, framework)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeatureLikelihoodRatio), args.Error(1)
}

// MockSessionStore is a mock implementation of the SessionStore interface
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Save(ctx context.Context, id string, data *domain.SessionData, ttl time.Duration) error {
	return m.Called(ctx, id, data, ttl).Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.SessionData, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionData), args.Error(1)
}

func (m *MockSessionStore) Update(ctx context.Context, id string, ttl time.Duration, fn func(*domain.SessionData) error) error {
	return m.Called(ctx, id, ttl, fn).Error(0)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSessionStore) Close() error {
	return m.Called().Error(0)
}

// MockCaseRepository is a mock implementation of the CaseRepository interface
type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) Create(ctx context.Context, c *domain.Case) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCaseRepository) Get(ctx context.Context, id int64) (*domain.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}

func (m *MockCaseRepository) List(ctx context.Context) ([]domain.CaseSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CaseSummary), args.Error(1)
}

func (m *MockCaseRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCaseRepository) Close() error {
	return m.Called().Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testMatchingConfig() domain.MatchingConfig {
	return domain.MatchingConfig{
		SimilarityCutoff: 0.6,
		TokenCutoff:      0.5,
		ProjectionCutoff: 0.4,
		Precision:        2,
		MinLR:            0.01,
		NeutralLR:        1.0,
		PriorTolerance:   0.01,
	}
}

func testDetails() *domain.CaseDetails {
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
	}
}

func testFramework() domain.DiagnosticFramework {
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
	}
}

func testLRs() []domain.FeatureLikelihoodRatio {
	return []domain.FeatureLikelihoodRatio{
		{FeatureName: "Recent travel", FeatureCategory: domain.CategoryHistory, DiagnosticBucket: "Pulmonary Causes", TierLevel: domain.IntPtr(1), LikelihoodRatio: 3},
		{FeatureName: "Recent travel", FeatureCategory: domain.CategoryHistory, DiagnosticBucket: "cardiac cause", TierLevel: domain.IntPtr(1), LikelihoodRatio: 0.8},
		{FeatureName: "CT filling defect", FeatureCategory: domain.CategoryDiagnosticWorkup, DiagnosticBucket: "Pulmonary Embolism", TierLevel: domain.IntPtr(2), LikelihoodRatio: 20},
		{FeatureName: "Clear lungs", FeatureCategory: domain.CategoryPhysicalExam, DiagnosticBucket: "Endocrine Disorders", TierLevel: domain.IntPtr(1), LikelihoodRatio: 1.5},
	}
}

func testCase() *domain.Case {
	return &domain.Case{
		ID:               42,
		Title:            "Case: Pulmonary embolism",
		Description:      "Dyspnea after travel",
		PrimaryDiagnosis: "Pulmonary embolism",
		Details:          *testDetails(),
		Framework:        testFramework(),
		LikelihoodRatios: testLRs(),
	}
}
