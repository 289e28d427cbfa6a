package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/pkg/lrmatrix"
)

// DefaultSessionTTL is how long an editing draft lives without being touched.
const DefaultSessionTTL = time.Hour

// PreviewResult is a freshly generated draft and the session holding it.
type PreviewResult struct {
	SessionID               string                          `json:"session_id"`
	CaseDetails             domain.CaseDetails              `json:"case_details"`
	DiagnosticFramework     domain.DiagnosticFramework      `json:"diagnostic_framework"`
	FeatureLikelihoodRatios []domain.FeatureLikelihoodRatio `json:"feature_likelihood_ratios"`
	Warnings                []string                        `json:"warnings"`
}

// EditRequest replaces the provided parts of a draft wholesale. Nil parts are left untouched.
type EditRequest struct {
	SessionID               string                          `json:"session_id" binding:"required"`
	CaseDetails             *domain.CaseDetails             `json:"case_details,omitempty"`
	DiagnosticFramework     domain.DiagnosticFramework      `json:"diagnostic_framework,omitempty"`
	FeatureLikelihoodRatios []domain.FeatureLikelihoodRatio `json:"feature_likelihood_ratios,omitempty"`
}

// FinalizeRequest persists a draft. Empty description and diagnosis default to the input the
// draft was generated from.
type FinalizeRequest struct {
	SessionID        string `json:"session_id" binding:"required"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	PrimaryDiagnosis string `json:"primary_diagnosis,omitempty"`
}

// TierPriors is the per-tier entry of the output files view.
type TierPriors struct {
	Buckets       []domain.DiagnosticBucket `json:"buckets"`
	Probabilities map[string]float64        `json:"probabilities"`
}

// CaseDetailsFile is the flattened case description of the output files view.
type CaseDetailsFile struct {
	CaseID           int64  `json:"case_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	PrimaryDiagnosis string `json:"primary_diagnosis"`
	domain.CaseDetails
}

// OutputFiles is the JSON bundle view of a stored case.
type OutputFiles struct {
	CaseDetailsJSON             CaseDetailsFile                          `json:"case_details_json"`
	APrioriProbabilitiesJSON    map[string]TierPriors                    `json:"a_priori_probabilities_json"`
	FeatureLikelihoodRatiosJSON map[string]map[string]map[string]float64 `json:"feature_likelihood_ratios_json"`
}

// ExportInfo describes what can be exported for a case.
type ExportInfo struct {
	CaseID                 int64    `json:"case_id"`
	CaseTitle              string   `json:"case_title"`
	AvailableTiers         []int    `json:"available_tiers"`
	TotalFeatures          int      `json:"total_features"`
	TotalDiagnosticBuckets int      `json:"total_diagnostic_buckets"`
	AvailableExports       []string `json:"available_exports"`
}

// CaseDetailFeatures lists the feature names present in the case narrative.
type CaseDetailFeatures struct {
	HistoryQuestions []string `json:"history_questions"`
	PhysicalExam     []string `json:"physical_exam"`
	DiagnosticWorkup []string `json:"diagnostic_workup"`
}

// DebugLRData is the troubleshooting view of a case's LR records and how they matched.
type DebugLRData struct {
	TotalFeatureLRs     int                             `json:"total_feature_lrs"`
	FeatureLRs          []domain.FeatureLikelihoodRatio `json:"feature_lrs"`
	CaseDetailsFeatures CaseDetailFeatures              `json:"case_details_features"`
	Matching            *lrmatrix.MatchReport           `json:"matching"`
}

var availableExports = []string{
	"feature_lr_matrix_csv",
	"feature_lr_matrix_excel",
	"prior_probabilities_json",
	"case_summary_txt",
	"simulator_export_bundle",
}

// CaseService orchestrates case generation, draft editing and persistence
type CaseService struct {
	logger     *logrus.Logger
	generator  domain.CaseGenerator
	sessions   domain.SessionStore
	repo       domain.CaseRepository
	exports    *ExportService
	sessionTTL time.Duration
	tolerance  float64
}

// NewCaseService creates a new case service
func NewCaseService(
	logger *logrus.Logger,
	generator domain.CaseGenerator,
	sessions domain.SessionStore,
	repo domain.CaseRepository,
	exports *ExportService,
	sessionTTL time.Duration,
) *CaseService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &CaseService{
		logger:     logger,
		generator:  generator,
		sessions:   sessions,
		repo:       repo,
		exports:    exports,
		sessionTTL: sessionTTL,
		tolerance:  exports.tolerance,
	}
}

// generate runs the three generation steps in order.
func (s *CaseService) generate(ctx context.Context, input domain.CaseInput) (*domain.SessionData, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	s.logger.WithFields(logrus.Fields{
		"primary_diagnosis": input.PrimaryDiagnosis,
	}).Info("Generating case")

	details, err := s.generator.GenerateCaseDetails(ctx, input.Description, input.PrimaryDiagnosis)
	if err != nil {
		return nil, fmt.Errorf("generating case details: %w", err)
	}
	framework, err := s.generator.GenerateDiagnosticFramework(ctx, details, input.PrimaryDiagnosis)
	if err != nil {
		return nil, fmt.Errorf("generating diagnostic framework: %w", err)
	}
	lrs, err := s.generator.GenerateLikelihoodRatios(ctx, details, framework)
	if err != nil {
		return nil, fmt.Errorf("generating likelihood ratios: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"primary_diagnosis": input.PrimaryDiagnosis,
		"tiers":             len(framework),
		"likelihood_ratios": len(lrs),
		"duration_ms":       time.Since(startTime).Milliseconds(),
	}).Info("Case generated")

	return &domain.SessionData{
		CaseDetails:             *details,
		DiagnosticFramework:     framework,
		FeatureLikelihoodRatios: lrs,
		OriginalInput:           input,
	}, nil
}

// probabilityWarnings reports tiers whose probabilities are off without failing generation.
func (s *CaseService) probabilityWarnings(fw domain.DiagnosticFramework) []string {
	warnings := []string{}
	for _, w := range fw.ProbabilityWarnings(s.tolerance) {
		s.logger.WithFields(logrus.Fields{
			"tier_level": w.TierLevel,
			"sum":        w.Sum,
		}).Warn("Generated prior probabilities do not sum to 1.0")
		warnings = append(warnings, w.Error())
	}
	return warnings
}

// PreviewCase generates a case and stores it as an editable draft.
func (s *CaseService) PreviewCase(ctx context.Context, input domain.CaseInput) (*PreviewResult, error) {
	draft, err := s.generate(ctx, input)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	if err := s.sessions.Save(ctx, sessionID, draft, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"ttl":        s.sessionTTL.String(),
	}).Info("Created editing session")

	return &PreviewResult{
		SessionID:               sessionID,
		CaseDetails:             draft.CaseDetails,
		DiagnosticFramework:     draft.DiagnosticFramework,
		FeatureLikelihoodRatios: draft.FeatureLikelihoodRatios,
		Warnings:                s.probabilityWarnings(draft.DiagnosticFramework),
	}, nil
}

// EditCase applies an edit to a draft and refreshes its TTL.
func (s *CaseService) EditCase(ctx context.Context, req EditRequest) (*domain.SessionData, error) {
	if req.CaseDetails != nil {
		if err := req.CaseDetails.Validate(); err != nil {
			return nil, err
		}
	}
	if req.DiagnosticFramework != nil {
		if err := req.DiagnosticFramework.Validate(); err != nil {
			return nil, err
		}
	}
	if req.FeatureLikelihoodRatios != nil {
		if err := domain.ValidateLikelihoodRatios(req.FeatureLikelihoodRatios); err != nil {
			return nil, err
		}
	}

	var updated domain.SessionData
	err := s.sessions.Update(ctx, req.SessionID, s.sessionTTL, func(data *domain.SessionData) error {
		if req.CaseDetails != nil {
			data.CaseDetails = *req.CaseDetails
		}
		if req.DiagnosticFramework != nil {
			data.DiagnosticFramework = req.DiagnosticFramework
		}
		if req.FeatureLikelihoodRatios != nil {
			data.FeatureLikelihoodRatios = req.FeatureLikelihoodRatios
		}
		updated = *data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating session %s: %w", req.SessionID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":        req.SessionID,
		"case_details":      req.CaseDetails != nil,
		"framework":         req.DiagnosticFramework != nil,
		"likelihood_ratios": req.FeatureLikelihoodRatios != nil,
	}).Info("Updated editing session")

	return &updated, nil
}

// GetSession returns the current draft.
func (s *CaseService) GetSession(ctx context.Context, sessionID string) (*domain.SessionData, error) {
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return data, nil
}

// FinalizeCase persists a draft and ends its session.
func (s *CaseService) FinalizeCase(ctx context.Context, req FinalizeRequest) (*domain.Case, error) {
	draft, err := s.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	description := firstNonEmpty(req.Description, draft.OriginalInput.Description)
	diagnosis := firstNonEmpty(req.PrimaryDiagnosis, draft.OriginalInput.PrimaryDiagnosis)
	if diagnosis == "" {
		return nil, domain.NewValidationError("primary_diagnosis", "is required", diagnosis)
	}

	c := newCase(req.Title, description, diagnosis, draft)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("saving case: %w", err)
	}

	if err := s.sessions.Delete(ctx, req.SessionID); err != nil {
		s.logger.WithError(err).WithField("session_id", req.SessionID).Warn("Failed to delete finalized session")
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":    c.ID,
		"session_id": req.SessionID,
	}).Info("Finalized case")
	return c, nil
}

// GenerateCase generates and persists a case without an editing session.
func (s *CaseService) GenerateCase(ctx context.Context, input domain.CaseInput) (*domain.Case, error) {
	draft, err := s.generate(ctx, input)
	if err != nil {
		return nil, err
	}
	s.probabilityWarnings(draft.DiagnosticFramework)

	c := newCase("", input.Description, input.PrimaryDiagnosis, draft)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("saving case: %w", err)
	}

	s.logger.WithField("case_id", c.ID).Info("Generated and saved case")
	return c, nil
}

// ListCases returns every stored case.
func (s *CaseService) ListCases(ctx context.Context) ([]domain.CaseSummary, error) {
	cases, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	return cases, nil
}

// GetCase loads a stored case.
func (s *CaseService) GetCase(ctx context.Context, id int64) (*domain.Case, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("case %d: %w", id, err)
		}
		return nil, fmt.Errorf("loading case %d: %w", id, err)
	}
	return c, nil
}

// OutputFiles returns the JSON views of a stored case.
func (s *CaseService) OutputFiles(ctx context.Context, id int64) (*OutputFiles, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	priors := make(map[string]TierPriors, len(c.Framework))
	for _, tier := range c.Framework {
		priors[fmt.Sprintf("tier_%d", tier.TierLevel)] = TierPriors{
			Buckets:       tier.Buckets,
			Probabilities: tier.APrioriProbabilities,
		}
	}

	lrs := map[string]map[string]map[string]float64{
		string(domain.CategoryHistory):          {},
		string(domain.CategoryPhysicalExam):     {},
		string(domain.CategoryDiagnosticWorkup): {},
	}
	for _, r := range c.LikelihoodRatios {
		category := string(r.FeatureCategory)
		if lrs[category] == nil {
			lrs[category] = map[string]map[string]float64{}
		}
		if lrs[category][r.FeatureName] == nil {
			lrs[category][r.FeatureName] = map[string]float64{}
		}
		lrs[category][r.FeatureName][r.DiagnosticBucket] = r.LikelihoodRatio
	}

	return &OutputFiles{
		CaseDetailsJSON: CaseDetailsFile{
			CaseID:           c.ID,
			Title:            c.Title,
			Description:      c.Description,
			PrimaryDiagnosis: c.PrimaryDiagnosis,
			CaseDetails:      c.Details,
		},
		APrioriProbabilitiesJSON:    priors,
		FeatureLikelihoodRatiosJSON: lrs,
	}, nil
}

// ExportInfo summarizes the exports available for a stored case.
func (s *CaseService) ExportInfo(ctx context.Context, id int64) (*ExportInfo, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	features := make(map[string]bool)
	buckets := make(map[string]bool)
	for _, r := range c.LikelihoodRatios {
		features[r.FeatureName] = true
		buckets[r.DiagnosticBucket] = true
	}

	return &ExportInfo{
		CaseID:                 c.ID,
		CaseTitle:              c.Title,
		AvailableTiers:         c.Framework.Levels(),
		TotalFeatures:          len(features),
		TotalDiagnosticBuckets: len(buckets),
		AvailableExports:       append([]string(nil), availableExports...),
	}, nil
}

// DebugLRData returns the raw LR records of a case with their matching decisions.
func (s *CaseService) DebugLRData(ctx context.Context, id int64, opts MatrixOptions) (*DebugLRData, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	report, err := s.exports.DebugMatching(c, opts)
	if err != nil {
		return nil, err
	}

	features := CaseDetailFeatures{
		HistoryQuestions: []string{},
		PhysicalExam:     []string{},
		DiagnosticWorkup: []string{},
	}
	for _, q := range c.Details.HistoryQuestions {
		features.HistoryQuestions = append(features.HistoryQuestions, q.Question)
	}
	for _, pe := range c.Details.PhysicalExamFindings {
		features.PhysicalExam = append(features.PhysicalExam, pe.Examination)
	}
	for _, dt := range c.Details.DiagnosticWorkup {
		features.DiagnosticWorkup = append(features.DiagnosticWorkup, dt.Test)
	}

	records := append([]domain.FeatureLikelihoodRatio{}, c.LikelihoodRatios...)
	return &DebugLRData{
		TotalFeatureLRs:     len(records),
		FeatureLRs:          records,
		CaseDetailsFeatures: features,
		Matching:            report,
	}, nil
}

func newCase(title, description, diagnosis string, draft *domain.SessionData) *domain.Case {
	if title == "" {
		title = "Case: " + diagnosis
	}
	return &domain.Case{
		Title:            title,
		Description:      description,
		PrimaryDiagnosis: diagnosis,
		Details:          draft.CaseDetails,
		Framework:        draft.DiagnosticFramework,
		LikelihoodRatios: draft.FeatureLikelihoodRatios,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
