// Package domain contains the core entities of the medical case generator: generated case
// details, the tiered diagnostic framework with its a priori probabilities, and the feature
// likelihood ratios that drive the simulator's Bayesian updates.
package domain

import (
	"errors"
	"math"
	"sort"
	"time"
)

// FeatureCategory classifies where a clinical feature is elicited during an encounter.
type FeatureCategory string

const (
	CategoryHistory          FeatureCategory = "history"
	CategoryPhysicalExam     FeatureCategory = "physical_exam"
	CategoryDiagnosticWorkup FeatureCategory = "diagnostic_workup"
)

// IsValid reports whether the category is one of the known encounter phases.
func (c FeatureCategory) IsValid() bool {
	switch c {
	case CategoryHistory, CategoryPhysicalExam, CategoryDiagnosticWorkup:
		return true
	default:
		return false
	}
}

// Sentinel errors shared across storage, session and generation layers
var (
	ErrNotFound         = errors.New("not found")
	ErrSessionNotFound  = errors.New("session not found or expired")
	ErrSessionConflict  = errors.New("session modified concurrently")
	ErrGenerationFailed = errors.New("case generation failed")
)

// DefaultPriorTolerance is the accepted deviation of a tier's probability sum from 1.0.
const DefaultPriorTolerance = 0.01

// CaseInput is the brief description a user submits to generate a case.
type CaseInput struct {
	Description      string `json:"description" binding:"required"`
	PrimaryDiagnosis string `json:"primary_diagnosis" binding:"required"`
}

// HistoryQuestion is a question to ask the patient with the expected response.
type HistoryQuestion struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
}

// PhysicalExamFinding is an examination maneuver and what it reveals.
type PhysicalExamFinding struct {
	Examination string `json:"examination"`
	Findings    string `json:"findings"`
}

// DiagnosticTest is an ordered test with its clinical rationale.
type DiagnosticTest struct {
	Test      string `json:"test"`
	Rationale string `json:"rationale"`
}

// CaseDetails is the narrative content of a generated case.
type CaseDetails struct {
	Presentation         string                `json:"presentation"`
	PatientPersonality   string                `json:"patient_personality"`
	HistoryQuestions     []HistoryQuestion     `json:"history_questions"`
	PhysicalExamFindings []PhysicalExamFinding `json:"physical_exam_findings"`
	DiagnosticWorkup     []DiagnosticTest      `json:"diagnostic_workup"`
}

// DiagnosticBucket is a named diagnostic category within a tier.
type DiagnosticBucket struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DiagnosticTier is one level of diagnostic granularity. Tier 1 is the broadest.
type DiagnosticTier struct {
	TierLevel            int                `json:"tier_level"`
	Buckets              []DiagnosticBucket `json:"buckets"`
	APrioriProbabilities map[string]float64 `json:"a_priori_probabilities"`
}

// ProbabilitySum adds the tier's a priori probabilities in a stable key order.
func (t DiagnosticTier) ProbabilitySum() float64 {
	keys := make([]string, 0, len(t.APrioriProbabilities))
	for k := range t.APrioriProbabilities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sum float64
	for _, k := range keys {
		sum += t.APrioriProbabilities[k]
	}
	return sum
}

// DiagnosticFramework is the ordered list of tiers for a case, normally three.
type DiagnosticFramework []DiagnosticTier

// Tier returns the tier with the given level.
func (f DiagnosticFramework) Tier(level int) (DiagnosticTier, bool) {
	for _, t := range f {
		if t.TierLevel == level {
			return t, true
		}
	}
	return DiagnosticTier{}, false
}

// Levels returns the distinct tier levels in ascending order.
func (f DiagnosticFramework) Levels() []int {
	seen := make(map[int]bool, len(f))
	levels := make([]int, 0, len(f))
	for _, t := range f {
		if !seen[t.TierLevel] {
			seen[t.TierLevel] = true
			levels = append(levels, t.TierLevel)
		}
	}
	sort.Ints(levels)
	return levels
}

// ProbabilityWarnings lists tiers whose probabilities do not sum to 1.0 within tolerance.
// Generation only reports these; the priors export rejects them.
func (f DiagnosticFramework) ProbabilityWarnings(tolerance float64) []*ProbabilitySumError {
	var warnings []*ProbabilitySumError
	for _, t := range f {
		sum := t.ProbabilitySum()
		if math.Abs(sum-1.0) > tolerance {
			warnings = append(warnings, &ProbabilitySumError{TierLevel: t.TierLevel, Sum: sum, Tolerance: tolerance})
		}
	}
	return warnings
}

// FeatureLikelihoodRatio ties a clinical feature to a diagnostic bucket. TierLevel is optional
// because edited or imported records may omit it.
type FeatureLikelihoodRatio struct {
	FeatureName      string          `json:"feature_name"`
	FeatureCategory  FeatureCategory `json:"feature_category"`
	DiagnosticBucket string          `json:"diagnostic_bucket"`
	TierLevel        *int            `json:"tier_level,omitempty"`
	LikelihoodRatio  float64         `json:"likelihood_ratio"`
}

// Case is a persisted, finalized training case.
type Case struct {
	ID               int64                    `json:"case_id"`
	Title            string                   `json:"title"`
	Description      string                   `json:"description"`
	PrimaryDiagnosis string                   `json:"primary_diagnosis"`
	Details          CaseDetails              `json:"case_details"`
	Framework        DiagnosticFramework      `json:"diagnostic_framework"`
	LikelihoodRatios []FeatureLikelihoodRatio `json:"feature_likelihood_ratios"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// CaseSummary is the listing view of a case.
type CaseSummary struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	PrimaryDiagnosis string `json:"primary_diagnosis"`
}

// SessionData is the editable draft of a case held in the session store.
type SessionData struct {
	CaseDetails             CaseDetails              `json:"case_details"`
	DiagnosticFramework     DiagnosticFramework      `json:"diagnostic_framework"`
	FeatureLikelihoodRatios []FeatureLikelihoodRatio `json:"feature_likelihood_ratios"`
	OriginalInput           CaseInput                `json:"original_input"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
