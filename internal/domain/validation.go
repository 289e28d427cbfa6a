package domain

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that both inputs needed for generation are present.
func (in CaseInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", "is required", in.Description)
	}
	if strings.TrimSpace(in.PrimaryDiagnosis) == "" {
		return NewValidationError("primary_diagnosis", "is required", in.PrimaryDiagnosis)
	}
	return nil
}

// Validate checks the structure of the case narrative. Empty lists are allowed.
func (d CaseDetails) Validate() error {
	if strings.TrimSpace(d.Presentation) == "" {
		return NewValidationError("case_details.presentation", "is required", d.Presentation)
	}
	for i, q := range d.HistoryQuestions {
		if strings.TrimSpace(q.Question) == "" {
			return NewValidationError(fmt.Sprintf("case_details.history_questions[%d].question", i), "is required", q.Question)
		}
	}
	for i, pe := range d.PhysicalExamFindings {
		if strings.TrimSpace(pe.Examination) == "" {
			return NewValidationError(fmt.Sprintf("case_details.physical_exam_findings[%d].examination", i), "is required", pe.Examination)
		}
	}
	for i, dt := range d.DiagnosticWorkup {
		if strings.TrimSpace(dt.Test) == "" {
			return NewValidationError(fmt.Sprintf("case_details.diagnostic_workup[%d].test", i), "is required", dt.Test)
		}
	}
	return nil
}

// Validate checks tier levels and probability values. Bucket names may be blank; the
// resolver skips them.
func (f DiagnosticFramework) Validate() error {
	seen := make(map[int]bool, len(f))
	for i, t := range f {
		field := fmt.Sprintf("diagnostic_framework[%d].tier_level", i)
		if t.TierLevel <= 0 {
			return NewValidationError(field, "must be a positive integer", t.TierLevel)
		}
		if seen[t.TierLevel] {
			return NewValidationError(field, "must be unique within the framework", t.TierLevel)
		}
		seen[t.TierLevel] = true

		for name, p := range t.APrioriProbabilities {
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
				return NewValidationError(
					fmt.Sprintf("diagnostic_framework[%d].a_priori_probabilities[%q]", i, name),
					"must be a non-negative number", fmt.Sprint(p))
			}
		}
	}
	return nil
}

// ValidateLikelihoodRatios checks every record carries the fields the matrix builder needs.
// Non-positive ratios are accepted here; the builder clamps them.
func ValidateLikelihoodRatios(records []FeatureLikelihoodRatio) error {
	for i, r := range records {
		prefix := fmt.Sprintf("feature_likelihood_ratios[%d]", i)
		if strings.TrimSpace(r.FeatureName) == "" {
			return NewValidationError(prefix+".feature_name", "is required", r.FeatureName)
		}
		if strings.TrimSpace(string(r.FeatureCategory)) == "" {
			return NewValidationError(prefix+".feature_category", "is required", r.FeatureCategory)
		}
		if strings.TrimSpace(r.DiagnosticBucket) == "" {
			return NewValidationError(prefix+".diagnostic_bucket", "is required", r.DiagnosticBucket)
		}
		if r.TierLevel != nil && *r.TierLevel <= 0 {
			return NewValidationError(prefix+".tier_level", "must be a positive integer", *r.TierLevel)
		}
		if math.IsNaN(r.LikelihoodRatio) || math.IsInf(r.LikelihoodRatio, 0) {
			return NewValidationError(prefix+".likelihood_ratio", "must be a finite number", fmt.Sprint(r.LikelihoodRatio))
		}
	}
	return nil
}

// Validate checks every part of a session draft.
func (s *SessionData) Validate() error {
	if err := s.CaseDetails.Validate(); err != nil {
		return err
	}
	if err := s.DiagnosticFramework.Validate(); err != nil {
		return err
	}
	return ValidateLikelihoodRatios(s.FeatureLikelihoodRatios)
}
