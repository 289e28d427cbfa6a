package llm

import "sort"

// Strict structured outputs require every property to be listed as required and
// additionalProperties to be false on every object.

func object(properties map[string]interface{}) map[string]interface{} {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func arrayOf(items map[string]interface{}, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       items,
		"description": description,
	}
}

func field(kind, description string) map[string]interface{} {
	return map[string]interface{}{"type": kind, "description": description}
}

func caseDetailsSchema() map[string]interface{} {
	return object(map[string]interface{}{
		"presentation":        field("string", "Detailed case presentation with patient demographics, chief complaint and initial presentation"),
		"patient_personality": field("string", "Patient communication style and personality traits"),
		"history_questions": arrayOf(object(map[string]interface{}{
			"question":        field("string", "A specific history question to ask the patient"),
			"expected_answer": field("string", "The expected response from the patient"),
		}), "History questions with expected patient responses"),
		"physical_exam_findings": arrayOf(object(map[string]interface{}{
			"examination": field("string", "The physical exam component or maneuver"),
			"findings":    field("string", "The expected findings from this examination"),
		}), "Physical examination findings"),
		"diagnostic_workup": arrayOf(object(map[string]interface{}{
			"test":      field("string", "The diagnostic test (lab, imaging, ECG)"),
			"rationale": field("string", "Clinical rationale for ordering this test"),
		}), "Diagnostic tests and their rationales"),
	})
}

func frameworkSchema() map[string]interface{} {
	return object(map[string]interface{}{
		"tiers": arrayOf(object(map[string]interface{}{
			"tier_level": field("integer", "Tier level (1=broad, 2=intermediate, 3=specific)"),
			"buckets": arrayOf(object(map[string]interface{}{
				"name":        field("string", "Name of the diagnostic category"),
				"description": field("string", "Conditions that fall into this category"),
			}), "Diagnostic categories for this tier"),
			"a_priori_probabilities": arrayOf(object(map[string]interface{}{
				"bucket_name": field("string", "Name of the diagnostic bucket"),
				"probability": field("number", "A priori probability for this bucket"),
			}), "Probability distribution over the buckets, summing to 1.0"),
		}), "Three tiers of diagnostic categories with probabilities"),
	})
}

func likelihoodRatiosSchema() map[string]interface{} {
	return object(map[string]interface{}{
		"feature_likelihood_ratios": arrayOf(object(map[string]interface{}{
			"feature_name":      field("string", "Name of the clinical feature"),
			"feature_category":  field("string", "Category of the feature: history, physical_exam or diagnostic_workup"),
			"diagnostic_bucket": field("string", "The diagnostic category this likelihood ratio applies to"),
			"tier_level":        field("integer", "Diagnostic tier this applies to (1, 2 or 3)"),
			"likelihood_ratio":  field("number", "Likelihood ratio (>1 increases probability, <1 decreases it)"),
		}), "All feature likelihood ratios"),
	})
}
