package llm

import (
	"fmt"
	"strings"

	"github.com/medcase-generator/internal/domain"
)

type prompt struct {
	system     string
	user       string
	schemaName string
	schema     map[string]interface{}
}

func caseDetailsPrompt(description, primaryDiagnosis string) prompt {
	user := fmt.Sprintf(`Write a complete emergency medicine teaching case from this brief description.

Brief description: %s
Primary diagnosis: %s

The case must be realistic and useful for training. Provide:
- a detailed presentation covering demographics, chief complaint and initial presentation
- the patient's personality and way of communicating
- 5 to 7 history questions, each with the answer the patient would give
- 5 to 6 physical examination findings
- 4 to 5 diagnostic tests, each with its clinical rationale`, description, primaryDiagnosis)

	return prompt{
		system:     "You are an experienced emergency physician who writes realistic teaching cases with accurate clinical detail.",
		user:       user,
		schemaName: "case_details",
		schema:     caseDetailsSchema(),
	}
}

func frameworkPrompt(details *domain.CaseDetails, primaryDiagnosis string) prompt {
	user := fmt.Sprintf(`Build a differential diagnosis framework of 3 tiers for this case, each tier refining the one before it.

Primary diagnosis: %s
Presentation: %s

Tiers:
- Tier 1: broad organ-system categories such as cardiovascular, respiratory, gastrointestinal, neurological or infectious
- Tier 2: narrower categories inside those systems
- Tier 3: specific diagnoses

Give every tier 4 to 6 clinically distinct buckets. Assign a priori probabilities that an emergency physician would expect in a typical emergency department population and that sum to 1.0 within each tier; the primary diagnosis should carry more weight in the tier where it belongs. List the probabilities as entries whose bucket_name repeats one bucket name exactly.`, primaryDiagnosis, details.Presentation)

	return prompt{
		system:     "You are an emergency physician skilled in diagnostic reasoning and Bayesian probability. Produce realistic diagnostic frameworks.",
		user:       user,
		schemaName: "diagnostic_framework",
		schema:     frameworkSchema(),
	}
}

func likelihoodRatiosPrompt(details *domain.CaseDetails, framework domain.DiagnosticFramework) prompt {
	var features []string
	for _, q := range details.HistoryQuestions {
		features = append(features, "History: "+q.Question)
	}
	for _, f := range details.PhysicalExamFindings {
		features = append(features, "Physical: "+f.Examination)
	}
	for _, t := range details.DiagnosticWorkup {
		features = append(features, "Diagnostic: "+t.Test)
	}

	var buckets []string
	for _, tier := range framework {
		for _, b := range tier.Buckets {
			buckets = append(buckets, fmt.Sprintf("Tier %d: %s", tier.TierLevel, b.Name))
		}
	}

	user := fmt.Sprintf(`Assign evidence-based likelihood ratios linking the features of this case to its diagnostic buckets.

Features:
%s

Diagnostic buckets:
%s

For each feature give likelihood ratios for the 2 to 4 buckets it discriminates best, across tiers. Cover history, physical_exam and diagnostic_workup features. Prefer published values and avoid ratios close to 1.0. Use the bucket names exactly as listed.

Reference ranges:
- strong positive: 5 to 10 or more
- moderate positive: 2 to 5
- weak positive: 1.2 to 2
- weak negative: 0.5 to 0.8
- strong negative: 0.1 to 0.5`, strings.Join(features, "\n"), strings.Join(buckets, "\n"))

	return prompt{
		system:     "You are an emergency physician versed in evidence-based diagnosis. Produce likelihood ratios grounded in the medical literature.",
		user:       user,
		schemaName: "feature_likelihood_ratios",
		schema:     likelihoodRatiosSchema(),
	}
}
