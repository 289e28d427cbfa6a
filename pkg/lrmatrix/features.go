package lrmatrix

import (
	"strings"

	"github.com/medcase-generator/internal/domain"
)

// Row label prefixes understood by the simulator
const (
	historyPrefix      = "Patient Has"
	physicalExamPrefix = "Physical Finding"
	workupPrefix       = "Test Result"
	otherPrefix        = "Clinical Feature"
)

type featureRule struct {
	prefix  string
	fillers []string
}

// Longer fillers come first so "physical exam:" is not cut down to "exam:".
var featureRules = map[domain.FeatureCategory]featureRule{
	domain.CategoryHistory: {
		prefix:  historyPrefix,
		fillers: []string{"history:", "question:"},
	},
	domain.CategoryPhysicalExam: {
		prefix:  physicalExamPrefix,
		fillers: []string{"physical exam:", "examination:", "physical:"},
	},
	domain.CategoryDiagnosticWorkup: {
		prefix:  workupPrefix,
		fillers: []string{"diagnostic test:", "test:", "diagnostic:"},
	},
}

// StandardizeFeature maps a raw feature name and category to the matrix row label.
func StandardizeFeature(name string, category domain.FeatureCategory) string {
	cleaned := strings.TrimSpace(strings.ToLower(name))

	rule, ok := featureRules[domain.FeatureCategory(strings.ToLower(strings.TrimSpace(string(category))))]
	if !ok {
		return otherPrefix + ": " + cleaned
	}
	return rule.prefix + ": " + stripFillers(cleaned, rule.fillers)
}

func stripFillers(s string, fillers []string) string {
	for stripped := true; stripped; {
		stripped = false
		for _, f := range fillers {
			if strings.HasPrefix(s, f) {
				s = strings.TrimSpace(strings.TrimPrefix(s, f))
				stripped = true
			}
		}
	}
	return s
}
