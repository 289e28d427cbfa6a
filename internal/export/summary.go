package export

import (
	"fmt"
	"strings"

	"github.com/medcase-generator/internal/domain"
)

// RenderCaseSummary renders the case as the plain-text transcript the simulator loads. The
// case id header line is only written when caseID is set.
func RenderCaseSummary(details domain.CaseDetails, primaryDiagnosis string, caseID *int64) string {
	var lines []string

	if caseID != nil {
		lines = append(lines, fmt.Sprintf("CASE ID: %d", *caseID))
	}
	lines = append(lines, "PRIMARY DIAGNOSIS: "+primaryDiagnosis, "")

	lines = append(lines, "CASE PRESENTATION:", details.Presentation, "")
	lines = append(lines, "PATIENT COMMUNICATION STYLE:", details.PatientPersonality, "")

	lines = append(lines, "HISTORY FINDINGS:")
	for _, q := range details.HistoryQuestions {
		lines = append(lines, "Question: "+q.Question, "Patient Response: "+q.ExpectedAnswer, "")
	}

	lines = append(lines, "PHYSICAL EXAMINATION FINDINGS:")
	for _, pe := range details.PhysicalExamFindings {
		lines = append(lines, pe.Examination+": "+pe.Findings)
	}
	lines = append(lines, "")

	lines = append(lines, "DIAGNOSTIC WORKUP:")
	for _, dt := range details.DiagnosticWorkup {
		lines = append(lines, dt.Test+": "+dt.Rationale)
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}
