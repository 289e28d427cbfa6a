package export

import "fmt"

func MatrixCSVName(caseID int64) string {
	return fmt.Sprintf("case_%d_lr_matrix.csv", caseID)
}

func MatrixSpreadsheetName(caseID int64) string {
	return fmt.Sprintf("case_%d_lr_matrix.xlsx", caseID)
}

func PriorsName(caseID int64, tierLevel int) string {
	return fmt.Sprintf("case_%d_tier_%d_priors.json", caseID, tierLevel)
}

func SummaryName(caseID int64) string {
	return fmt.Sprintf("case_%d_summary.txt", caseID)
}

func BundleName(caseID int64) string {
	return fmt.Sprintf("case_%d_simulator_export.zip", caseID)
}
