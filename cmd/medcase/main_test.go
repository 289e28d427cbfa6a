package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcase-generator/pkg/lrmatrix"
)

const caseYAML = `
case_id: 12
primary_diagnosis: Pulmonary embolism
case_details:
  presentation: 62-year-old with sudden dyspnea.
  patient_personality: Calm.
  history_questions:
    - question: Any recent travel?
      expected_answer: Long flight last week.
diagnostic_framework:
  - tier_level: 1
    buckets:
      - name: Pulmonary Causes
      - name: Cardiac Causes
    a_priori_probabilities:
      Pulmonary Causes: 0.7
      Cardiac Causes: 0.3
  - tier_level: 2
    buckets:
      - name: Pulmonary Embolism
      - name: Heart Failure
    a_priori_probabilities:
      Pulmonary Embolism: 0.5
      Heart Failure: 0.3
feature_likelihood_ratios:
  - feature_name: Recent travel
    feature_category: history
    diagnostic_bucket: Pulmonary Causes
    tier_level: 1
    likelihood_ratio: 3.0
  - feature_name: Recent travel
    feature_category: history
    diagnostic_bucket: cardiac cause
    tier_level: 1
    likelihood_ratio: 0.8
`

func writeCase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(caseYAML), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MEDCASE_STRICT_MATCHING", "")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "fatal"))
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	file := writeCase(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "export", "-f", file, "-o", outDir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(outDir, "case_12_lr_matrix.csv"),
		filepath.Join(outDir, "case_12_lr_matrix.xlsx"),
		filepath.Join(outDir, "case_12_tier_1_priors.json"),
		filepath.Join(outDir, "case_12_summary.txt"),
	}
	if diff := cmp.Diff(want, strings.Fields(out)); diff != "" {
		t.Errorf("written files (-want +got):\n%s", diff)
	}

	csv, err := os.ReadFile(want[0])
	require.NoError(t, err)
	assert.Equal(t, "Feature,Pulmonary Causes,Cardiac Causes\nPatient Has: recent travel,3.0,0.8\n", string(csv))

	var priors map[string]float64
	raw, err := os.ReadFile(want[2])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &priors))
	assert.Equal(t, map[string]float64{"Pulmonary Causes": 0.7, "Cardiac Causes": 0.3}, priors)
}

func TestExportCommand_Zip(t *testing.T) {
	outDir := t.TempDir()

	out, err := run(t, "export", "-f", writeCase(t), "-o", outDir, "--zip")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "case_12_simulator_export.zip")+"\n", out)
	assert.FileExists(t, filepath.Join(outDir, "case_12_simulator_export.zip"))
}

func TestExportCommand_RejectsOffTolerancePriors(t *testing.T) {
	_, err := run(t, "export", "-f", writeCase(t), "-o", t.TempDir(), "--tier", "2")
	assert.ErrorContains(t, err, "prior probabilities for tier 2 sum to 0.800")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", "-f", writeCase(t), "--tier", "1")
	require.NoError(t, err)

	var result lrmatrix.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
}

func TestDebugCommand(t *testing.T) {
	out, err := run(t, "debug", "-f", writeCase(t), "--tier", "1", "--strict")
	require.NoError(t, err)

	var report lrmatrix.MatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Strict)
	assert.Equal(t, []string{"Pulmonary Causes", "Cardiac Causes"}, report.Columns)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Unmatched)
}

func TestSummaryCommand(t *testing.T) {
	out, err := run(t, "summary", "-f", writeCase(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "CASE ID: 12\nPRIMARY DIAGNOSIS: Pulmonary embolism\n"))
	assert.Contains(t, out, "Question: Any recent travel?\nPatient Response: Long flight last week.\n")
}

func TestCommands_RequireFile(t *testing.T) {
	_, err := run(t, "summary")
	assert.EqualError(t, err, "--file is required")
}
