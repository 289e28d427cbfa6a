package export

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/medcase-generator/internal/domain"
)

// RenderPriors encodes the bucket → probability map as a flat, indented JSON object. Keys are
// emitted in sorted order.
func RenderPriors(priors map[string]float64) ([]byte, error) {
	if priors == nil {
		priors = map[string]float64{}
	}
	data, err := json.MarshalIndent(priors, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding priors: %w", err)
	}
	return data, nil
}

// CheckPriorSum returns a *domain.ProbabilitySumError carrying the actual sum when the priors
// do not add up to 1.0 within tolerance.
func CheckPriorSum(priors map[string]float64, tierLevel int, tolerance float64) error {
	sum := domain.DiagnosticTier{APrioriProbabilities: priors}.ProbabilitySum()
	if math.Abs(sum-1.0) > tolerance {
		return &domain.ProbabilitySumError{TierLevel: tierLevel, Sum: sum, Tolerance: tolerance}
	}
	return nil
}
