package lrmatrix

import "github.com/medcase-generator/internal/domain"

// ExtractPriors returns a copy of the a priori probabilities of the tier with the given level,
// falling back to the first tier. An empty framework yields an empty map. The probability sum
// is not checked here.
func ExtractPriors(fw domain.DiagnosticFramework, tierLevel int) map[string]float64 {
	priors := make(map[string]float64)
	tier, _, ok := SelectTier(fw, tierLevel)
	if !ok {
		return priors
	}
	for name, p := range tier.APrioriProbabilities {
		priors[name] = p
	}
	return priors
}
