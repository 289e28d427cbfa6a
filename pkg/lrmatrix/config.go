package lrmatrix

import "fmt"

// Config carries every threshold and default the builder uses. It is passed explicitly so
// identical inputs always produce identical tables.
type Config struct {
	SimilarityCutoff float64 // minimum sequence similarity for a fuzzy match
	TokenCutoff      float64 // minimum token Jaccard when similarity finds nothing
	ProjectionCutoff float64 // minimum similarity when projecting a cross-tier hit back onto the tier
	Precision        int     // decimal places kept for LR values
	MinLR            float64 // floor applied to every cell
	NeutralLR        float64 // value of a feature/bucket pair without evidence
}

// DefaultConfig returns the standard matching thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityCutoff: 0.6,
		TokenCutoff:      0.5,
		ProjectionCutoff: 0.4,
		Precision:        2,
		MinLR:            0.01,
		NeutralLR:        1.0,
	}
}

// Validate checks the thresholds are usable.
func (c Config) Validate() error {
	cutoffs := []struct {
		name  string
		value float64
	}{
		{"similarity_cutoff", c.SimilarityCutoff},
		{"token_cutoff", c.TokenCutoff},
		{"projection_cutoff", c.ProjectionCutoff},
	}
	for _, co := range cutoffs {
		if co.value < 0 || co.value > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", co.name, co.value)
		}
	}
	if c.Precision < 0 || c.Precision > 10 {
		return fmt.Errorf("precision must be within [0, 10], got %d", c.Precision)
	}
	if c.MinLR <= 0 {
		return fmt.Errorf("min_lr must be positive, got %v", c.MinLR)
	}
	if c.NeutralLR < c.MinLR {
		return fmt.Errorf("neutral_lr must not be below min_lr, got %v", c.NeutralLR)
	}
	return nil
}
