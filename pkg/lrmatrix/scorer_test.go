package lrmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceScorer(t *testing.T) {
	scorer := SequenceScorer{}

	tests := []struct {
		name      string
		query     string
		candidate string
		expected  float64
	}{
		{"identical", "cardiac causes", "cardiac causes", 1.0},
		{"plural drift", "cardiovascular cause", "cardiovascular causes", 40.0 / 41.0},
		{"prefix", "cardio", "cardiovascular", 0.6},
		{"nothing shared", "abc", "xyz", 0.0},
		{"empty query", "", "cardiac", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.Score(tt.query, tt.candidate), 1e-9)
		})
	}
}

func TestTokenScorer(t *testing.T) {
	scorer := TokenScorer{}

	tests := []struct {
		name      string
		query     string
		candidate string
		expected  float64
	}{
		{"reordered words", "infection pulmonary", "pulmonary infection", 1.0},
		{"one of three", "cardiovascular cause", "cardiovascular causes", 1.0 / 3.0},
		{"punctuation ignored", "cardiac (acs)", "acs cardiac", 1.0},
		{"half", "pulmonary embolism", "pulmonary", 0.5},
		{"disjoint", "renal", "hepatic", 0.0},
		{"empty", "", "hepatic", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.Score(tt.query, tt.candidate), 1e-9)
		})
	}
}
