package lrmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medcase-generator/internal/domain"
)

func singleTier(names ...string) *Resolution {
	return ResolveBuckets(domain.DiagnosticFramework{{TierLevel: 1, Buckets: buckets(names...)}}, domain.IntPtr(1))
}

func TestMatcher_Match(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	tests := []struct {
		name     string
		res      *Resolution
		label    string
		strict   bool
		bucket   string
		strategy Strategy
	}{
		{
			name:     "exact after normalization",
			res:      singleTier("Cardiovascular", "Respiratory"),
			label:    "cardiovascular",
			bucket:   "Cardiovascular",
			strategy: StrategyExact,
		},
		{
			name:     "exact with tier prefix in strict mode",
			res:      singleTier("Cardiac Causes"),
			label:    "Tier 1: CARDIAC  causes",
			strict:   true,
			bucket:   "Cardiac Causes",
			strategy: StrategyExact,
		},
		{
			name:     "similarity",
			res:      singleTier("Cardiovascular Causes", "Respiratory Causes"),
			label:    "cardiovascular cause",
			bucket:   "Cardiovascular Causes",
			strategy: StrategySimilarity,
		},
		{
			name:     "strict rejects similar label",
			res:      singleTier("Cardiovascular Causes", "Respiratory Causes"),
			label:    "cardiovascular cause",
			strict:   true,
			strategy: StrategyNone,
		},
		{
			name:     "token overlap when similarity is low",
			res:      singleTier("Pulmonary Infection", "Cardiac Causes"),
			label:    "infection pulmonary",
			bucket:   "Pulmonary Infection",
			strategy: StrategyToken,
		},
		{
			name:     "similarity exactly at cutoff",
			res:      singleTier("Cardiovascular"),
			label:    "cardio",
			bucket:   "Cardiovascular",
			strategy: StrategySimilarity,
		},
		{
			name:     "nothing clears thresholds",
			res:      singleTier("Cardiac Causes", "Respiratory Causes"),
			label:    "lung causes",
			strategy: StrategyNone,
		},
		{
			name:     "tie keeps first candidate",
			res:      singleTier("Cardiac A", "Cardiac B"),
			label:    "cardiac",
			bucket:   "Cardiac A",
			strategy: StrategySimilarity,
		},
		{
			name:     "empty label",
			res:      singleTier("Cardiac"),
			label:    "  ",
			strategy: StrategyNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matcher.Match(tt.label, tt.res, tt.strict)

			assert.Equal(t, tt.strategy, m.Strategy)
			assert.Equal(t, tt.bucket, m.Bucket)
			assert.Equal(t, tt.strategy != StrategyNone, m.Found())
		})
	}
}

func TestMatcher_Projection(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	res := ResolveBuckets(testFramework(), domain.IntPtr(1))

	t.Run("cross-tier hit projected onto selected tier", func(t *testing.T) {
		m := matcher.Match("acute coronary syndromes", res, false)

		assert.Equal(t, StrategyProjected, m.Strategy)
		assert.Equal(t, "Coronary Disease", m.Bucket)
		assert.Equal(t, "Acute Coronary Syndrome", m.Via)
		assert.InDelta(t, 44.0/78.0, m.Score, 1e-9)
	})

	t.Run("exact union label is projected", func(t *testing.T) {
		m := matcher.Match("Tier 2: Acute Coronary Syndrome", res, false)

		assert.Equal(t, StrategyProjected, m.Strategy)
		assert.Equal(t, "Coronary Disease", m.Bucket)
	})

	t.Run("strict never projects", func(t *testing.T) {
		m := matcher.Match("Acute Coronary Syndrome", res, true)

		assert.False(t, m.Found())
		assert.Empty(t, m.Via)
	})

	t.Run("projection below cutoff stays unmatched", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ProjectionCutoff = 0.9
		m := NewMatcher(cfg).Match("acute coronary syndromes", res, false)

		assert.False(t, m.Found())
		assert.Equal(t, "Acute Coronary Syndrome", m.Via)
	})
}

func TestMatcher_CutoffsAreConfigurable(t *testing.T) {
	res := singleTier("Cardiovascular")

	cfg := DefaultConfig()
	cfg.SimilarityCutoff = 0.61
	m := NewMatcher(cfg).Match("cardio", res, false)
	assert.False(t, m.Found(), "0.6 similarity must not clear a 0.61 cutoff")

	cfg.SimilarityCutoff = 0.5
	m = NewMatcher(cfg).Match("resp", singleTier("Respiratory"), false)
	assert.True(t, m.Found(), "0.533 similarity clears a 0.5 cutoff")
}

type constantScorer float64

func (c constantScorer) Score(string, string) float64 { return float64(c) }

func TestMatcher_CustomStages(t *testing.T) {
	matcher := NewMatcherWithStages(
		[]Stage{{Scorer: constantScorer(0.7), Cutoff: 0.5, Strategy: StrategySimilarity}},
		nil,
		constantScorer(0.7),
	)

	m := matcher.Match("anything", singleTier("Renal", "Hepatic"), false)

	assert.Equal(t, "Renal", m.Bucket)
	assert.Equal(t, 0.7, m.Score)
}

func TestMatcher_Suggest(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	name, score := matcher.Suggest("cardiovascular cause", singleTier("Respiratory Causes", "Cardiovascular Causes"))
	assert.Equal(t, "Cardiovascular Causes", name)
	assert.InDelta(t, 40.0/41.0, score, 1e-9)

	name, score = matcher.Suggest("anything", singleTier())
	assert.Empty(t, name)
	assert.Zero(t, score)
}
