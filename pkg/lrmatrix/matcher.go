package lrmatrix

// Strategy names the rule that resolved a bucket label.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategySimilarity Strategy = "similarity"
	StrategyToken      Strategy = "token"
	StrategyProjected  Strategy = "projected"
	StrategyNone       Strategy = "none"
)

// Stage is one fuzzy pass: a scorer and the minimum score it must reach.
type Stage struct {
	Scorer   Scorer
	Cutoff   float64
	Strategy Strategy
}

// Match is the matcher's decision for one bucket label.
type Match struct {
	Bucket   string
	Strategy Strategy
	Score    float64
	// Via is the union bucket a projected match went through.
	Via string
}

// Found reports whether the label resolved to a column.
func (m Match) Found() bool {
	return m.Strategy != StrategyNone
}

// Matcher reconciles free-text bucket labels against resolved bucket columns.
type Matcher struct {
	stages     []Stage
	projection []Stage
	suggester  Scorer
}

// NewMatcher builds the standard matcher: sequence similarity, then token overlap.
func NewMatcher(cfg Config) *Matcher {
	seq, tok := SequenceScorer{}, TokenScorer{}
	return NewMatcherWithStages(
		[]Stage{
			{Scorer: seq, Cutoff: cfg.SimilarityCutoff, Strategy: StrategySimilarity},
			{Scorer: tok, Cutoff: cfg.TokenCutoff, Strategy: StrategyToken},
		},
		[]Stage{
			{Scorer: seq, Cutoff: cfg.ProjectionCutoff, Strategy: StrategySimilarity},
			{Scorer: tok, Cutoff: cfg.TokenCutoff, Strategy: StrategyToken},
		},
		seq,
	)
}

// NewMatcherWithStages builds a matcher from custom fuzzy stages. projection is used when a
// cross-tier hit is mapped back onto the selected tier; suggester ranks the closest bucket
// reported for unmatched labels.
func NewMatcherWithStages(stages, projection []Stage, suggester Scorer) *Matcher {
	return &Matcher{stages: stages, projection: projection, suggester: suggester}
}

// Match resolves label against the resolution's tier columns. In strict mode only exact
// normalized matches count.
func (m *Matcher) Match(label string, res *Resolution, strict bool) Match {
	query := Normalize(label)

	if name, ok := res.TierIndex.Lookup(query); ok {
		return Match{Bucket: name, Strategy: StrategyExact, Score: 1}
	}
	if strict || query == "" {
		return Match{Strategy: StrategyNone}
	}

	if hit, ok := closest(query, res.TierIndex, m.stages); ok {
		return hit
	}

	// Fall back to every tier's buckets and project the hit onto the selected tier.
	via, ok := res.UnionIndex.Lookup(query)
	if !ok {
		hit, found := closest(query, res.UnionIndex, m.stages)
		if !found {
			return Match{Strategy: StrategyNone}
		}
		via = hit.Bucket
	}

	viaKey := Normalize(via)
	if name, ok := res.TierIndex.Lookup(viaKey); ok {
		return Match{Bucket: name, Strategy: StrategyProjected, Score: 1, Via: via}
	}
	if hit, ok := closest(viaKey, res.TierIndex, m.projection); ok {
		hit.Strategy = StrategyProjected
		hit.Via = via
		return hit
	}
	return Match{Strategy: StrategyNone, Via: via}
}

// Suggest returns the tier column most similar to label regardless of cutoffs, for
// troubleshooting unmatched labels.
func (m *Matcher) Suggest(label string, res *Resolution) (string, float64) {
	query := Normalize(label)
	best, bestScore := "", -1.0
	for _, key := range res.TierIndex.keys {
		score := m.suggester.Score(query, key)
		if score > bestScore {
			best, bestScore = key, score
		}
	}
	if best == "" {
		return "", 0
	}
	name, _ := res.TierIndex.Lookup(best)
	return name, bestScore
}

// closest runs the stages in order and returns the first stage's best candidate. Ties keep
// the earliest candidate.
func closest(query string, ix *Index, stages []Stage) (Match, bool) {
	for _, st := range stages {
		best, bestScore := "", -1.0
		for _, key := range ix.keys {
			score := st.Scorer.Score(query, key)
			if score >= st.Cutoff && score > bestScore {
				best, bestScore = key, score
			}
		}
		if best != "" {
			name, _ := ix.Lookup(best)
			return Match{Bucket: name, Strategy: st.Strategy, Score: bestScore}, true
		}
	}
	return Match{}, false
}
