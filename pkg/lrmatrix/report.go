package lrmatrix

import "github.com/medcase-generator/internal/domain"

// MatchEntry records how one LR record's bucket label was resolved.
type MatchEntry struct {
	Index            int                    `json:"index"`
	FeatureName      string                 `json:"feature_name"`
	FeatureCategory  domain.FeatureCategory `json:"feature_category"`
	FeatureLabel     string                 `json:"feature_label"`
	TierLevel        *int                   `json:"tier_level,omitempty"`
	LikelihoodRatio  float64                `json:"likelihood_ratio"`
	OriginalBucket   string                 `json:"original_bucket"`
	NormalizedBucket string                 `json:"normalized_bucket"`
	MatchedBucket    string                 `json:"matched_bucket,omitempty"`
	Strategy         Strategy               `json:"strategy"`
	Score            float64                `json:"score"`
	ProjectedFrom    string                 `json:"projected_from,omitempty"`
	SuggestedBucket  string                 `json:"suggested_bucket,omitempty"`
	SuggestionScore  float64                `json:"suggestion_score"`
}

// Matched reports whether the entry landed in a column.
func (e MatchEntry) Matched() bool {
	return e.Strategy != StrategyNone
}

// MatchReport is the read-only view of every matching decision of one build.
type MatchReport struct {
	TierLevel    int              `json:"tier_level"`
	TierFallback bool             `json:"tier_fallback"`
	FromUnion    bool             `json:"from_union"`
	Strict       bool             `json:"strict"`
	Columns      []string         `json:"columns"`
	Total        int              `json:"total"`
	Matched      int              `json:"matched"`
	Unmatched    int              `json:"unmatched"`
	FilteredOut  int              `json:"filtered_out"`
	ByStrategy   map[Strategy]int `json:"by_strategy"`
	Entries      []MatchEntry     `json:"entries"`
}

func newMatchReport(res *Resolution, strict bool) *MatchReport {
	return &MatchReport{
		TierLevel:    res.TierLevel,
		TierFallback: res.TierFallback,
		FromUnion:    res.FromUnion,
		Strict:       strict,
		Columns:      append([]string{}, res.Columns...),
		ByStrategy:   make(map[Strategy]int),
		Entries:      []MatchEntry{},
	}
}

func (r *MatchReport) add(e MatchEntry) {
	r.Entries = append(r.Entries, e)
	r.Total++
	r.ByStrategy[e.Strategy]++
	if e.Matched() {
		r.Matched++
	} else {
		r.Unmatched++
	}
}

// UnmatchedEntries returns the entries whose bucket label resolved to no column.
func (r *MatchReport) UnmatchedEntries() []MatchEntry {
	out := []MatchEntry{}
	for _, e := range r.Entries {
		if !e.Matched() {
			out = append(out, e)
		}
	}
	return out
}
