// Package lrmatrix builds the feature × diagnostic-bucket likelihood ratio matrix consumed by
// the case simulator. It reconciles loosely named bucket labels against the diagnostic
// framework and performs no I/O.
package lrmatrix

import (
	"fmt"
	"math"
	"sort"

	"github.com/medcase-generator/internal/domain"
)

// Request is the input of one matrix build.
type Request struct {
	Framework domain.DiagnosticFramework
	Records   []domain.FeatureLikelihoodRatio
	// TierLevel selects the bucket columns; nil uses every tier's buckets.
	TierLevel *int
	// Strict disables fuzzy and cross-tier matching.
	Strict bool
}

// Result holds the built table and the matching decisions behind it.
type Result struct {
	Table      *Table
	Report     *MatchReport
	Resolution *Resolution
}

// Builder assembles LR matrices. It holds no per-build state and is safe for concurrent use.
type Builder struct {
	cfg     Config
	matcher *Matcher
}

// NewBuilder creates a builder with the standard matcher for cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, matcher: NewMatcher(cfg)}
}

// NewBuilderWithMatcher creates a builder using a custom matcher.
func NewBuilderWithMatcher(cfg Config, matcher *Matcher) *Builder {
	return &Builder{cfg: cfg, matcher: matcher}
}

// Build validates the request shape, resolves the bucket columns, matches every LR record and
// returns the clamped, label-sorted table.
func (b *Builder) Build(req Request) (*Result, error) {
	if err := req.Framework.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateLikelihoodRatios(req.Records); err != nil {
		return nil, err
	}

	res := ResolveBuckets(req.Framework, req.TierLevel)
	report := newMatchReport(res, req.Strict)

	columns := make(map[string]int, len(res.Columns))
	for i, name := range res.Columns {
		columns[name] = i
	}

	// filtered against the resolved tier, which differs from the requested one after a fallback
	filterByTier := req.TierLevel != nil && !res.FromUnion && anyTierLevel(req.Records)

	values := make(map[string][]float64)
	var labels []string
	for i, rec := range req.Records {
		if filterByTier && rec.TierLevel != nil && *rec.TierLevel != res.TierLevel {
			report.FilteredOut++
			continue
		}

		label := StandardizeFeature(rec.FeatureName, rec.FeatureCategory)
		row, seen := values[label]
		if !seen {
			row = make([]float64, len(res.Columns))
			for j := range row {
				row[j] = b.cfg.NeutralLR
			}
			values[label] = row
			labels = append(labels, label)
		}

		m := b.matcher.Match(rec.DiagnosticBucket, res, req.Strict)
		entry := MatchEntry{
			Index:            i,
			FeatureName:      rec.FeatureName,
			FeatureCategory:  rec.FeatureCategory,
			FeatureLabel:     label,
			TierLevel:        rec.TierLevel,
			LikelihoodRatio:  rec.LikelihoodRatio,
			OriginalBucket:   rec.DiagnosticBucket,
			NormalizedBucket: Normalize(rec.DiagnosticBucket),
			Strategy:         m.Strategy,
			Score:            m.Score,
			ProjectedFrom:    m.Via,
		}
		if m.Found() {
			entry.MatchedBucket = m.Bucket
			row[columns[m.Bucket]] = round(rec.LikelihoodRatio, b.cfg.Precision)
		}
		entry.SuggestedBucket, entry.SuggestionScore = b.matcher.Suggest(rec.DiagnosticBucket, res)
		report.add(entry)
	}

	sort.Strings(labels)
	rows := make([]Row, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, Row{Feature: label, Values: values[label]})
	}

	header := append([]string{FeatureColumn}, res.Columns...)
	table, err := NewTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("assembling matrix: %w", err)
	}

	return &Result{
		Table:      table.Clamp(b.cfg.MinLR),
		Report:     report,
		Resolution: res,
	}, nil
}

func anyTierLevel(records []domain.FeatureLikelihoodRatio) bool {
	for _, r := range records {
		if r.TierLevel != nil {
			return true
		}
	}
	return false
}

func round(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}
