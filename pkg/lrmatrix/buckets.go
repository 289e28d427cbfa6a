package lrmatrix

import (
	"github.com/medcase-generator/internal/domain"
)

// Index maps normalized bucket names to their display names. Keys keep first-seen order,
// which is the candidate order for fuzzy matching.
type Index struct {
	keys    []string
	display map[string]string
}

func newIndex(names []string) *Index {
	ix := &Index{display: make(map[string]string, len(names))}
	for _, name := range names {
		key := Normalize(name)
		if key == "" {
			continue
		}
		if _, exists := ix.display[key]; exists {
			continue
		}
		ix.keys = append(ix.keys, key)
		ix.display[key] = name
	}
	return ix
}

// Lookup returns the display name for a normalized key.
func (ix *Index) Lookup(key string) (string, bool) {
	name, ok := ix.display[key]
	return name, ok
}

// Keys returns the normalized keys in candidate order.
func (ix *Index) Keys() []string {
	return append([]string(nil), ix.keys...)
}

// Len returns the number of distinct normalized names.
func (ix *Index) Len() int {
	return len(ix.keys)
}

// Resolution is the outcome of selecting the bucket columns for one matrix build.
type Resolution struct {
	// Columns are the bucket display names in column order.
	Columns []string
	// TierLevel is the tier the columns were taken from, 0 when no tier was requested.
	TierLevel int
	// TierFallback is set when the requested tier was absent and the first tier was used.
	TierFallback bool
	// FromUnion is set when the columns are the union across all tiers.
	FromUnion bool

	TierIndex  *Index
	UnionIndex *Index
}

// SelectTier returns the tier with the given level, or the first tier when it is absent.
// found reports an exact level match; ok is false only for an empty framework.
func SelectTier(fw domain.DiagnosticFramework, level int) (tier domain.DiagnosticTier, found, ok bool) {
	if t, exists := fw.Tier(level); exists {
		return t, true, true
	}
	if len(fw) == 0 {
		return domain.DiagnosticTier{}, false, false
	}
	return fw[0], false, true
}

// ResolveBuckets selects the ordered bucket columns for the requested tier. A nil tier, or a
// tier without usable names, resolves to the union of every tier's buckets.
func ResolveBuckets(fw domain.DiagnosticFramework, tierLevel *int) *Resolution {
	union := unionBucketNames(fw)
	res := &Resolution{UnionIndex: newIndex(union)}

	var names []string
	if tierLevel != nil {
		if tier, found, ok := SelectTier(fw, *tierLevel); ok {
			res.TierLevel = tier.TierLevel
			res.TierFallback = !found
			names = tierBucketNames(tier)
		}
	}

	if len(names) == 0 {
		names = union
		res.FromUnion = true
	}

	res.Columns = names
	res.TierIndex = newIndex(names)
	return res
}

// tierBucketNames returns the tier's non-blank bucket names in source order. Names that
// normalize to the same key share one column under the first-seen display name.
func tierBucketNames(tier domain.DiagnosticTier) []string {
	return distinctNames(make(map[string]bool, len(tier.Buckets)), nil, tier)
}

func unionBucketNames(fw domain.DiagnosticFramework) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tier := range fw {
		names = distinctNames(seen, names, tier)
	}
	return names
}

func distinctNames(seen map[string]bool, names []string, tier domain.DiagnosticTier) []string {
	for _, b := range tier.Buckets {
		key := Normalize(b.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, b.Name)
	}
	return names
}
