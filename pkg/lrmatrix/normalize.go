package lrmatrix

import (
	"regexp"
	"strings"
)

// Generated bucket lists are often echoed back as "Tier 2: Cardiac Causes".
var tierPrefixPattern = regexp.MustCompile(`^tier\s*\d+\s*:`)

// Normalize canonicalizes a bucket label into its matching key: lowercase, trimmed, without a
// leading "tier <n>:" prefix and with internal whitespace collapsed to single spaces.
func Normalize(label string) string {
	s := strings.TrimSpace(strings.ToLower(label))
	s = tierPrefixPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
