// Package normalizers canonicalizes gym names before they are scored
package normalizers

import "strings"

// NormalizeGymName normalizes a gym name with the default lexicon
//   - lowercase and trim
//   - strip trailing suffixes such as "bjj", "academy" or "martial arts", longest first
//   - collapse whitespace
func NormalizeGymName(s string) string {
	return DefaultLexicon().Normalize(s)
}

// CollapseWhitespace trims and replaces every whitespace run with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fold(s string) string {
	return CollapseWhitespace(strings.ToLower(s))
}
