// Package grounding validates free-text diagnosis names against the
// standardized code directory: normalized queries, a two-tier cache in
// front of the directory, fuzzy similarity scoring, and concurrent batch
// validation of whole differentials.
package grounding

import (
	"regexp"
	"strings"
)

// Similarity blend: word overlap dominates, edit distance refines.
const (
	jaccardWeight     = 0.6
	levenshteinWeight = 0.4
)

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9_ .\-]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	wordPunctuation = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeQuery lowers, trims, collapses whitespace, and strips
// characters outside word/space/period/hyphen.
func NormalizeQuery(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = disallowedChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// wordSet extracts the comparison vocabulary of a string: lower-cased,
// punctuation-stripped words longer than two characters.
func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = wordPunctuation.ReplaceAllString(w, "")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

// JaccardSimilarity is word-set intersection over union. Two empty sets
// count as identical; exactly one empty set counts as disjoint.
func JaccardSimilarity(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}

	intersection := 0
	for w := range sa {
		if sb[w] {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	return float64(intersection) / float64(union)
}

// LevenshteinSimilarity is 1 - editDistance/maxLen over the lower-cased,
// trimmed strings.
func LevenshteinSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	distance := levenshteinDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1 - float64(distance)/float64(maxLen)
}

// CombinedSimilarity blends word overlap and edit distance. Equal strings
// (after lower/trim) score 1; an empty string against a non-empty one
// scores 0.
func CombinedSimilarity(a, b string) float64 {
	ta := strings.ToLower(strings.TrimSpace(a))
	tb := strings.ToLower(strings.TrimSpace(b))
	if ta == tb {
		return 1
	}
	if ta == "" || tb == "" {
		return 0
	}
	return jaccardWeight*JaccardSimilarity(ta, tb) + levenshteinWeight*LevenshteinSimilarity(ta, tb)
}

func levenshteinDistance(a, b string) int {
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minInt(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}
	return matrix[len(a)][len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
