// Package match scores agricultural resource names against the USDA
// commodity taxonomy and tiers the results for automatic or human review.
package match

import (
	"strings"
	"unicode"
)

// Ratio computes Gestalt pattern-matching similarity between two strings:
// 2*M / T where M is the total length of matched blocks found by recursively
// locating the longest common substring, and T the combined length. Returns
// a value in [0, 1].
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	matched := matchedLength(a, b)
	return 2 * float64(matched) / float64(total)
}

func matchedLength(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedLength(a[:ai], b[:bi]) +
		matchedLength(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common substring of a and b using the
// classic dynamic-programming row sweep. Ties resolve to the earliest
// position in a, then b, matching the conventional gestalt behavior.
func longestMatch(a, b string) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if cur[j+1] > size {
				size = cur[j+1]
				ai = i - size + 1
				bi = j - size + 1
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

// Normalize canonicalizes a name for comparison: lowercase, punctuation
// stripped, whitespace collapsed, and a trailing plural 's' removed from
// each word so "Almonds" and "ALMOND" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '/' || r == ',':
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = depluralize(w)
	}
	return strings.Join(words, " ")
}

// depluralize trims a trailing 's' from words long enough for the trim to be
// safe. Short words ("gas", "oats" stays "oat") and doubled-s endings
// ("grass") keep their spelling.
func depluralize(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

// Score compares a resource name against a taxonomy candidate name. The
// taxonomy qualifies entries with comma-separated facets ("HAY, ALFALFA"),
// so the score is the best of the whole-string ratio and the ratio against
// each individual facet: a resource named "Alfalfa" scores 1.0 against
// "HAY, ALFALFA" even though the full strings differ.
func Score(resource, candidate string) float64 {
	nr := Normalize(resource)
	best := Ratio(nr, Normalize(candidate))
	for _, part := range strings.Split(candidate, ",") {
		if s := Ratio(nr, Normalize(part)); s > best {
			best = s
		}
	}
	return best
}
