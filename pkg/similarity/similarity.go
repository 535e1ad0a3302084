// Package similarity measures how alike two display names are. It only
// measures; thresholds are applied by callers.
package similarity

import (
	"strings"
	"unicode"
)

// Score returns the Sørensen–Dice coefficient over character bigrams of
// the two strings, in [0, 1]. Comparison is case-insensitive and
// ignores whitespace. Symmetric and deterministic.
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[string(ra[i:i+2])]++
	}

	intersection := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := string(rb[i : i+2])
		if bigrams[bg] > 0 {
			bigrams[bg]--
			intersection++
		}
	}

	return 2 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

// BestMatch returns the index and score of the candidate most similar
// to target, or (-1, 0) when candidates is empty.
func BestMatch(target string, candidates []string) (int, float64) {
	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		if s := Score(target, c); bestIdx == -1 || s > bestScore {
			bestIdx = i
			bestScore = s
		}
	}
	return bestIdx, bestScore
}

func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
