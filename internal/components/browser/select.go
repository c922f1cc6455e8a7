package browser

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// minOptionSimilarity is the lowest Jaro-Winkler score accepted for a fuzzy
// option match, below it the select is left untouched.
const minOptionSimilarity = 0.7

// BestOption returns the index of the option text that best matches want:
// an exact (case-insensitive) match, then the shortest option containing
// want, then the highest Jaro-Winkler similarity. -1 means no option is
// plausible.
func BestOption(options []string, want string) int {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return -1
	}

	normalized := make([]string, len(options))
	for i, o := range options {
		normalized[i] = strings.ToLower(strings.TrimSpace(o))
		if normalized[i] == want {
			return i
		}
	}

	best := -1
	for i, o := range normalized {
		if !strings.Contains(o, want) {
			continue
		}
		if best < 0 || len(o) < len(normalized[best]) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}

	bestScore := 0.0
	for i, o := range normalized {
		if o == "" {
			continue
		}
		score := matchr.JaroWinkler(o, want, false)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if bestScore < minOptionSimilarity {
		return -1
	}
	return best
}
