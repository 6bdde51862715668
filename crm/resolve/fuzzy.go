package resolve

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Substitutions cost two, which turns Levenshtein into an insert/delete
// distance; ratios are then (len(a)+len(b)-dist)/(len(a)+len(b)).
var indel = levenshtein.NewParams().SubCost(2)

// Ratio is the plain character similarity of a and b on a 0-100 scale.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(a, b, indel)
	return float64(total-d) / float64(total) * 100
}

// PartialRatio is the best Ratio of the shorter string against any
// same-length window of the longer one, edges included.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	n := len(short)
	if n == 0 {
		return 0
	}

	needle := string(short)
	best := 0.0
	for start := 0; start+n <= len(long); start++ {
		if r := Ratio(needle, string(long[start:start+n])); r > best {
			best = r
			if best == 100 {
				return best
			}
		}
	}
	for i := 1; i < n && i <= len(long); i++ {
		best = max(best, Ratio(needle, string(long[:i])), Ratio(needle, string(long[len(long)-i:])))
	}
	return best
}

// TokenSortRatio compares a and b after sorting their words, so word order
// does not matter.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// Score is the similarity used for resolution and search: case and outer
// whitespace are ignored, containment of query in target scores 100, and
// otherwise the best of the token-sort, partial and plain ratios wins.
func Score(query, target string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(target))
	if q == "" || t == "" {
		return 0
	}
	if strings.Contains(t, q) {
		return 100
	}
	return max(TokenSortRatio(q, t), PartialRatio(q, t), Ratio(q, t))
}

// LooksLikeID reports whether target is already a record ID: longer than 20
// characters with no spaces and no "@".
func LooksLikeID(target string) bool {
	target = strings.TrimSpace(target)
	return len(target) > 20 && !strings.Contains(target, " ") && !strings.Contains(target, "@")
}

func isEmail(target string) bool {
	return strings.Contains(target, "@")
}
