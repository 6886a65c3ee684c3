package operations

import "strings"

// matchScore scores how well candidate matches query, in [0,1]. Exact match
// after normalization is 1, substring containment scores by length ratio, and
// everything else falls back to normalized edit distance.
func matchScore(query, candidate string) float64 {
	q := normalizeName(query)
	c := normalizeName(candidate)
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 1
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		shorter, longer := len(q), len(c)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.9 * float64(shorter) / float64(longer)
	}
	d := levenshtein(q, c)
	longer := len(q)
	if len(c) > longer {
		longer = len(c)
	}
	return 1 - float64(d)/float64(longer)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
