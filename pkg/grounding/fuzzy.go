package grounding

import "strings"

// closest returns the candidate nearest to name by edit distance on lowercased
// names, provided the distance is below maxDistance. Ties go to the earlier
// candidate.
func closest(name string, candidates []string, maxDistance int) (string, int, bool) {
	lower := strings.ToLower(name)
	best, bestDist := "", maxDistance
	for _, c := range candidates {
		if d := levenshtein(lower, strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist, best != ""
}

// levenshtein computes the edit distance between a and b using two DP rows.
func levenshtein(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(
				curr[j-1]+1,    // insertion
				prev[j]+1,      // deletion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
