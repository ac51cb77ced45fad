package importer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// NearMatch pairs an organization name a run would create with an existing
// name it probably duplicates.
type NearMatch struct {
	Name     string `json:"name"`
	Existing string `json:"existing"`
}

// nearMatches reports, for each candidate, the closest existing name that is
// a fuzzy subsequence of it or the other way around, within an edit distance
// of a third of the longer name. Comparison ignores case.
func nearMatches(candidates []string, existing map[string]int64) []NearMatch {
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)

	out := []NearMatch{}
	for _, c := range candidates {
		lc := strings.ToLower(c)
		best, bestDist := "", -1
		for _, e := range names {
			if !fuzzy.MatchNormalizedFold(c, e) && !fuzzy.MatchNormalizedFold(e, c) {
				continue
			}
			le := strings.ToLower(e)
			d := fuzzy.LevenshteinDistance(lc, le)
			if d > maxNearDistance(lc, le) {
				continue
			}
			if bestDist < 0 || d < bestDist {
				best, bestDist = e, d
			}
		}
		if bestDist >= 0 {
			out = append(out, NearMatch{Name: c, Existing: best})
		}
	}
	return out
}

func maxNearDistance(a, b string) int {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b)) / 3
	return max(n, 1)
}
