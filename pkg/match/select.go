package match

import (
	"slices"

	"github.com/haivivi/tagmatch/pkg/catalog"
)

// SelectBest picks one candidate per result: the best-ranked one whose name
// was not already picked for an earlier result. Results without such a
// candidate contribute nothing. When categories are given, only candidates
// of those categories are considered.
func SelectBest(results []Result, categories ...catalog.Category) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, r := range results {
		for _, c := range r.Candidates {
			if seen[c.Name] || !inCategories(c.Category, categories) {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
			break
		}
	}
	return out
}

// SelectAll returns every candidate of every result in order, keeping only
// the first occurrence of each name. When categories are given, only
// candidates of those categories are kept.
func SelectAll(results []Result, categories ...catalog.Category) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, r := range results {
		for _, c := range r.Candidates {
			if seen[c.Name] || !inCategories(c.Category, categories) {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}

func inCategories(c catalog.Category, allowed []catalog.Category) bool {
	return len(allowed) == 0 || slices.Contains(allowed, c)
}
