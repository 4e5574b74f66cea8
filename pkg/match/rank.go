package match

import (
	"math"
	"sort"

	"github.com/haivivi/tagmatch/pkg/fuzzy"
)

// rank merges the fuzzy and vector hits by name and orders them by fused
// score.
//
// Scores are compared on a common [0, 1] scale: fuzzy/100 and the cosine
// similarity. A name found by both stages keeps the higher-scoring method;
// on a tie the fuzzy hit stays. Names unknown to the catalog are dropped.
func (p *Pipeline) rank(query string, fz []fuzzy.Match, vh []VectorHit) []Candidate {
	var (
		out    = make([]Candidate, 0, len(fz)+len(vh))
		norms  = make([]float64, 0, len(fz)+len(vh))
		byName = make(map[string]int, len(fz)+len(vh))
	)
	add := func(c Candidate, norm float64) {
		if i, ok := byName[c.Name]; ok {
			if norm > norms[i] {
				out[i], norms[i] = c, norm
			}
			return
		}
		byName[c.Name] = len(out)
		out = append(out, c)
		norms = append(norms, norm)
	}

	for _, m := range fz {
		e, ok := p.cat.LookupExact(m.Name)
		if !ok {
			continue
		}
		add(Candidate{
			Query:      query,
			Name:       e.Name,
			Method:     Fuzzy,
			RawScore:   m.Score,
			Category:   e.Category,
			Popularity: e.Popularity,
			Via:        m.Key,
		}, clamp01(m.Score/100))
	}
	for _, h := range vh {
		e, ok := p.cat.LookupExact(h.Name)
		if !ok {
			continue
		}
		add(Candidate{
			Query:      query,
			Name:       e.Name,
			Method:     Vector,
			RawScore:   h.Score,
			Category:   e.Category,
			Popularity: e.Popularity,
		}, clamp01(h.Score))
	}

	maxPop := p.cat.MaxPopularity()
	for i := range out {
		pop := popularityNorm(out[i].Popularity, maxPop, p.cfg.PopularityScale)
		out[i].FusedScore = norms[i]*p.cfg.ScoreWeight + pop*p.cfg.PopularityWeight
	}
	sort.Slice(out, func(i, j int) bool { return lessCandidate(out[i], out[j]) })
	if p.cfg.MaxResults > 0 && len(out) > p.cfg.MaxResults {
		out = out[:p.cfg.MaxResults]
	}
	return out
}

// lessCandidate orders by fused score desc, popularity desc, name asc.
func lessCandidate(a, b Candidate) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	return a.Name < b.Name
}

func popularityNorm(pop, maxPop int64, scale PopularityScale) float64 {
	if pop <= 0 || maxPop <= 0 {
		return 0
	}
	if scale == ScaleLog {
		if maxPop <= 1 {
			return 0
		}
		return clamp01(math.Log10(float64(pop)) / math.Log10(float64(maxPop)))
	}
	return clamp01(float64(pop) / float64(maxPop))
}

func clamp01(x float64) float64 {
	switch {
	case x < 0 || math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	}
	return x
}
