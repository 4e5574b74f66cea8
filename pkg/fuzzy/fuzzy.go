// Package fuzzy implements edit-distance matching over a catalog's canonical
// names and aliases.
//
// Keys are stored token-sorted and bucketed by rune length. A query only
// scans the buckets whose length can reach the threshold, and a 64-bit
// character signature bounds the LCS of each key before the full score is
// computed. Buckets are scanned in parallel.
package fuzzy

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/normalize"
)

// Defaults applied by [Options].
const (
	DefaultThreshold = 80
	DefaultLimit     = 5
)

// spanSize is the number of keys a worker claims at a time.
const spanSize = 2048

// Options tunes one fuzzy search.
type Options struct {
	// Threshold is the minimum score (0–100). Zero means DefaultThreshold.
	Threshold float64

	// Limit caps the number of results. Zero means DefaultLimit.
	Limit int

	// Workers is the number of scanning goroutines. Zero means GOMAXPROCS.
	Workers int
}

func (o *Options) setDefaults() {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// Match is one fuzzy hit.
type Match struct {
	Name       string  // canonical entry name
	Key        string  // normalized name or alias that scored best
	Score      float64 // 0–100
	Popularity int64
}

type key struct {
	sorted string
	raw    string
	sig    uint64
	entry  int32
}

// Matcher searches a fixed key set. It is immutable and safe for concurrent
// use.
type Matcher struct {
	buckets [][]key // indexed by rune length of the sorted key
	names   []string
	pops    []int64
	keys    int
}

// NewMatcher indexes every canonical name and alias of cat.
func NewMatcher(cat *catalog.Catalog) *Matcher {
	m := &Matcher{
		names: make([]string, 0, cat.Len()),
		pops:  make([]int64, 0, cat.Len()),
	}
	idx := make(map[string]int32, cat.Len())
	for e := range cat.All() {
		idx[e.Name] = int32(len(m.names))
		m.names = append(m.names, e.Name)
		m.pops = append(m.pops, e.Popularity)
	}

	type dedup struct {
		sorted string
		entry  int32
	}
	seen := make(map[dedup]struct{}, cat.Len())
	add := func(raw string, entry int32) {
		s := sortTokens(raw)
		if s == "" {
			return
		}
		d := dedup{s, entry}
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		n := utf8.RuneCountInString(s)
		for len(m.buckets) <= n {
			m.buckets = append(m.buckets, nil)
		}
		m.buckets[n] = append(m.buckets[n], key{sorted: s, raw: raw, sig: signature(s), entry: entry})
		m.keys++
	}
	for i, name := range m.names {
		add(name, int32(i))
	}
	for alias, target := range cat.Aliases().All() {
		if i, ok := idx[target]; ok {
			add(alias, i)
		}
	}
	return m
}

// Len returns the number of indexed keys.
func (m *Matcher) Len() int { return m.keys }

// Match returns up to opts.Limit entries whose best key scores at least
// opts.Threshold against query, ordered by score desc, popularity desc, name
// asc. The query is normalized first; an empty query yields no matches.
//
// If ctx is cancelled mid-scan, the matches found so far are returned along
// with ctx.Err().
func (m *Matcher) Match(ctx context.Context, query string, opts Options) ([]Match, error) {
	opts.setDefaults()
	q := sortTokens(normalize.Normalize(query))
	if q == "" || opts.Threshold > 100 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	la := utf8.RuneCountInString(q)
	t := opts.Threshold / 100
	lo := int(math.Ceil(t*float64(la)/(2-t) - 1e-9))
	hi := int(math.Floor(float64(la)*(2-t)/t + 1e-9))
	hi = min(hi, len(m.buckets)-1)
	lo = max(lo, 1)

	type span struct {
		bucket     int
		start, end int
	}
	var spans []span
	for n := lo; n <= hi; n++ {
		b := m.buckets[n]
		for s := 0; s < len(b); s += spanSize {
			spans = append(spans, span{n, s, min(s+spanSize, len(b))})
		}
	}
	if len(spans) == 0 {
		return nil, nil
	}

	qsig := signature(q)
	qbits := make([]uint, 0, la)
	for _, r := range q {
		qbits = append(qbits, runeBit(r))
	}

	workers := min(opts.Workers, len(spans))
	results := make([]map[int32]Match, workers)
	var next atomic.Int64
	var g errgroup.Group
	for w := range workers {
		found := make(map[int32]Match)
		results[w] = found
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(spans) || ctx.Err() != nil {
					return nil
				}
				sp := spans[i]
				lb := sp.bucket
				for _, k := range m.buckets[lb][sp.start:sp.end] {
					ub := lcsUpperBound(qbits, qsig, la, k.sig, lb)
					if ratio(ub, la, lb) < opts.Threshold {
						continue
					}
					score := ratio(edlib.LCS(q, k.sorted), la, lb)
					if score < opts.Threshold {
						continue
					}
					cand := Match{Name: m.names[k.entry], Key: k.raw, Score: score, Popularity: m.pops[k.entry]}
					if cur, ok := found[k.entry]; !ok || betterKey(cand, cur) {
						found[k.entry] = cand
					}
				}
			}
		})
	}
	_ = g.Wait()

	merged := results[0]
	for _, r := range results[1:] {
		for id, cand := range r {
			if cur, ok := merged[id]; !ok || betterKey(cand, cur) {
				merged[id] = cand
			}
		}
	}
	out := make([]Match, 0, len(merged))
	for _, mt := range merged {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, ctx.Err()
}

// betterKey picks between two hits on the same entry: higher score, then the
// canonical name itself, then the smaller key.
func betterKey(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if (a.Key == a.Name) != (b.Key == b.Name) {
		return a.Key == a.Name
	}
	return a.Key < b.Key
}

func less(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	return a.Name < b.Name
}
