package vecstore

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// HNSWConfig configures a new [HNSW] index.
type HNSWConfig struct {
	// Dim is the vector dimension. Required; must be positive.
	// All inserted vectors must have exactly this many elements.
	Dim int

	// M is the maximum number of connections per node per layer (except
	// layer 0, which allows 2*M). Higher values improve recall but
	// increase memory usage and insertion time. Default: 16.
	M int

	// EfConstruction is the size of the dynamic candidate list during
	// index building. Default: 200.
	EfConstruction int

	// EfSearch is the default size of the dynamic candidate list during
	// search queries. Can be adjusted via [HNSW.SetEfSearch]. Default: 64.
	EfSearch int

	// Seed drives level generation. Two indexes built with the same seed
	// from the same insertion sequence have identical graphs.
	Seed uint64
}

func (c *HNSWConfig) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
}

// maxConns returns the maximum number of connections at the given layer.
// Layer 0 allows 2*M; higher layers allow M.
func (c *HNSWConfig) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

// ---------------------------------------------------------------------------
// Internal priority-queue types for beam search
// ---------------------------------------------------------------------------

// distItem pairs a node's internal ID with its distance to a query vector.
type distItem struct {
	id   uint32
	dist float32
}

// minDistHeap is a min-heap ordered by distance (closest first).
type minDistHeap []distItem

func (h minDistHeap) Len() int           { return len(h) }
func (h minDistHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap is a max-heap ordered by distance (farthest first).
type maxDistHeap []distItem

func (h maxDistHeap) Len() int           { return len(h) }
func (h maxDistHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ---------------------------------------------------------------------------
// HNSW
// ---------------------------------------------------------------------------

// hnswNode is a single vector in the graph.
type hnswNode struct {
	id      string     // external string ID
	vector  []float32  // unit vector, len == Dim
	level   int        // highest layer this node appears on (0-based)
	friends [][]uint32 // friends[layer] = neighbor internal IDs at that layer
}

// HNSW is a Hierarchical Navigable Small World index implementing [Index].
//
// Higher layers contain exponentially fewer nodes and act as express lanes
// for a greedy descent; layer 0 holds every node and is searched with a
// beam of width EfSearch. Distances inside the graph are 1 - cosine.
//
// All methods are safe for concurrent use.
type HNSW struct {
	mu       sync.RWMutex
	cfg      HNSWConfig
	nodes    []*hnswNode       // internal ID → node
	idMap    map[string]uint32 // external ID → internal ID
	entryID  int32             // entry point internal ID; -1 if empty
	maxLevel int               // highest occupied layer in the graph
	levelMul float64           // 1/ln(M), for random level generation
	rng      *rand.Rand
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty HNSW index with the given configuration.
// Panics if cfg.Dim is not positive.
func NewHNSW(cfg HNSWConfig) *HNSW {
	if cfg.Dim <= 0 {
		panic("vecstore: HNSWConfig.Dim must be positive")
	}
	cfg.setDefaults()
	return &HNSW{
		cfg:      cfg,
		idMap:    make(map[string]uint32),
		entryID:  -1,
		levelMul: 1.0 / math.Log(float64(cfg.M)),
		rng:      newLevelRand(cfg.Seed),
	}
}

func newLevelRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SetEfSearch adjusts the search-time candidate list size.
func (h *HNSW) SetEfSearch(ef int) {
	h.mu.Lock()
	h.cfg.EfSearch = ef
	h.mu.Unlock()
}

// Config returns the effective configuration.
func (h *HNSW) Config() HNSWConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Len returns the number of vectors in the index.
func (h *HNSW) Len() int {
	h.mu.RLock()
	n := len(h.nodes)
	h.mu.RUnlock()
	return n
}

// Dim returns the vector dimension.
func (h *HNSW) Dim() int { return h.cfg.Dim }

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

// Add inserts a vector under id. Zero vectors and duplicate IDs are
// rejected.
func (h *HNSW) Add(id string, vector []float32) error {
	if len(vector) != h.cfg.Dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vector), h.cfg.Dim)
	}
	vec := unit(vector)
	if vec == nil {
		return fmt.Errorf("vecstore: zero vector for %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.idMap[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	idx := uint32(len(h.nodes))
	level := h.randomLevel()
	nd := &hnswNode{
		id:      id,
		vector:  vec,
		level:   level,
		friends: make([][]uint32, level+1),
	}
	h.nodes = append(h.nodes, nd)
	h.idMap[id] = idx

	// First node becomes the entry point.
	if h.entryID < 0 {
		h.entryID = int32(idx)
		h.maxLevel = level
		return nil
	}

	// Phase 1: greedy descent from the top layer down to level+1.
	cur := h.greedy(vec, uint32(h.entryID), h.maxLevel, level)

	// Phase 2: beam search each layer from min(level, maxLevel) down to 0,
	// then connect bidirectionally.
	ep := []uint32{cur}
	for lev := min(level, h.maxLevel); lev >= 0; lev-- {
		candidates := h.searchLayer(context.Background(), vec, ep, h.cfg.EfConstruction, lev)

		maxC := h.cfg.maxConns(lev)
		neighbors := h.selectClosest(vec, candidates, maxC)
		nd.friends[lev] = neighbors

		for _, nID := range neighbors {
			nn := h.nodes[nID]
			if lev >= len(nn.friends) {
				continue
			}
			nn.friends[lev] = append(nn.friends[lev], idx)
			if len(nn.friends[lev]) > maxC {
				nn.friends[lev] = h.selectClosest(nn.vector, nn.friends[lev], maxC)
			}
		}
		ep = candidates
	}

	if level > h.maxLevel {
		h.entryID = int32(idx)
		h.maxLevel = level
	}
	return nil
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// Search returns up to k nearest vectors with similarity >= minScore.
func (h *HNSW) Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if len(query) != h.cfg.Dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), h.cfg.Dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := unit(query)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 || k <= 0 || q == nil {
		return nil, nil
	}

	ef := max(h.cfg.EfSearch, k)
	cur := h.greedy(q, uint32(h.entryID), h.maxLevel, 0)
	candidateIDs := h.searchLayer(ctx, q, []uint32{cur}, ef, 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(candidateIDs))
	for _, cID := range candidateIDs {
		nd := h.nodes[cID]
		s := clamp01(dot(q, nd.vector))
		if s < minScore {
			continue
		}
		matches = append(matches, Match{ID: nd.id, Score: s})
	}
	sort.Slice(matches, func(i, j int) bool { return lessMatch(matches[i], matches[j]) })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func distance(a, b []float32) float32 { return 1 - dot(a, b) }

// randomLevel draws a layer from an exponential distribution:
// P(level >= l) = exp(-l * ln(M)). Caller must hold h.mu for writing.
func (h *HNSW) randomLevel() int {
	r := max(h.rng.Float64(), math.SmallestNonzeroFloat64)
	return min(int(-math.Log(r)*h.levelMul), 31)
}

// greedy walks from start, tracking only the single closest node, on every
// layer from top down to (but excluding) bottom.
func (h *HNSW) greedy(q []float32, start uint32, top, bottom int) uint32 {
	cur := start
	curDist := distance(q, h.nodes[cur].vector)
	for lev := top; lev > bottom; lev-- {
		changed := true
		for changed {
			changed = false
			nd := h.nodes[cur]
			if lev >= len(nd.friends) {
				break
			}
			for _, fID := range nd.friends[lev] {
				if d := distance(q, h.nodes[fID].vector); d < curDist {
					cur, curDist = fID, d
					changed = true
				}
			}
		}
	}
	return cur
}

// searchLayer performs a beam search on a single layer, starting from the
// given entry points. It returns up to ef internal node IDs closest to
// the query vector. It stops early when ctx is done.
func (h *HNSW) searchLayer(ctx context.Context, query []float32, entryPoints []uint32, ef int, layer int) []uint32 {
	visited := make(map[uint32]struct{}, ef*2)

	var candidates minDistHeap
	var results maxDistHeap

	for _, ep := range entryPoints {
		visited[ep] = struct{}{}
		d := distance(query, h.nodes[ep].vector)
		heap.Push(&candidates, distItem{id: ep, dist: d})
		heap.Push(&results, distItem{id: ep, dist: d})
	}

	for steps := 0; candidates.Len() > 0; steps++ {
		if steps&63 == 63 && ctx.Err() != nil {
			break
		}
		closest := heap.Pop(&candidates).(distItem)
		if results.Len() >= ef && closest.dist > results[0].dist {
			break
		}

		nd := h.nodes[closest.id]
		if layer >= len(nd.friends) {
			continue
		}
		for _, fID := range nd.friends[layer] {
			if _, seen := visited[fID]; seen {
				continue
			}
			visited[fID] = struct{}{}

			d := distance(query, h.nodes[fID].vector)
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, distItem{id: fID, dist: d})
				heap.Push(&results, distItem{id: fID, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]uint32, results.Len())
	for i := range out {
		out[i] = results[i].id
	}
	return out
}

// selectClosest returns up to maxN internal IDs from candidates that are
// closest to the query vector.
func (h *HNSW) selectClosest(query []float32, candidates []uint32, maxN int) []uint32 {
	if len(candidates) <= maxN {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out
	}

	items := make([]distItem, len(candidates))
	for i, cID := range candidates {
		items[i] = distItem{id: cID, dist: distance(query, h.nodes[cID].vector)}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].id < items[j].id
	})

	out := make([]uint32, maxN)
	for i := range out {
		out[i] = items[i].id
	}
	return out
}
