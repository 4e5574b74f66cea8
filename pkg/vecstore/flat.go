package vecstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Flat is an exact brute-force [Index]. Every search scores every vector,
// so it suits small sets and serves as ground truth for [HNSW].
//
// It is safe for concurrent use.
type Flat struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	vecs [][]float32
	seen map[string]struct{}
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index. Panics if dim is not positive.
func NewFlat(dim int) *Flat {
	if dim <= 0 {
		panic("vecstore: Flat dim must be positive")
	}
	return &Flat{dim: dim, seen: make(map[string]struct{})}
}

// Add inserts a vector under id.
func (f *Flat) Add(id string, vector []float32) error {
	if len(vector) != f.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vector), f.dim)
	}
	vec := unit(vector)
	if vec == nil {
		return fmt.Errorf("vecstore: zero vector for %q", id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	f.seen[id] = struct{}{}
	f.ids = append(f.ids, id)
	f.vecs = append(f.vecs, vec)
	return nil
}

// Search scores every vector against query.
func (f *Flat) Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), f.dim)
	}
	q := unit(query)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || q == nil || len(f.ids) == 0 {
		return nil, ctx.Err()
	}
	var out []Match
	for i, v := range f.vecs {
		if i&4095 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s := clamp01(dot(q, v))
		if s >= minScore {
			out = append(out, Match{ID: f.ids[i], Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessMatch(out[i], out[j]) })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len returns the number of vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }
