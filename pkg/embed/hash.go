package embed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hash is an offline [Embedder] that hashes character trigrams into a
// fixed number of signed buckets. Strings sharing many trigrams get close
// vectors, which is enough for spelling-level similarity without an API.
type Hash struct {
	dim int
}

var _ Embedder = (*Hash)(nil)

// NewHash creates a hashing embedder. A non-positive dim means 256.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = 256
	}
	return &Hash{dim: dim}
}

// Embed returns the unit-length trigram vector of text.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	v := make([]float64, h.dim)
	rs := []rune(" " + strings.ToLower(text) + " ")
	for i := 0; i+3 <= len(rs); i++ {
		sum := xxhash.Sum64String(string(rs[i : i+3]))
		idx := sum % uint64(h.dim)
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, h.dim)
	if norm == 0 {
		// Opposite-signed trigrams in one bucket can cancel out entirely.
		out[0] = 1
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in turn.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed: text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the vector dimensionality.
func (h *Hash) Dimension() int { return h.dim }

// Model returns "hash-trigram-<dim>".
func (h *Hash) Model() string { return fmt.Sprintf("hash-trigram-%d", h.dim) }
