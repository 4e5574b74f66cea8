package match

import (
	"context"
	"fmt"

	"github.com/haivivi/tagmatch/pkg/embed"
	"github.com/haivivi/tagmatch/pkg/normalize"
	"github.com/haivivi/tagmatch/pkg/vecstore"
)

// Semantic is the vector stage: it embeds the query and searches a vector
// index built from the same embedding model.
type Semantic struct {
	embedder embed.Embedder
	index    vecstore.Searcher
}

var _ VectorSearcher = (*Semantic)(nil)

// NewSemantic creates a vector stage. Either argument may be nil, in which
// case every search returns ErrIndexUnavailable.
func NewSemantic(e embed.Embedder, index vecstore.Searcher) *Semantic {
	return &Semantic{embedder: e, index: index}
}

// SearchText embeds the normalized query, rendered with spaces, and returns
// the nearest catalog names.
func (s *Semantic) SearchText(ctx context.Context, query string, k int, minScore float64) ([]VectorHit, error) {
	if s == nil || s.embedder == nil || s.index == nil || s.index.Len() == 0 {
		return nil, ErrIndexUnavailable
	}
	if d := s.embedder.Dimension(); d != s.index.Dim() {
		return nil, fmt.Errorf("%w: embedder dimension %d, index dimension %d", ErrIndexUnavailable, d, s.index.Dim())
	}
	vec, err := s.embedder.Embed(ctx, normalize.Display(query))
	if err != nil {
		return nil, fmt.Errorf("match: embed query: %w", err)
	}
	matches, err := s.index.Search(ctx, vec, k, float32(minScore))
	if err != nil {
		return nil, fmt.Errorf("match: vector search: %w", err)
	}
	hits := make([]VectorHit, len(matches))
	for i, m := range matches {
		hits[i] = VectorHit{Name: m.ID, Score: float64(m.Score)}
	}
	return hits, nil
}
