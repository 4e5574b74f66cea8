// Package match resolves free-form labels against a catalog.
//
// A [Pipeline] runs each query through a fixed sequence of stages:
//
//	normalize → exact → alias → fuzzy ∥ vector → merge/rank
//
// An exact or alias hit ends the query with a single candidate. Otherwise
// the fuzzy and vector stages run concurrently, each under its own timeout,
// and their hits are merged by canonical name and ranked by a fused score
// that blends similarity with popularity.
//
// A failing stage never fails the query: the vector stage in particular
// degrades silently when no index or embedder is configured. Only invalid
// input and caller cancellation are returned as errors.
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/fuzzy"
)

// Sentinel errors.
var (
	// ErrInvalidInput is returned for an empty, whitespace-only or
	// non-UTF-8 query. No stage runs.
	ErrInvalidInput = errors.New("match: invalid input")

	// ErrIndexUnavailable is returned by a [VectorSearcher] that has no
	// index or embedder to search with. The pipeline treats it as a
	// degraded stage, not a failure.
	ErrIndexUnavailable = errors.New("match: vector index unavailable")
)

// Method names the stage that produced a candidate.
type Method uint8

const (
	Exact Method = iota + 1
	Alias
	Fuzzy
	Vector
)

func (m Method) String() string {
	switch m {
	case Exact:
		return "exact"
	case Alias:
		return "alias"
	case Fuzzy:
		return "fuzzy"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	for _, v := range []Method{Exact, Alias, Fuzzy, Vector} {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("match: unknown method %q", b)
}

// Candidate is one proposed canonical label for a query.
type Candidate struct {
	// Query is the raw query as given by the caller.
	Query string `json:"query" yaml:"query"`

	// Name is the canonical catalog name.
	Name string `json:"name" yaml:"name"`

	Method Method `json:"method" yaml:"method"`

	// RawScore is the producing stage's own score: 1 for exact and alias,
	// 0–100 for fuzzy, cosine similarity for vector.
	RawScore float64 `json:"raw_score" yaml:"raw_score"`

	// FusedScore is the ranking score in [0, 1].
	FusedScore float64 `json:"fused_score" yaml:"fused_score"`

	Category   catalog.Category `json:"category" yaml:"category"`
	Popularity int64            `json:"popularity" yaml:"popularity"`

	// Via is the alias or fuzzy key that led to Name, if any.
	Via string `json:"via,omitempty" yaml:"via,omitempty"`
}

// FuzzySearcher is the fuzzy stage. [*fuzzy.Matcher] implements it.
type FuzzySearcher interface {
	Match(ctx context.Context, query string, opts fuzzy.Options) ([]fuzzy.Match, error)
}

var _ FuzzySearcher = (*fuzzy.Matcher)(nil)

// VectorHit is one vector-stage result.
type VectorHit struct {
	Name  string
	Score float64 // cosine similarity in [0, 1]
}

// VectorSearcher is the vector stage. It receives the normalized query.
// [*Semantic] implements it.
type VectorSearcher interface {
	SearchText(ctx context.Context, query string, k int, minScore float64) ([]VectorHit, error)
}
