// Package vecstore provides nearest-neighbor search over dense float32
// vectors by cosine similarity.
//
// The [Searcher] interface is the read side used while serving. [Index]
// adds build-time insertion and serialization. Two implementations exist:
// [HNSW] for approximate search over large sets and [Flat] for exact brute
// force over small ones. Both store unit-normalized copies of their vectors,
// so similarity reduces to a dot product.
//
// Indexes are filled once, saved with [Index.Save], and later reopened with
// [Load]. Nothing is ever deleted from an index.
package vecstore

import (
	"context"
	"errors"
	"io"
	"math"
)

// Sentinel errors.
var (
	// ErrCorrupt is returned by Load when the serialized index is truncated,
	// has an unknown magic or version, or fails its checksum.
	ErrCorrupt = errors.New("vecstore: corrupt index")

	// ErrDimension is returned when a vector's length does not match the
	// index dimension.
	ErrDimension = errors.New("vecstore: dimension mismatch")

	// ErrDuplicateID is returned by Add when the ID is already present.
	ErrDuplicateID = errors.New("vecstore: duplicate id")
)

// Searcher is the read-only search contract.
//
// All implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns at most k vectors whose cosine similarity to query is
	// at least minScore, ordered by score desc, then ID asc.
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error)

	// Len returns the number of vectors in the index.
	Len() int

	// Dim returns the vector dimension.
	Dim() int
}

// Index is a [Searcher] that can be filled and serialized.
type Index interface {
	Searcher

	// Add inserts a vector under id. The vector is copied and normalized.
	Add(id string, vector []float32) error

	// Save writes the index in its binary format.
	Save(w io.Writer) error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// ID is the identifier of the matched vector.
	ID string

	// Score is the cosine similarity clamped to [0, 1]. Higher is closer.
	Score float32
}

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(float32(dot / (math.Sqrt(na) * math.Sqrt(nb))))
}

// unit returns a normalized copy of v, or nil for a zero vector.
func unit(v []float32) []float32 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	if n == 0 {
		return nil
	}
	n = math.Sqrt(n)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// dot of two unit vectors of equal length.
func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func clamp01(x float32) float32 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// lessMatch orders matches by score desc, then ID asc.
func lessMatch(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
