// Package embed provides a text embedding interface and its implementations.
//
// An Embedder converts text into dense vectors for the semantic stage of
// label matching and for building the label vector index.
//
// # Implementations
//
//   - [OpenAI]: OpenAI text-embedding-3-small / text-embedding-3-large
//   - [DashScope]: Aliyun DashScope text-embedding-v4 (and v1/v2/v3)
//   - [Gemini]: Google text-embedding-004 / gemini-embedding-001
//   - [Hash]: offline character-trigram hashing, no network
//
// OpenAI and DashScope share the OpenAI-compatible HTTP API. [Cached] wraps
// any of them with a persistent [Cache] so identical texts are embedded once.
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithDimension(512))
//	vec, err := e.Embed(ctx, "school uniform")
//
//	vecs, err := e.EmbedBatch(ctx, []string{"long hair", "cat ears"})
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors. Identical input must
// produce identical output.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in input
	// order. Implementations split large batches into smaller API calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int

	// Model returns the model identifier. Vectors from different models
	// are not comparable.
	Model() string
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)
