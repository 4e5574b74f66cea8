package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini embedding models.
const (
	ModelGeminiEmbedding001 = "gemini-embedding-001"
	ModelGeminiText004      = "text-embedding-004"
)

const (
	geminiMaxBatch     = 100
	geminiDefaultDim   = 768
	geminiDefaultModel = ModelGeminiEmbedding001
)

// Gemini implements [Embedder] using the Gemini API embedContent endpoint.
type Gemini struct {
	client   *genai.Client
	model    string
	dim      int
	maxBatch int
}

var _ Embedder = (*Gemini)(nil)

// NewGemini creates a Gemini embedder. Creating the client does not contact
// the API.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := newConfig(geminiDefaultModel, geminiDefaultDim, geminiMaxBatch, opts)
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("embed: gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.model, dim: cfg.dim, maxBatch: cfg.maxBatch}, nil
}

// Embed returns the embedding for a single text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts, 100 per request.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	dim := int32(g.dim)
	conf := &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: &dim,
	}

	result := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += g.maxBatch {
		end := min(i+g.maxBatch, len(texts))
		contents := make([]*genai.Content, 0, end-i)
		for _, t := range texts[i:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, conf)
		if err != nil {
			return nil, fmt.Errorf("embed: batch [%d:%d]: %w", i, end, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("embed: batch [%d:%d]: got %d embeddings", i, end, len(resp.Embeddings))
		}
		for _, e := range resp.Embeddings {
			if e == nil || len(e.Values) != g.dim {
				return nil, fmt.Errorf("embed: batch [%d:%d]: bad embedding dimension", i, end)
			}
			result = append(result, e.Values)
		}
	}
	return result, nil
}

// Dimension returns the configured vector dimensionality.
func (g *Gemini) Dimension() int { return g.dim }

// Model returns the Gemini model identifier.
func (g *Gemini) Model() string { return g.model }
