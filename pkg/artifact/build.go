package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/embed"
	"github.com/haivivi/tagmatch/pkg/vecstore"
)

// BuildConfig configures [Build].
type BuildConfig struct {
	// Sources are merged in order; the first one is the base.
	Sources []catalog.Source

	// Embedder produces the entry vectors. Nil builds a catalog-only
	// bundle, which serves exact, alias and fuzzy matching.
	Embedder embed.Embedder

	// Policy selects the embedded entries. The zero value means
	// DefaultPolicy.
	Policy SelectionPolicy

	// Index is the vector index kind. Default: IndexHNSW.
	Index IndexKind

	// HNSW tunes the HNSW index. Dim is taken from the embedder.
	HNSW vecstore.HNSWConfig

	// BatchSize is the number of texts per embedding call. Default: 64.
	BatchSize int

	// Concurrency is the number of embedding calls in flight. Default: 4.
	Concurrency int

	// ProgressEvery logs progress after this many embedded entries.
	// Default: 5000.
	ProgressEvery int

	// Logger receives progress and conflict logs. Nil uses slog.Default().
	Logger *slog.Logger
}

func (c *BuildConfig) setDefaults() {
	c.Policy.setDefaults()
	if c.Index == "" {
		c.Index = IndexHNSW
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 5000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Build merges the sources into a catalog, embeds the selected entries and
// fills a vector index. The returned report lists every alias conflict;
// conflicts are resolved and never fail the build.
func Build(ctx context.Context, cfg BuildConfig) (*Bundle, *catalog.Report, error) {
	cfg.setDefaults()
	if len(cfg.Sources) == 0 {
		return nil, nil, errors.New("artifact: build: no sources")
	}
	if cfg.Index != IndexHNSW && cfg.Index != IndexFlat {
		return nil, nil, fmt.Errorf("artifact: build: unknown index kind %q", cfg.Index)
	}

	b := catalog.NewBuilder()
	names := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if err := b.Add(src); err != nil {
			return nil, nil, fmt.Errorf("artifact: build: %w", err)
		}
		names = append(names, src.Name)
	}
	cat, report, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: build: %w", err)
	}
	report.Log(cfg.Logger)

	bundle := &Bundle{
		Manifest: Manifest{Sources: names},
		Catalog:  cat,
	}
	if cfg.Embedder == nil {
		cfg.Logger.Info("artifact: no embedder configured, skipping vectors")
		return bundle, report, nil
	}

	idx, err := embedCatalog(ctx, cat, cfg)
	if err != nil {
		return nil, nil, err
	}
	bundle.Vectors = idx
	bundle.Manifest.Embedding = &EmbeddingInfo{
		Model:     cfg.Embedder.Model(),
		Dimension: idx.Dim(),
		Index:     cfg.Index,
	}
	return bundle, report, nil
}

func embedCatalog(ctx context.Context, cat *catalog.Catalog, cfg BuildConfig) (vecstore.Index, error) {
	var (
		ids   []string
		texts []string
	)
	for e := range cat.All() {
		if cfg.Policy.Selects(e) {
			ids = append(ids, e.Name)
			texts = append(texts, cfg.Policy.Text(e))
		}
	}
	dim := cfg.Embedder.Dimension()
	log := cfg.Logger.With("model", cfg.Embedder.Model(), "dim", dim)
	log.Info("artifact: embedding entries", "selected", len(ids), "entries", cat.Len())

	vecs := make([][]float32, len(texts))
	var done atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for lo := 0; lo < len(texts); lo += cfg.BatchSize {
		hi := min(lo+cfg.BatchSize, len(texts))
		g.Go(func() error {
			out, err := cfg.Embedder.EmbedBatch(gctx, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("artifact: embed entries %d-%d: %w", lo, hi, err)
			}
			if len(out) != hi-lo {
				return fmt.Errorf("artifact: embed entries %d-%d: got %d vectors", lo, hi, len(out))
			}
			copy(vecs[lo:hi], out)
			n := done.Add(int64(hi - lo))
			if n/int64(cfg.ProgressEvery) != (n-int64(hi-lo))/int64(cfg.ProgressEvery) || int(n) == len(texts) {
				elapsed := time.Since(start)
				log.Info("artifact: embedding progress",
					"done", n,
					"total", len(texts),
					"rate", fmt.Sprintf("%.0f/s", float64(n)/max(elapsed.Seconds(), 1e-3)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var idx vecstore.Index
	switch cfg.Index {
	case IndexFlat:
		idx = vecstore.NewFlat(dim)
	default:
		hc := cfg.HNSW
		hc.Dim = dim
		idx = vecstore.NewHNSW(hc)
	}
	// Insert in catalog order so the same inputs give the same graph.
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := idx.Add(id, vecs[i]); err != nil {
			return nil, fmt.Errorf("artifact: index %q: %w", id, err)
		}
	}
	log.Info("artifact: vector index built", "kind", cfg.Index, "vectors", idx.Len(), "elapsed", time.Since(start).Round(time.Millisecond))
	return idx, nil
}
