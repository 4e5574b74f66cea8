package match

import (
	"fmt"
	"runtime"
	"time"

	"github.com/haivivi/tagmatch/pkg/fuzzy"
)

// PopularityScale selects how popularity is mapped into [0, 1].
type PopularityScale string

const (
	// ScaleLinear uses popularity / max popularity.
	ScaleLinear PopularityScale = "linear"

	// ScaleLog uses log10(popularity) / log10(max popularity), which
	// flattens the long tail.
	ScaleLog PopularityScale = "log"
)

// Config holds every tunable of the pipeline. Start from [DefaultConfig].
type Config struct {
	// MaxResults caps the candidates per query. Zero keeps all.
	MaxResults int

	// StageTimeout bounds each of the fuzzy and vector stages.
	StageTimeout time.Duration

	// FuzzyThreshold is the minimum fuzzy score (0–100).
	FuzzyThreshold float64

	// FuzzyLimit caps the fuzzy stage's hits before merging.
	FuzzyLimit int

	// FuzzyWorkers is the fuzzy scan parallelism. Zero means GOMAXPROCS.
	FuzzyWorkers int

	// VectorK is the number of nearest neighbors requested.
	VectorK int

	// VectorMinScore drops vector hits below this cosine similarity. Zero
	// keeps every hit; it is not replaced by the default.
	VectorMinScore float64

	// ScoreWeight and PopularityWeight blend the similarity and popularity
	// into the fused score.
	ScoreWeight      float64
	PopularityWeight float64

	PopularityScale PopularityScale

	// BatchConcurrency is the number of queries of a batch matched at once.
	BatchConcurrency int

	DisableFuzzy  bool
	DisableVector bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MaxResults:       5,
		StageTimeout:     2 * time.Second,
		FuzzyThreshold:   fuzzy.DefaultThreshold,
		FuzzyLimit:       fuzzy.DefaultLimit,
		VectorK:          10,
		VectorMinScore:   0.3,
		ScoreWeight:      0.9,
		PopularityWeight: 0.1,
		PopularityScale:  ScaleLinear,
		BatchConcurrency: runtime.GOMAXPROCS(0),
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.StageTimeout <= 0 {
		c.StageTimeout = d.StageTimeout
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = d.FuzzyThreshold
	}
	if c.FuzzyLimit <= 0 {
		c.FuzzyLimit = d.FuzzyLimit
	}
	if c.VectorK <= 0 {
		c.VectorK = d.VectorK
	}
	if c.ScoreWeight == 0 && c.PopularityWeight == 0 {
		c.ScoreWeight, c.PopularityWeight = d.ScoreWeight, d.PopularityWeight
	}
	if c.PopularityScale == "" {
		c.PopularityScale = ScaleLinear
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
}

func (c *Config) validate() error {
	switch {
	case c.MaxResults < 0:
		return fmt.Errorf("match: max results %d is negative", c.MaxResults)
	case c.FuzzyThreshold > 100:
		return fmt.Errorf("match: fuzzy threshold %v exceeds 100", c.FuzzyThreshold)
	case c.VectorMinScore < 0 || c.VectorMinScore > 1:
		return fmt.Errorf("match: vector min score %v outside [0, 1]", c.VectorMinScore)
	case c.ScoreWeight < 0 || c.PopularityWeight < 0:
		return fmt.Errorf("match: negative weight (score %v, popularity %v)", c.ScoreWeight, c.PopularityWeight)
	case c.PopularityScale != ScaleLinear && c.PopularityScale != ScaleLog:
		return fmt.Errorf("match: unknown popularity scale %q", c.PopularityScale)
	}
	return nil
}
