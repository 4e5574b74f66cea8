// Package config loads the tagmatch CLI configuration.
//
// The configuration is one YAML or TOML file (chosen by extension) found at,
// in order: the --config flag, $TAGMATCH_CONFIG, ~/.tagmatch/config.yaml.
// A missing default file means all defaults. Example:
//
//	artifact:
//	  dir: ~/.tagmatch/artifact      # or s3: {bucket: tags, prefix: v3}
//	embedding:
//	  provider: openai               # openai | dashscope | gemini | hash | none
//	  model: text-embedding-3-small
//	  api_key_env: OPENAI_API_KEY
//	cache:
//	  kind: badger                   # badger | redis | none
//	matching:
//	  max_results: 5
//	  stage_timeout: 2s
//	  popularity_scale: log
//	build:
//	  index: hnsw
//	  sources:
//	    - {path: danbooru.csv}
//	    - {path: anima.csv, name: anima}
//	log:
//	  format: text
//	  level: info
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haivivi/tagmatch/pkg/artifact"
	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/cli"
	"github.com/haivivi/tagmatch/pkg/match"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "TAGMATCH_CONFIG"

// Config is the whole CLI configuration.
type Config struct {
	// Path is the file the configuration was read from; empty when the
	// defaults are in use.
	Path string `yaml:"-" json:"-" toml:"-"`

	Artifact  ArtifactConfig  `yaml:"artifact" json:"artifact" toml:"artifact"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding" toml:"embedding"`
	Cache     CacheConfig     `yaml:"cache" json:"cache" toml:"cache"`
	Matching  MatchingConfig  `yaml:"matching" json:"matching" toml:"matching"`
	Build     BuildConfig     `yaml:"build" json:"build" toml:"build"`
	Log       LogConfig       `yaml:"log" json:"log" toml:"log"`
}

// ArtifactConfig locates the artifact: a local directory, or an S3 prefix
// when S3 is set.
type ArtifactConfig struct {
	Dir string    `yaml:"dir" json:"dir" toml:"dir"`
	S3  *S3Config `yaml:"s3,omitempty" json:"s3,omitempty" toml:"s3,omitempty"`
}

// S3Config addresses an S3 (or S3-compatible) bucket. Credentials come
// from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
type S3Config struct {
	Bucket    string `yaml:"bucket" json:"bucket" toml:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix" toml:"prefix"`
	Region    string `yaml:"region" json:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint" toml:"endpoint"`
	PathStyle bool   `yaml:"path_style" json:"path_style" toml:"path_style"`
}

// Embedding providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderDashScope = "dashscope"
	ProviderGemini    = "gemini"
	ProviderHash      = "hash"
)

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" json:"provider" toml:"provider"`
	Model     string `yaml:"model" json:"model" toml:"model"`
	Dimension int    `yaml:"dimension" json:"dimension" toml:"dimension"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env" toml:"api_key_env"`
	BaseURL   string `yaml:"base_url" json:"base_url" toml:"base_url"`
	MaxBatch  int    `yaml:"max_batch" json:"max_batch" toml:"max_batch"`
}

// APIKey reads the key from the configured environment variable, falling
// back to the provider's conventional one.
func (c EmbeddingConfig) APIKey() string {
	env := c.APIKeyEnv
	if env == "" {
		switch c.Provider {
		case ProviderOpenAI:
			env = "OPENAI_API_KEY"
		case ProviderDashScope:
			env = "DASHSCOPE_API_KEY"
		case ProviderGemini:
			env = "GEMINI_API_KEY"
		}
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// Cache kinds.
const (
	CacheNone   = "none"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// CacheConfig selects the embedding cache.
type CacheConfig struct {
	Kind string `yaml:"kind" json:"kind" toml:"kind"`

	// Dir is the badger directory. Default: ~/.tagmatch/cache/embeddings.
	Dir string `yaml:"dir" json:"dir" toml:"dir"`

	RedisAddr   string   `yaml:"redis_addr" json:"redis_addr" toml:"redis_addr"`
	RedisPrefix string   `yaml:"redis_prefix" json:"redis_prefix" toml:"redis_prefix"`
	TTL         Duration `yaml:"ttl" json:"ttl" toml:"ttl"`
}

// MatchingConfig mirrors [match.Config].
type MatchingConfig struct {
	MaxResults       int      `yaml:"max_results" json:"max_results" toml:"max_results"`
	StageTimeout     Duration `yaml:"stage_timeout" json:"stage_timeout" toml:"stage_timeout"`
	FuzzyThreshold   float64  `yaml:"fuzzy_threshold" json:"fuzzy_threshold" toml:"fuzzy_threshold"`
	FuzzyLimit       int      `yaml:"fuzzy_limit" json:"fuzzy_limit" toml:"fuzzy_limit"`
	FuzzyWorkers     int      `yaml:"fuzzy_workers" json:"fuzzy_workers" toml:"fuzzy_workers"`
	VectorK          int      `yaml:"vector_k" json:"vector_k" toml:"vector_k"`
	VectorMinScore   float64  `yaml:"vector_min_score" json:"vector_min_score" toml:"vector_min_score"`
	ScoreWeight      float64  `yaml:"score_weight" json:"score_weight" toml:"score_weight"`
	PopularityWeight float64  `yaml:"popularity_weight" json:"popularity_weight" toml:"popularity_weight"`
	PopularityScale  string   `yaml:"popularity_scale" json:"popularity_scale" toml:"popularity_scale"`
	BatchConcurrency int      `yaml:"batch_concurrency" json:"batch_concurrency" toml:"batch_concurrency"`
	DisableFuzzy     bool     `yaml:"disable_fuzzy" json:"disable_fuzzy" toml:"disable_fuzzy"`
	DisableVector    bool     `yaml:"disable_vector" json:"disable_vector" toml:"disable_vector"`
}

// BuildConfig configures `tagmatch build`.
type BuildConfig struct {
	// Sources are merged in order; the first is the base.
	Sources []SourceConfig `yaml:"sources" json:"sources" toml:"sources"`

	Index          string `yaml:"index" json:"index" toml:"index"`
	BatchSize      int    `yaml:"batch_size" json:"batch_size" toml:"batch_size"`
	Concurrency    int    `yaml:"concurrency" json:"concurrency" toml:"concurrency"`
	HNSWM          int    `yaml:"hnsw_m" json:"hnsw_m" toml:"hnsw_m"`
	EfConstruction int    `yaml:"ef_construction" json:"ef_construction" toml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search" json:"ef_search" toml:"ef_search"`
	Seed           uint64 `yaml:"seed" json:"seed" toml:"seed"`

	// MinPopularity overrides the embedding thresholds per category name
	// (general, artist, copyright, character, meta).
	MinPopularity map[string]int64 `yaml:"min_popularity" json:"min_popularity" toml:"min_popularity"`
	MaxAliases    int              `yaml:"max_aliases" json:"max_aliases" toml:"max_aliases"`
}

// SourceConfig is one raw tag table.
type SourceConfig struct {
	Path string `yaml:"path" json:"path" toml:"path"`
	Name string `yaml:"name" json:"name" toml:"name"`
}

// LogConfig configures the stderr logger.
type LogConfig struct {
	Format string `yaml:"format" json:"format" toml:"format"` // text | json
	Level  string `yaml:"level" json:"level" toml:"level"`    // debug | info | warn | error
}

// Duration is a time.Duration written as "2s" or "150ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file exists.
func Default(paths *cli.Paths) *Config {
	m := match.DefaultConfig()
	return &Config{
		Artifact:  ArtifactConfig{Dir: paths.ArtifactDir()},
		Embedding: EmbeddingConfig{Provider: ProviderNone},
		Cache:     CacheConfig{Kind: CacheBadger, Dir: paths.EmbeddingCacheDir()},
		Matching: MatchingConfig{
			MaxResults:       m.MaxResults,
			StageTimeout:     Duration(m.StageTimeout),
			FuzzyThreshold:   m.FuzzyThreshold,
			FuzzyLimit:       m.FuzzyLimit,
			VectorK:          m.VectorK,
			VectorMinScore:   m.VectorMinScore,
			ScoreWeight:      m.ScoreWeight,
			PopularityWeight: m.PopularityWeight,
			PopularityScale:  string(m.PopularityScale),
			BatchConcurrency: m.BatchConcurrency,
		},
		Build: BuildConfig{Index: string(artifact.IndexHNSW)},
		Log:   LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads the configuration. An explicit path (or $TAGMATCH_CONFIG) must
// exist; the default location may be absent.
func Load(path string) (*Config, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return LoadWith(paths, path)
}

// LoadWith is Load with an explicit home layout.
func LoadWith(paths *cli.Paths, path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path, explicit = paths.ConfigFile(), false
	}

	cfg := Default(paths)
	if err := cli.LoadFile(path, cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Path = path
	cfg.expandHome(paths.HomeDir)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expandHome(home string) {
	for _, p := range []*string{&c.Artifact.Dir, &c.Cache.Dir} {
		if *p == "~" || strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, strings.TrimPrefix(*p, "~"))
		}
	}
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case ProviderNone, ProviderOpenAI, ProviderDashScope, ProviderGemini, ProviderHash:
	case "":
		c.Embedding.Provider = ProviderNone
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == ProviderHash && c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 256
	}
	switch c.Cache.Kind {
	case CacheNone, CacheBadger:
	case "":
		c.Cache.Kind = CacheNone
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache kind %q", c.Cache.Kind)
	}
	if c.Artifact.S3 != nil && c.Artifact.S3.Bucket == "" {
		return errors.New("artifact.s3.bucket is required")
	}
	switch artifact.IndexKind(c.Build.Index) {
	case artifact.IndexHNSW, artifact.IndexFlat:
	default:
		return fmt.Errorf("unknown index kind %q", c.Build.Index)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level; empty means info.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// MatchConfig converts the matching section.
func (c *Config) MatchConfig() match.Config {
	m := c.Matching
	return match.Config{
		MaxResults:       m.MaxResults,
		StageTimeout:     time.Duration(m.StageTimeout),
		FuzzyThreshold:   m.FuzzyThreshold,
		FuzzyLimit:       m.FuzzyLimit,
		FuzzyWorkers:     m.FuzzyWorkers,
		VectorK:          m.VectorK,
		VectorMinScore:   m.VectorMinScore,
		ScoreWeight:      m.ScoreWeight,
		PopularityWeight: m.PopularityWeight,
		PopularityScale:  match.PopularityScale(m.PopularityScale),
		BatchConcurrency: m.BatchConcurrency,
		DisableFuzzy:     m.DisableFuzzy,
		DisableVector:    m.DisableVector,
	}
}

// Policy converts the build thresholds into an embedding selection policy:
// [artifact.DefaultPolicy] with the configured categories overridden. A
// negative threshold stops a category from being embedded.
func (c *Config) Policy() (artifact.SelectionPolicy, error) {
	p := artifact.DefaultPolicy()
	p.MaxAliases = c.Build.MaxAliases
	for name, floor := range c.Build.MinPopularity {
		cat, err := catalog.ParseCategory(name)
		if err != nil {
			return p, fmt.Errorf("build.min_popularity: %w", err)
		}
		if floor < 0 {
			delete(p.MinPopularity, cat)
			continue
		}
		p.MinPopularity[cat] = floor
	}
	return p, nil
}
