package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/haivivi/tagmatch/cmd/tagmatch/internal/config"
	"github.com/haivivi/tagmatch/pkg/artifact"
	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/cli"
	"github.com/haivivi/tagmatch/pkg/sources"
	"github.com/haivivi/tagmatch/pkg/vecstore"
)

var (
	buildIndex   string
	buildNoEmbed bool
	buildRemote  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [source.csv ...]",
	Short: "Merge raw tag tables, embed and save the artifact",
	Long: `Merge raw tag tables into a catalog, embed the selected entries and save
the artifact (manifest, catalog and vector index) to the artifact store.

Sources are CSV files with the columns tag, category, count and alias. The
first source is the base: it decides each tag's category. Without
arguments the sources listed under build.sources in the config are used.

Examples:
  tagmatch build danbooru.csv anima.csv
  tagmatch build --index flat --no-embed danbooru.csv
  tagmatch build --remote raw/danbooru.csv   # read sources from the artifact store`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildIndex, "index", "", "vector index: hnsw or flat (default from config)")
	buildCmd.Flags().BoolVar(&buildNoEmbed, "no-embed", false, "build a catalog-only artifact")
	buildCmd.Flags().BoolVar(&buildRemote, "remote", false, "read source files from the artifact store")
	rootCmd.AddCommand(buildCmd)
}

// buildSummary is printed when the build finishes.
type buildSummary struct {
	BuildID   string   `json:"build_id" yaml:"build_id"`
	Store     string   `json:"store" yaml:"store"`
	Sources   []string `json:"sources" yaml:"sources"`
	Entries   int      `json:"entries" yaml:"entries"`
	Aliases   int      `json:"aliases" yaml:"aliases"`
	Vectors   int      `json:"vectors" yaml:"vectors"`
	Conflicts int      `json:"conflicts" yaml:"conflicts"`
	Model     string   `json:"model,omitempty" yaml:"model,omitempty"`
	Elapsed   string   `json:"elapsed" yaml:"elapsed"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := globalConfig
	start := time.Now()

	specs := cfg.Build.Sources
	if len(args) > 0 {
		specs = make([]config.SourceConfig, len(args))
		for i, a := range args {
			specs[i] = config.SourceConfig{Path: a}
		}
	}
	if len(specs) == 0 {
		return errors.New("no sources: pass CSV files or set build.sources in the config")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	unlock, err := lockArtifact(cfg)
	if err != nil {
		return err
	}
	defer unlock()

	srcs := make([]catalog.Source, 0, len(specs))
	for _, s := range specs {
		var src catalog.Source
		if buildRemote {
			src, err = sources.ReadStore(ctx, store, s.Path, s.Name)
		} else {
			src, err = sources.ReadFile(s.Path, s.Name)
		}
		if err != nil {
			return err
		}
		logger.Info("source read", "source", src.Name, "records", len(src.Records))
		srcs = append(srcs, src)
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	index := cfg.Build.Index
	if buildIndex != "" {
		index = buildIndex
	}
	bc := artifact.BuildConfig{
		Sources: srcs,
		Policy:  policy,
		Index:   artifact.IndexKind(index),
		HNSW: vecstore.HNSWConfig{
			M:              cfg.Build.HNSWM,
			EfConstruction: cfg.Build.EfConstruction,
			EfSearch:       cfg.Build.EfSearch,
			Seed:           cfg.Build.Seed,
		},
		BatchSize:   cfg.Build.BatchSize,
		Concurrency: cfg.Build.Concurrency,
		Logger:      logger,
	}
	if !buildNoEmbed {
		e, cleanup, err := openEmbedder(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		bc.Embedder = e
		if e == nil {
			logger.Info("no embedding provider configured; building without vectors")
		}
	}

	bundle, report, err := artifact.Build(ctx, bc)
	if err != nil {
		return err
	}
	if err := artifact.Save(ctx, store, bundle); err != nil {
		return err
	}

	m := bundle.Manifest
	sum := buildSummary{
		BuildID:   m.BuildID,
		Store:     store.String(),
		Sources:   m.Sources,
		Entries:   m.Entries,
		Aliases:   m.Aliases,
		Vectors:   m.Vectors,
		Conflicts: len(report.Conflicts),
		Elapsed:   cli.FormatDuration(time.Since(start)),
	}
	if m.Embedding != nil {
		sum.Model = m.Embedding.Model
	}
	logger.Info("artifact saved", "build_id", m.BuildID, "store", store.String(), "elapsed", sum.Elapsed)
	return output(cmd, sum)
}

// lockArtifact takes an exclusive file lock so two builds never write the
// same artifact. Local artifacts are locked in their own directory; for S3
// the lock lives in ~/.tagmatch and only guards this machine.
func lockArtifact(cfg *config.Config) (func(), error) {
	dir := cfg.Artifact.Dir
	if cfg.Artifact.S3 != nil {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		dir = paths.BaseDir()
	}
	if err := cli.EnsureDir(dir); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, ".build.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("another build holds %s", lock.Path())
	}
	return func() { lock.Unlock() }, nil
}
