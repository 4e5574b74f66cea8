package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/tagmatch/pkg/artifact"
	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/cli"
	"github.com/haivivi/tagmatch/pkg/match"
)

func testPaths(t *testing.T) *cli.Paths {
	t.Helper()
	t.Setenv(EnvConfig, "")
	return &cli.Paths{HomeDir: t.TempDir()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	paths := testPaths(t)
	cfg, err := LoadWith(paths, "")
	if err != nil {
		t.Fatalf("LoadWith error: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty for defaults", cfg.Path)
	}
	if cfg.Artifact.Dir != paths.ArtifactDir() {
		t.Errorf("Artifact.Dir = %q", cfg.Artifact.Dir)
	}
	if cfg.Embedding.Provider != ProviderNone {
		t.Errorf("Provider = %q", cfg.Embedding.Provider)
	}
	if got, want := cfg.MatchConfig(), match.DefaultConfig(); got != want {
		t.Errorf("MatchConfig() = %+v, want %+v", got, want)
	}
}

func TestLoadYAML(t *testing.T) {
	paths := testPaths(t)
	path := writeFile(t, "tagmatch.yaml", `
artifact:
  dir: ~/tags
embedding:
  provider: hash
cache:
  kind: none
matching:
  max_results: 3
  stage_timeout: 150ms
  popularity_scale: log
build:
  index: flat
  sources:
    - path: a.csv
    - {path: b.csv, name: extra}
  min_popularity:
    artist: 10
    meta: -1
log:
  format: json
  level: debug
`)
	cfg, err := LoadWith(paths, path)
	if err != nil {
		t.Fatalf("LoadWith error: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	if want := filepath.Join(paths.HomeDir, "tags"); cfg.Artifact.Dir != want {
		t.Errorf("Artifact.Dir = %q, want %q", cfg.Artifact.Dir, want)
	}
	if cfg.Embedding.Dimension != 256 {
		t.Errorf("hash Dimension = %d, want 256", cfg.Embedding.Dimension)
	}

	m := cfg.MatchConfig()
	if m.MaxResults != 3 || m.StageTimeout != 150*time.Millisecond || m.PopularityScale != match.ScaleLog {
		t.Errorf("MatchConfig() = %+v", m)
	}
	// Unset keys keep their defaults.
	if m.FuzzyThreshold != match.DefaultConfig().FuzzyThreshold {
		t.Errorf("FuzzyThreshold = %v", m.FuzzyThreshold)
	}

	if len(cfg.Build.Sources) != 2 || cfg.Build.Sources[1].Name != "extra" {
		t.Errorf("Sources = %+v", cfg.Build.Sources)
	}
	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if p.MinPopularity[catalog.Artist] != 10 || p.MinPopularity[catalog.Copyright] != 100 {
		t.Errorf("MinPopularity = %v", p.MinPopularity)
	}
	if _, ok := p.MinPopularity[catalog.Meta]; ok {
		t.Errorf("meta should not be embedded: %v", p.MinPopularity)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoadTOML(t *testing.T) {
	paths := testPaths(t)
	path := writeFile(t, "tagmatch.toml", `
[artifact.s3]
bucket = "tags"
prefix = "v3"
region = "us-east-1"

[embedding]
provider = "openai"
model = "text-embedding-3-small"
api_key_env = "TAGMATCH_TEST_KEY"

[matching]
stage_timeout = "1s"
disable_vector = true
`)
	t.Setenv("TAGMATCH_TEST_KEY", "sk-test")
	cfg, err := LoadWith(paths, path)
	if err != nil {
		t.Fatalf("LoadWith error: %v", err)
	}
	if cfg.Artifact.S3 == nil || cfg.Artifact.S3.Bucket != "tags" || cfg.Artifact.S3.Prefix != "v3" {
		t.Errorf("S3 = %+v", cfg.Artifact.S3)
	}
	if cfg.Embedding.APIKey() != "sk-test" {
		t.Errorf("APIKey() = %q", cfg.Embedding.APIKey())
	}
	m := cfg.MatchConfig()
	if m.StageTimeout != time.Second || !m.DisableVector {
		t.Errorf("MatchConfig() = %+v", m)
	}
}

func TestLoadFromEnv(t *testing.T) {
	paths := testPaths(t)
	path := writeFile(t, "env.yaml", "matching:\n  max_results: 9\n")
	t.Setenv(EnvConfig, path)
	cfg, err := LoadWith(paths, "")
	if err != nil {
		t.Fatalf("LoadWith error: %v", err)
	}
	if cfg.Matching.MaxResults != 9 {
		t.Errorf("MaxResults = %d", cfg.Matching.MaxResults)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"provider", "embedding:\n  provider: cohere\n"},
		{"cache", "cache:\n  kind: memcached\n"},
		{"redis addr", "cache:\n  kind: redis\n"},
		{"bucket", "artifact:\n  s3:\n    prefix: x\n"},
		{"index", "build:\n  index: ivf\n"},
		{"category", "build:\n  min_popularity:\n    nope: 1\n"},
		{"log format", "log:\n  format: xml\n"},
		{"log level", "log:\n  level: loud\n"},
		{"duration", "matching:\n  stage_timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := testPaths(t)
			if _, err := LoadWith(paths, writeFile(t, "c.yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	paths := testPaths(t)
	if _, err := LoadWith(paths, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit missing file should fail")
	}
}

func TestDefaultPolicy(t *testing.T) {
	cfg := Default(&cli.Paths{HomeDir: t.TempDir()})
	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	want := artifact.DefaultPolicy()
	if len(p.MinPopularity) != len(want.MinPopularity) {
		t.Errorf("Policy() = %+v, want %+v", p, want)
	}
	for cat, floor := range want.MinPopularity {
		if p.MinPopularity[cat] != floor {
			t.Errorf("MinPopularity[%v] = %d, want %d", cat, p.MinPopularity[cat], floor)
		}
	}
}
