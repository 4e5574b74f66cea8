package cli

import (
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is the directory under the user's home holding all
	// tagmatch state.
	DefaultBaseDir = ".tagmatch"

	// DefaultConfigFile is the config file name inside the base directory.
	DefaultConfigFile = "config.yaml"
)

// Paths provides access to the tagmatch directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance rooted at the user's home.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.tagmatch)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.tagmatch/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// ArtifactDir returns the default artifact directory (~/.tagmatch/artifact)
func (p *Paths) ArtifactDir() string {
	return filepath.Join(p.BaseDir(), "artifact")
}

// CacheDir returns the cache directory (~/.tagmatch/cache)
func (p *Paths) CacheDir() string {
	return filepath.Join(p.BaseDir(), "cache")
}

// EmbeddingCacheDir returns the on-disk embedding cache
// (~/.tagmatch/cache/embeddings)
func (p *Paths) EmbeddingCacheDir() string {
	return filepath.Join(p.CacheDir(), "embeddings")
}

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
