// Package artifact persists a built catalog together with its vector index,
// and loads it back at startup.
//
// An artifact is a directory (or object prefix) in a [storage.FileStore]
// holding three files:
//
//	manifest.yaml    build metadata and xxhash64 checksums of the other files
//	catalog.msgpack  catalog entries and alias pairs
//	vectors.idx      vector index in the vecstore binary format (optional)
//
// The manifest is written last, so a reader never sees a manifest that
// describes files from a different build.
package artifact

import (
	"errors"
	"time"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/vecstore"
)

// FormatVersion is the artifact layout version written to the manifest.
const FormatVersion = 1

// File names inside an artifact.
const (
	ManifestFile = "manifest.yaml"
	CatalogFile  = "catalog.msgpack"
	VectorsFile  = "vectors.idx"
)

// ErrCorrupt is returned by Load when the manifest is missing or invalid,
// the catalog is missing or fails its checksum, or a present vector index
// cannot be read. A corrupt artifact must not be served.
var ErrCorrupt = errors.New("artifact: corrupt artifact")

// IndexKind names the vector index implementation.
type IndexKind string

const (
	IndexHNSW IndexKind = "hnsw"
	IndexFlat IndexKind = "flat"
)

// Manifest describes one build.
type Manifest struct {
	Version   int       `yaml:"version"`
	BuildID   string    `yaml:"build_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Sources   []string  `yaml:"sources,omitempty"`

	Entries int `yaml:"entries"`
	Aliases int `yaml:"aliases"`
	Vectors int `yaml:"vectors"`

	// Embedding is nil when the build produced no vectors.
	Embedding *EmbeddingInfo `yaml:"embedding,omitempty"`

	// Checksums maps a file name to its hex xxhash64.
	Checksums map[string]string `yaml:"checksums"`
}

// EmbeddingInfo records how the vectors were produced. Queries must be
// embedded with the same model and dimension.
type EmbeddingInfo struct {
	Model     string    `yaml:"model"`
	Dimension int       `yaml:"dimension"`
	Index     IndexKind `yaml:"index"`
}

// Bundle is everything the match pipeline needs, loaded once and shared
// read-only.
type Bundle struct {
	Manifest Manifest
	Catalog  *catalog.Catalog

	// Vectors is nil when the artifact has no vector index. Matching then
	// runs without the vector stage.
	Vectors vecstore.Index
}

// HasVectors reports whether the bundle carries a non-empty vector index.
func (b *Bundle) HasVectors() bool {
	return b.Vectors != nil && b.Vectors.Len() > 0
}
