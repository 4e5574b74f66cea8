package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/storage"
	"github.com/haivivi/tagmatch/pkg/vecstore"
)

// catalogHeader opens the catalog.msgpack stream. It is followed by
// Entries encoded entries and Aliases encoded alias pairs.
type catalogHeader struct {
	Version int `msgpack:"v"`
	Entries int `msgpack:"e"`
	Aliases int `msgpack:"a"`
}

type aliasPair struct {
	Alias  string `msgpack:"a"`
	Target string `msgpack:"t"`
}

// Upper bounds accepted when decoding a catalog header.
const (
	maxEntries = 1 << 24
	maxAliases = 1 << 26
)

// Save writes b to store. Missing manifest fields (build ID, creation time,
// counts, checksums) are filled in; the completed manifest is stored back
// into b. A stale vectors.idx is removed when b has no vectors.
func Save(ctx context.Context, store storage.FileStore, b *Bundle) error {
	if b == nil || b.Catalog == nil {
		return errors.New("artifact: save: bundle has no catalog")
	}
	m := b.Manifest
	m.Version = FormatVersion
	if m.BuildID == "" {
		m.BuildID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Entries = b.Catalog.Len()
	m.Aliases = b.Catalog.Aliases().Len()
	m.Checksums = make(map[string]string, 2)

	sum, err := writeFile(ctx, store, CatalogFile, func(w io.Writer) error {
		return encodeCatalog(w, b.Catalog)
	})
	if err != nil {
		return err
	}
	m.Checksums[CatalogFile] = sum

	if b.Vectors != nil {
		sum, err := writeFile(ctx, store, VectorsFile, b.Vectors.Save)
		if err != nil {
			return err
		}
		m.Checksums[VectorsFile] = sum
		m.Vectors = b.Vectors.Len()
		if m.Embedding != nil {
			m.Embedding.Dimension = b.Vectors.Dim()
		}
	} else {
		m.Vectors = 0
		m.Embedding = nil
		if err := store.Delete(ctx, VectorsFile); err != nil {
			return fmt.Errorf("artifact: remove stale %s: %w", VectorsFile, err)
		}
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("artifact: encode manifest: %w", err)
	}
	if _, err := writeFile(ctx, store, ManifestFile, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return err
	}
	b.Manifest = m
	return nil
}

// writeFile streams fn's output to name and returns its checksum. The file
// is aborted on any error so the previous version stays in place.
func writeFile(ctx context.Context, store storage.FileStore, name string, fn func(io.Writer) error) (string, error) {
	w, err := store.Write(ctx, name)
	if err != nil {
		return "", fmt.Errorf("artifact: create %s: %w", name, err)
	}
	h := xxhash.New()
	if err := fn(io.MultiWriter(w, h)); err != nil {
		storage.Abort(w)
		return "", fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("artifact: commit %s: %w", name, err)
	}
	return checksum(h.Sum64()), nil
}

func checksum(sum uint64) string { return fmt.Sprintf("%016x", sum) }

func encodeCatalog(w io.Writer, cat *catalog.Catalog) error {
	enc := msgpack.NewEncoder(w)
	aliases := cat.Aliases()
	if err := enc.Encode(catalogHeader{
		Version: FormatVersion,
		Entries: cat.Len(),
		Aliases: aliases.Len(),
	}); err != nil {
		return err
	}
	for e := range cat.All() {
		if err := enc.Encode(&e); err != nil {
			return err
		}
	}
	for alias, target := range aliases.All() {
		if err := enc.Encode(aliasPair{Alias: alias, Target: target}); err != nil {
			return err
		}
	}
	return nil
}

// Load reads an artifact from store.
//
// A missing or invalid manifest, a missing catalog, or any checksum
// mismatch returns an error wrapping [ErrCorrupt]. A missing vectors.idx is
// not an error: the bundle is returned without vectors and a warning is
// logged. A nil logger uses slog.Default().
func Load(ctx context.Context, store storage.FileStore, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := loadManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	var cat *catalog.Catalog
	if err := readFile(ctx, store, CatalogFile, m.Checksums[CatalogFile], func(r io.Reader) error {
		cat, err = decodeCatalog(r)
		return err
	}); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s is missing", ErrCorrupt, CatalogFile)
		}
		return nil, err
	}
	if cat.Len() != m.Entries {
		return nil, fmt.Errorf("%w: manifest lists %d entries, catalog has %d", ErrCorrupt, m.Entries, cat.Len())
	}
	b := &Bundle{Manifest: m, Catalog: cat}

	var idx vecstore.Index
	err = readFile(ctx, store, VectorsFile, m.Checksums[VectorsFile], func(r io.Reader) error {
		idx, err = vecstore.Load(r)
		return err
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if m.Vectors > 0 {
			logger.Warn("artifact: vector index missing, serving without vector search",
				"store", store.String(), "build_id", m.BuildID)
		}
		return b, nil
	case err != nil:
		return nil, err
	}
	if m.Embedding != nil && idx.Dim() != m.Embedding.Dimension {
		return nil, fmt.Errorf("%w: vector dimension %d, manifest says %d", ErrCorrupt, idx.Dim(), m.Embedding.Dimension)
	}
	b.Vectors = idx
	logger.Debug("artifact: loaded",
		"store", store.String(),
		"build_id", m.BuildID,
		"entries", cat.Len(),
		"aliases", cat.Aliases().Len(),
		"vectors", idx.Len())
	return b, nil
}

func loadManifest(ctx context.Context, store storage.FileStore) (Manifest, error) {
	var m Manifest
	rc, err := store.Read(ctx, ManifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, fmt.Errorf("%w: %s is missing in %s", ErrCorrupt, ManifestFile, store)
		}
		return m, fmt.Errorf("artifact: open %s: %w", ManifestFile, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return m, fmt.Errorf("artifact: read %s: %w", ManifestFile, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %s: %w", ErrCorrupt, ManifestFile, err)
	}
	if m.Version != FormatVersion {
		return m, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, m.Version)
	}
	if m.Checksums[CatalogFile] == "" {
		return m, fmt.Errorf("%w: manifest has no checksum for %s", ErrCorrupt, CatalogFile)
	}
	return m, nil
}

// readFile passes name's content to fn and verifies it against want. An
// empty want skips verification. Open errors are returned unwrapped so the
// caller can tell a missing file from a bad one.
func readFile(ctx context.Context, store storage.FileStore, name, want string, fn func(io.Reader) error) error {
	rc, err := store.Read(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := xxhash.New()
	tee := io.TeeReader(rc, h)
	if err := fn(tee); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	// The decoder may stop before EOF; the checksum covers the whole file.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return fmt.Errorf("artifact: read %s: %w", name, err)
	}
	if got := checksum(h.Sum64()); want != "" && got != want {
		return fmt.Errorf("%w: %s checksum %s, manifest says %s", ErrCorrupt, name, got, want)
	}
	return nil
}

func decodeCatalog(r io.Reader) (*catalog.Catalog, error) {
	dec := msgpack.NewDecoder(r)
	var hdr catalogHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported catalog version %d", hdr.Version)
	}
	if hdr.Entries < 0 || hdr.Entries > maxEntries || hdr.Aliases < 0 || hdr.Aliases > maxAliases {
		return nil, fmt.Errorf("implausible counts %d entries, %d aliases", hdr.Entries, hdr.Aliases)
	}
	entries := make([]catalog.Entry, hdr.Entries)
	for i := range entries {
		if err := dec.Decode(&entries[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	aliases := make(map[string]string, hdr.Aliases)
	for i := range hdr.Aliases {
		var p aliasPair
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("alias %d: %w", i, err)
		}
		aliases[p.Alias] = p.Target
	}
	return catalog.Restore(entries, aliases)
}
