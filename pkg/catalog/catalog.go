// Package catalog holds the immutable set of canonical labels and the alias
// index that resolves alternate spellings to them.
//
// A [Catalog] is produced once, either by merging raw sources with a
// [Builder] or by [Restore] from a persisted artifact, and is read-only
// afterwards. It carries no locks: any number of goroutines may query it.
package catalog

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/haivivi/tagmatch/pkg/normalize"
)

// Sentinel errors.
var (
	// ErrMalformed is returned by Restore when the entry or alias data
	// violates a catalog invariant. Serving such a catalog would silently
	// produce wrong matches, so callers treat it as fatal.
	ErrMalformed = errors.New("catalog: malformed catalog")

	// ErrBuildInconsistency classifies alias conflicts found while building.
	// Conflicts are resolved deterministically and reported, never fatal.
	ErrBuildInconsistency = errors.New("catalog: build inconsistency")
)

// Catalog is the immutable in-memory store of canonical entries.
type Catalog struct {
	entries       []Entry // popularity desc, name asc
	byName        map[string]int32
	aliases       *AliasIndex
	maxPopularity int64
}

// Restore rebuilds a catalog from previously built data. Entry names must
// be unique, non-empty and already normalized, with a known category;
// every alias must target an existing entry. Aliases may be nil.
func Restore(entries []Entry, aliases map[string]string) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]int32, len(entries)),
	}
	copy(c.entries, entries)
	for i := range c.entries {
		e := &c.entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty name", ErrMalformed, i)
		}
		if normalize.Normalize(e.Name) != e.Name {
			return nil, fmt.Errorf("%w: entry name %q is not normalized", ErrMalformed, e.Name)
		}
		if e.Popularity < 0 {
			return nil, fmt.Errorf("%w: entry %q has negative popularity", ErrMalformed, e.Name)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("%w: entry %q has unknown category %d", ErrMalformed, e.Name, int(e.Category))
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry name %q", ErrMalformed, e.Name)
		}
		c.byName[e.Name] = 0
	}
	sortEntries(c.entries)
	for i, e := range c.entries {
		c.byName[e.Name] = int32(i)
		c.maxPopularity = max(c.maxPopularity, e.Popularity)
	}

	idx := &AliasIndex{m: make(map[string]string, len(aliases))}
	for alias, target := range aliases {
		if alias == "" || normalize.Normalize(alias) != alias {
			return nil, fmt.Errorf("%w: alias %q is not normalized", ErrMalformed, alias)
		}
		if _, ok := c.byName[target]; !ok {
			return nil, fmt.Errorf("%w: alias %q targets unknown entry %q", ErrMalformed, alias, target)
		}
		if _, ok := c.byName[alias]; ok && alias != target {
			return nil, fmt.Errorf("%w: alias %q collides with canonical name", ErrMalformed, alias)
		}
		idx.m[alias] = target
	}
	c.aliases = idx
	return c, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Popularity != entries[j].Popularity {
			return entries[i].Popularity > entries[j].Popularity
		}
		return entries[i].Name < entries[j].Name
	})
}

// LookupExact returns the entry whose canonical name equals name. The
// argument must already be normalized.
func (c *Catalog) LookupExact(name string) (Entry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Contains reports whether name is a canonical name.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// All iterates over every entry, most popular first, ties by name.
func (c *Catalog) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range c.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// MaxPopularity returns the largest popularity in the catalog.
func (c *Catalog) MaxPopularity() int64 { return c.maxPopularity }

// Aliases returns the alias index built with the catalog. It is never nil.
func (c *Catalog) Aliases() *AliasIndex { return c.aliases }

// SearchPrefix returns up to limit entries whose name starts with the
// normalized prefix, most popular first. A non-positive limit means 10.
func (c *Catalog) SearchPrefix(prefix string, limit int) []Entry {
	if limit <= 0 {
		limit = 10
	}
	p := normalize.Normalize(prefix)
	if p == "" {
		return nil
	}
	var out []Entry
	for _, e := range c.entries {
		if strings.HasPrefix(e.Name, p) {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}
