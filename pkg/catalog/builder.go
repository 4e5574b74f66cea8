package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/haivivi/tagmatch/pkg/normalize"
)

// Record is one row of a raw tag source.
type Record struct {
	Name       string
	Category   Category
	Popularity int64
	Aliases    []string
}

// Source is a named table of raw records.
type Source struct {
	Name    string
	Records []Record
}

// ConflictKind classifies a [Conflict].
type ConflictKind uint8

const (
	// DuplicateAlias: the same normalized alias is attached to two entries.
	DuplicateAlias ConflictKind = iota + 1

	// ShadowedAlias: an alias of one entry equals another entry's name.
	ShadowedAlias
)

func (k ConflictKind) String() string {
	switch k {
	case DuplicateAlias:
		return "duplicate_alias"
	case ShadowedAlias:
		return "shadowed_alias"
	default:
		return "unknown"
	}
}

// Conflict is an alias inconsistency found during a build.
//
// For DuplicateAlias, Kept is the entry the alias resolves to and Dropped the
// losing entry: the higher-popularity target wins, equal popularity falls
// back to the lexicographically smaller name. For ShadowedAlias, Kept is the
// entry owning the canonical name and Dropped the entry whose alias was
// discarded.
type Conflict struct {
	Kind    ConflictKind
	Alias   string
	Kept    string
	Dropped string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("catalog: %s %q: kept %q, dropped %q", c.Kind, c.Alias, c.Kept, c.Dropped)
}

// Unwrap makes errors.Is(c, ErrBuildInconsistency) hold.
func (c Conflict) Unwrap() error { return ErrBuildInconsistency }

// SourceStats counts what one source contributed.
type SourceStats struct {
	Name    string
	Records int
	Added   int // entries first defined by this source
	Merged  int // records folded into an existing entry
	Skipped int // records whose name normalized to ""
	Clamped int // negative popularity values raised to 0
}

// Report summarizes a build.
type Report struct {
	Sources   []SourceStats
	Entries   int
	Aliases   int
	Conflicts []Conflict
}

// Err joins all conflicts into one error, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Conflicts))
	for i, c := range r.Conflicts {
		errs[i] = c
	}
	return errors.Join(errs...)
}

// Log writes the report to logger: one info line and one warn line per
// conflict.
func (r *Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range r.Sources {
		logger.Info("catalog: source merged",
			"source", s.Name, "records", s.Records, "added", s.Added,
			"merged", s.Merged, "skipped", s.Skipped, "clamped", s.Clamped)
	}
	for _, c := range r.Conflicts {
		logger.Warn("catalog: alias conflict",
			"kind", c.Kind.String(), "alias", c.Alias, "kept", c.Kept, "dropped", c.Dropped)
	}
	logger.Info("catalog: built", "entries", r.Entries, "aliases", r.Aliases, "conflicts", len(r.Conflicts))
}

// Builder merges raw sources into a [Catalog].
//
// The first source added is the base: it supplies the category of every
// entry it defines. Across sources, aliases are unioned and popularity is
// the maximum. A Builder is not safe for concurrent use.
type Builder struct {
	entries map[string]*pending
	stats   []SourceStats
}

type pending struct {
	entry   Entry
	aliases map[string]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]*pending)}
}

// Add merges one source. Sources must be added base first. A record with
// an unknown category fails the whole source.
func (b *Builder) Add(src Source) error {
	idx := len(b.stats)
	if idx >= MaxSources {
		return fmt.Errorf("catalog: too many sources (max %d)", MaxSources)
	}
	flag := SourceFlags(1) << uint(idx)
	st := SourceStats{Name: src.Name, Records: len(src.Records)}

	for _, r := range src.Records {
		name := normalize.Normalize(r.Name)
		if name == "" {
			st.Skipped++
			continue
		}
		if !r.Category.Valid() {
			return fmt.Errorf("catalog: source %s: %q has unknown category %d", src.Name, r.Name, int(r.Category))
		}
		pop := r.Popularity
		if pop < 0 {
			pop = 0
			st.Clamped++
		}
		p, ok := b.entries[name]
		if !ok {
			p = &pending{
				entry:   Entry{Name: name, Category: r.Category, Popularity: pop},
				aliases: make(map[string]struct{}),
			}
			b.entries[name] = p
			st.Added++
		} else {
			p.entry.Popularity = max(p.entry.Popularity, pop)
			st.Merged++
		}
		p.entry.Sources |= flag
		for _, a := range r.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				p.aliases[a] = struct{}{}
			}
		}
	}
	b.stats = append(b.stats, st)
	return nil
}

// Build freezes the merged entries into a catalog and builds its alias
// index. The builder must not be reused afterwards.
func (b *Builder) Build() (*Catalog, *Report, error) {
	entries := make([]Entry, 0, len(b.entries))
	for _, p := range b.entries {
		e := p.entry
		e.Aliases = make([]string, 0, len(p.aliases))
		for a := range p.aliases {
			e.Aliases = append(e.Aliases, a)
		}
		sort.Strings(e.Aliases)
		entries = append(entries, e)
	}
	sortEntries(entries)

	report := &Report{Sources: b.stats, Entries: len(entries)}
	aliases := buildAliases(entries, b.entries, report)
	report.Aliases = len(aliases)

	c, err := Restore(entries, aliases)
	if err != nil {
		return nil, report, err
	}
	return c, report, nil
}

func buildAliases(entries []Entry, byName map[string]*pending, report *Report) map[string]string {
	out := make(map[string]string)
	for _, e := range entries {
		seen := make(map[string]struct{}, len(e.Aliases))
		for _, raw := range e.Aliases {
			a := normalize.Normalize(raw)
			if a == "" || a == e.Name {
				continue
			}
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}

			if _, isName := byName[a]; isName {
				report.Conflicts = append(report.Conflicts, Conflict{
					Kind: ShadowedAlias, Alias: a, Kept: a, Dropped: e.Name,
				})
				continue
			}
			cur, taken := out[a]
			if !taken {
				out[a] = e.Name
				continue
			}
			winner, loser := cur, e.Name
			if preferTarget(byName[e.Name].entry, byName[cur].entry) {
				winner, loser = e.Name, cur
			}
			out[a] = winner
			report.Conflicts = append(report.Conflicts, Conflict{
				Kind: DuplicateAlias, Alias: a, Kept: winner, Dropped: loser,
			})
		}
	}
	return out
}

// preferTarget reports whether a should own a contested alias over b.
func preferTarget(a, b Entry) bool {
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	return a.Name < b.Name
}
