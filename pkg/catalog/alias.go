package catalog

import (
	"iter"
	"sort"
)

// AliasIndex maps normalized alias strings to canonical entry names.
// Keys are unique; it is immutable once its catalog is built.
type AliasIndex struct {
	m map[string]string
}

// LookupAlias returns the canonical name registered for alias. The argument
// must already be normalized.
func (a *AliasIndex) LookupAlias(alias string) (string, bool) {
	name, ok := a.m[alias]
	return name, ok
}

// Len returns the number of indexed aliases.
func (a *AliasIndex) Len() int { return len(a.m) }

// All iterates alias → canonical name pairs in alias order.
func (a *AliasIndex) All() iter.Seq2[string, string] {
	keys := make([]string, 0, len(a.m))
	for k := range a.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return func(yield func(string, string) bool) {
		for _, k := range keys {
			if !yield(k, a.m[k]) {
				return
			}
		}
	}
}

// Map returns a copy of the index as a plain map.
func (a *AliasIndex) Map() map[string]string {
	out := make(map[string]string, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}
