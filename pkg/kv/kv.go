// Package kv provides the small key-value store used to persist embedding
// vectors between runs.
//
// Keys are hierarchical paths such as ["emb", "text-embedding-3-small",
// "1f3a..."] joined with ':'. The package includes a BadgerDB-backed store
// for the on-disk cache and an in-memory store for tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments. Segments must not contain it.
const Separator = ":"

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, Separator)
}

func (k Key) bytes() []byte { return []byte(k.String()) }

// prefixBytes returns the encoded scan prefix for k. A non-empty prefix
// ends with the separator so ["a","b"] does not match "a:bc".
func (k Key) prefixBytes() []byte {
	if len(k) == 0 {
		return nil
	}
	return []byte(k.String() + Separator)
}

func parseKey(b []byte) Key {
	return Key(strings.Split(string(b), Separator))
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// BatchSet stores multiple key-value pairs in one write.
	BatchSet(ctx context.Context, entries []Entry) error

	// List iterates over all entries under prefix in lexicographic key
	// order. An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// DeletePrefix removes every key under prefix and returns how many
	// were removed.
	DeletePrefix(ctx context.Context, prefix Key) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
