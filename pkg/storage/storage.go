// Package storage defines the FileStore interface used to persist and load
// match artifacts. It abstracts the backend so the same artifact can live in
// a local directory or an S3 bucket.
//
// Writes are all-or-nothing: data becomes visible under its path only when
// the writer is closed successfully. A writer abandoned with [Abort] leaves
// the previous file, if any, untouched.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The new content replaces the
	// old one when the returned writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// String describes the store location for logs, e.g. "file:///data"
	// or "s3://bucket/prefix".
	String() string
}

// Aborter is implemented by writers that can discard their pending data.
type Aborter interface {
	Abort() error
}

// Abort discards w's pending data if it supports it, and closes it
// otherwise.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}
