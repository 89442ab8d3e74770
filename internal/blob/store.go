// Package blob stores uploaded source files as opaque objects. The
// document index keeps object keys only; originals live here, so a
// re-ingestion can always recover the exact bytes it started from.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store provides object storage for uploaded source files. All content
// operations stream through io.Reader so large uploads never have to fit
// in memory.
//
// Put is idempotent: storing the same key twice replaces the object.
// Delete is idempotent: deleting a missing key is not an error.
type Store interface {
	// Put stores the object under key. size is the number of bytes that
	// will be read from r, or -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the object for reading. The caller must close the
	// returned reader. Returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat describes the object without reading it. Returns ErrNotFound
	// for a missing key.
	Stat(ctx context.Context, key string) (*Info, error)

	// Delete removes the object.
	Delete(ctx context.Context, key string) error
}
