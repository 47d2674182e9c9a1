// Package blobstore abstracts where cold snapshots and manifests live.
//
// Snapshots are written whole after a promotion and read whole on open,
// so the interface is deliberately coarse: Put/Get on full blobs rather
// than ranged reads.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blobstore: blob not found")

// BlobStore is an abstraction for storing immutable data blobs
// (cold snapshots, manifests).
type BlobStore interface {
	// Put writes a blob atomically, replacing any existing blob with
	// the same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob in full.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
