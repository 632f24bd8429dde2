// Package blobstore stores opaque named blobs such as workspace memory
// snapshots.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It maps to
// os.ErrNotExist so callers can use either with errors.Is.
var ErrNotFound = os.ErrNotExist

// Store reads and writes whole blobs. Put replaces a blob atomically.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete succeeds when the blob is already gone.
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
