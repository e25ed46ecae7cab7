package ports

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Open for unknown storage keys.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore durably stores attachment bytes under generated keys.
type BlobStore interface {
	// Put stores the content and returns the storage key. The issue id
	// scopes the key so one issue's blobs can be removed together.
	Put(ctx context.Context, issueID uint64, filename string, content io.Reader) (string, error)
	// Open returns a reader for the stored bytes, or ErrBlobNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
