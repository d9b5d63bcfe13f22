package repository

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by a BlobStore when the key has never been written.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists opaque JSON documents by key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
