package repository

import (
	"context"
	"errors"
	"os"

	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// FileBlobRepository stores each document as <dir>/<key>.json.
type FileBlobRepository struct {
	storage *storage.LocalStorage
}

// NewFileBlobRepository wraps a local storage directory.
func NewFileBlobRepository(storage *storage.LocalStorage) *FileBlobRepository {
	return &FileBlobRepository{storage: storage}
}

func fileName(key string) string {
	return key + ".json"
}

// Get reads the document stored under key.
func (r *FileBlobRepository) Get(_ context.Context, key string) ([]byte, error) {
	data, err := r.storage.Read(fileName(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put atomically replaces the document stored under key.
func (r *FileBlobRepository) Put(_ context.Context, key string, payload []byte) error {
	return r.storage.Save(fileName(key), payload)
}

// Delete removes the document stored under key.
func (r *FileBlobRepository) Delete(_ context.Context, key string) error {
	return r.storage.Delete(fileName(key))
}

// Ping verifies the storage directory is still reachable.
func (r *FileBlobRepository) Ping(_ context.Context) error {
	_, err := os.Stat(r.storage.Dir())
	return err
}
