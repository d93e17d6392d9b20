// Package storage provides a local-disk blob store for uploaded files.
// Saved blobs are addressable under a public URL path served by the HTTP
// server.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
)

// PublicPrefix is the URL path prefix under which blobs are served.
const PublicPrefix = "/storage/"

// BlobStore writes uploaded files to a directory on local disk.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the upload directory if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Dir returns the directory blobs are stored in.
func (b *BlobStore) Dir() string {
	return b.dir
}

// Save writes the blob under a fresh ID, keeping the original file extension,
// and returns its public URL path.
func (b *BlobStore) Save(filename string, r io.Reader) (string, error) {
	name := model.NewID() + filepath.Ext(filename)
	path := filepath.Join(b.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	return PublicPrefix + name, nil
}
