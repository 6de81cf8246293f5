// Package blobstore provides the append-only object store the ingestion
// batches land in. Uploads are write-once: key uniqueness is the caller's
// contract, nothing here overwrites deliberately.
package blobstore

import (
	"context"
	"fmt"
)

// Client uploads immutable objects to one storage backend.
type Client interface {
	// Upload writes content under bucket/key with the given content type.
	Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error

	// URI returns the backend-specific location of an object.
	URI(bucket, key string) string

	// Close releases underlying client resources.
	Close() error
}

// Config selects and parameterizes a blob store backend.
type Config struct {
	// Backend is one of "gcs", "s3", "file".
	Backend string

	// LocalDir is the root directory for the file backend.
	LocalDir string
}

// New creates a blob store client for the configured backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Backend {
	case "gcs", "": // Empty selects the default backend.
		return NewGCS(ctx)
	case "s3":
		return NewS3(ctx)
	case "file":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("file blobstore requires a local directory")
		}
		return NewFile(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("unsupported blobstore backend: %s", cfg.Backend)
	}
}
