package blobstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCS implements Client for Google Cloud Storage.
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS-backed blob store. Credentials are resolved from
// the environment (ADC).
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Upload writes the object in one shot. GCS object writes are atomic:
// the object becomes visible only after a successful Close.
func (g *GCS) Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	writer := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("upload object %s/%s: %w", bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s/%s: %w", bucket, key, err)
	}

	return nil
}

// URI returns the gs:// location of an object.
func (g *GCS) URI(bucket, key string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, key)
}

// Close closes the underlying GCS client.
func (g *GCS) Close() error {
	return g.client.Close()
}
