package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File implements Client on the local filesystem, mirroring the
// bucket/key layout under a root directory. Used for tests and local
// development.
type File struct {
	root string
}

// NewFile creates a filesystem-backed blob store rooted at dir.
func NewFile(dir string) *File {
	return &File{root: dir}
}

func (f *File) path(bucket, key string) string {
	return filepath.Join(f.root, bucket, filepath.FromSlash(key))
}

// Upload writes the object as a regular file, creating parent
// directories as needed. The content type has no filesystem equivalent
// and is ignored.
func (f *File) Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	target := f.path(bucket, key)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("write object %s/%s: %w", bucket, key, err)
	}

	return nil
}

// URI returns the file:// location of an object.
func (f *File) URI(bucket, key string) string {
	return "file://" + filepath.ToSlash(f.path(bucket, key))
}

// Close implements Client. The file backend holds no resources.
func (f *File) Close() error {
	return nil
}
