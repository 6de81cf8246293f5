package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFile_Upload(t *testing.T) {
	root := t.TempDir()
	store := NewFile(root)
	ctx := context.Background()

	key := "raw/api/batch_date=2026-08-22/movies_start=1_end=5_20260822T120000Z.jsonl"
	content := []byte("{\"id\":603}\n{\"id\":604}\n")

	if err := store.Upload(ctx, "movie-bucket", key, content, "application/x-ndjson"); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(root, "movie-bucket", filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("reading uploaded object: %v", err)
	}
	if string(written) != string(content) {
		t.Errorf("content = %q, want %q", written, content)
	}
}

func TestFile_UploadDistinctKeysAppend(t *testing.T) {
	root := t.TempDir()
	store := NewFile(root)
	ctx := context.Background()

	keys := []string{
		"raw/api/batch_date=2026-08-22/movies_start=1_end=5_20260822T120000Z.jsonl",
		"raw/api/batch_date=2026-08-22/movies_start=6_end=10_20260822T130000Z.jsonl",
	}
	for _, key := range keys {
		if err := store.Upload(ctx, "b", key, []byte("x\n"), "application/x-ndjson"); err != nil {
			t.Fatalf("Upload(%s) failed: %v", key, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "b", "raw", "api", "batch_date=2026-08-22"))
	if err != nil {
		t.Fatalf("reading batch directory: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("objects in batch directory = %d, want 2 (append, not overwrite)", len(entries))
	}
}

func TestFile_URI(t *testing.T) {
	store := NewFile("/data/blobs")

	uri := store.URI("movie-bucket", "raw/api/x.jsonl")
	if uri != "file:///data/blobs/movie-bucket/raw/api/x.jsonl" {
		t.Errorf("URI() = %q", uri)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("URI() = %q, want file:// prefix", uri)
	}
}

func TestNew_File(t *testing.T) {
	store, err := New(context.Background(), Config{Backend: "file", LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*File); !ok {
		t.Errorf("Expected *File, got %T", store)
	}
}

func TestNew_FileRequiresDir(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "file"})
	if err == nil {
		t.Error("Expected error for file backend without local dir")
	}
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "azure"})
	if err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
