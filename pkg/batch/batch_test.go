package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/blobstore"
)

func TestObjectKey(t *testing.T) {
	runStart := time.Date(2026, 8, 22, 14, 30, 5, 0, time.UTC)

	key := ObjectKey(runStart, 6, 10)
	want := "raw/api/batch_date=2026-08-22/movies_start=6_end=10_20260822T143005Z.jsonl"
	if key != want {
		t.Errorf("ObjectKey() = %q, want %q", key, want)
	}
}

func TestObjectKey_UTCNormalization(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2026, 8, 23, 1, 0, 0, 0, loc) // still 2026-08-22 in UTC

	key := ObjectKey(local, 1, 5)
	if !strings.Contains(key, "batch_date=2026-08-22") {
		t.Errorf("ObjectKey() = %q, want UTC batch date 2026-08-22", key)
	}
	if !strings.Contains(key, "20260822T230000Z") {
		t.Errorf("ObjectKey() = %q, want UTC timestamp", key)
	}
}

func TestObjectKey_DistinctRunsDistinctKeys(t *testing.T) {
	base := time.Date(2026, 8, 22, 14, 30, 5, 0, time.UTC)

	a := ObjectKey(base, 1, 5)
	b := ObjectKey(base.Add(time.Second), 1, 5)
	c := ObjectKey(base, 6, 10)

	if a == b {
		t.Error("runs a second apart must produce different keys")
	}
	if a == c {
		t.Error("runs over different page ranges must produce different keys")
	}
}

func TestEncode(t *testing.T) {
	records := []map[string]any{
		{"id": 603, "title": "The Matrix"},
		{"id": 604, "title": "Tom & Jerry <uncut>"},
		{"id": 605, "title": "千と千尋の神隠し"},
	}

	content, err := Encode(records)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if !bytes.HasSuffix(content, []byte("\n")) {
		t.Error("final line must be newline-terminated")
	}

	lines := bytes.Split(bytes.TrimSuffix(content, []byte("\n")), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}

	// Every line must be one valid JSON object.
	for i, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal(line, &decoded); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}

	// Content passes through without HTML escaping or ASCII folding.
	if !bytes.Contains(content, []byte("Tom & Jerry <uncut>")) {
		t.Error("HTML characters must not be escaped")
	}
	if !bytes.Contains(content, []byte("千と千尋の神隠し")) {
		t.Error("non-ASCII titles must pass through unescaped")
	}
}

func TestEncode_Empty(t *testing.T) {
	content, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(content) != 0 {
		t.Errorf("Encode(nil) = %q, want empty", content)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	records := []map[string]any{
		{"z": 1, "a": 2, "m": 3},
		{"id": 604, "adult": false},
	}

	first, err := Encode(records)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	second, err := Encode(records)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("encoding the same records twice must be byte-identical")
	}
}

func TestWriter_Write(t *testing.T) {
	store := blobstore.NewFile(t.TempDir())
	writer := NewWriter(store, "movie-bucket")
	runStart := time.Date(2026, 8, 22, 14, 30, 5, 0, time.UTC)

	records := []map[string]any{
		{"id": float64(603), "pulled_page": float64(1)},
		{"id": float64(604), "pulled_page": float64(1)},
	}

	uri, err := writer.Write(context.Background(), runStart, 1, 1, records)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	wantKey := ObjectKey(runStart, 1, 1)
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, wantKey) {
		t.Errorf("uri = %q, want file:// URI ending in %q", uri, wantKey)
	}

	// Read the object back through the store layout and parse each line.
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening uploaded object: %v", err)
	}
	defer f.Close()

	var got []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, record)
	}
	if len(got) != 2 {
		t.Fatalf("records in object = %d, want 2", len(got))
	}
	if got[0]["id"] != float64(603) || got[1]["id"] != float64(604) {
		t.Errorf("record order changed: %v", got)
	}
}

type failingStore struct{}

func (failingStore) Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	return errors.New("bucket gone")
}
func (failingStore) URI(bucket, key string) string { return "" }
func (failingStore) Close() error                  { return nil }

func TestWriter_WriteUploadFailure(t *testing.T) {
	writer := NewWriter(failingStore{}, "movie-bucket")

	_, err := writer.Write(context.Background(), time.Now(), 1, 5, []map[string]any{{"id": 1}})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "upload batch") {
		t.Errorf("error = %v, want upload batch wrap", err)
	}
}
