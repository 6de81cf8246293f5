// Package batch assembles one run's records into a newline-delimited
// JSON object and lands it in the blob store under a run-unique key.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/blobstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ContentType of uploaded batch objects.
const ContentType = "application/x-ndjson"

// Prometheus metrics for batch output.
var (
	batchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_ingest_batch_bytes_total",
		Help: "Total bytes of NDJSON batches uploaded",
	})
)

// Writer uploads run batches to one bucket of the blob store.
type Writer struct {
	store  blobstore.Client
	bucket string
	logger zerolog.Logger
}

// NewWriter creates a batch writer targeting the given bucket.
func NewWriter(store blobstore.Client, bucket string) *Writer {
	return &Writer{
		store:  store,
		bucket: bucket,
		logger: log.With().Str("component", "batch-writer").Logger(),
	}
}

// ObjectKey builds the batch path for a run:
//
//	raw/api/batch_date=<YYYY-MM-DD>/movies_start=<S>_end=<E>_<ts>.jsonl
//
// The timestamp has second resolution, which keeps keys unique for any
// realistic run cadence; two identical runs inside the same second would
// share a key, an accepted gap.
func ObjectKey(runStart time.Time, startPage, endPage int) string {
	utc := runStart.UTC()
	return fmt.Sprintf("raw/api/batch_date=%s/movies_start=%d_end=%d_%s.jsonl",
		utc.Format("2006-01-02"), startPage, endPage, utc.Format("20060102T150405Z"))
}

// Encode renders records as NDJSON: one JSON object per line, every line
// newline-terminated, the final one included. Record content is written
// as received, without HTML escaping.
func Encode(records []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Write encodes the records and uploads them under the run's unique key,
// returning the object's location URI.
func (w *Writer) Write(ctx context.Context, runStart time.Time, startPage, endPage int, records []map[string]any) (string, error) {
	key := ObjectKey(runStart, startPage, endPage)

	content, err := Encode(records)
	if err != nil {
		return "", err
	}

	if err := w.store.Upload(ctx, w.bucket, key, content, ContentType); err != nil {
		return "", fmt.Errorf("upload batch: %w", err)
	}

	batchBytesTotal.Add(float64(len(content)))
	w.logger.Info().
		Str("object_key", key).
		Int("records", len(records)).
		Int("bytes", len(content)).
		Msg("Batch uploaded")

	return w.store.URI(w.bucket, key), nil
}
