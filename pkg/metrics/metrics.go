// Package metrics provides the centralized Prometheus metrics registry for
// the ingestion service. All metrics are defined in their respective packages
// (catalog, ingest, cursor, batch) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the ingestion service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Catalog Metrics (pkg/catalog):
//   - tmdb_ingest_pages_fetched_total{status} (Counter): Page fetches by outcome (ok, error)
//   - tmdb_ingest_page_fetch_duration_seconds (Histogram): Single page fetch duration
//   - tmdb_ingest_errors_total{class} (Counter): Fetch errors by class (authorization, upstream, transport)
//
// Run Metrics (pkg/ingest):
//   - tmdb_ingest_records_fetched_total (Counter): Catalog records fetched across runs
//   - tmdb_ingest_runs_total{outcome} (Counter): Runs by outcome (success, partial, empty, failed)
//   - tmdb_ingest_run_duration_seconds (Histogram): End-to-end run duration
//
// Cursor Metrics (pkg/cursor):
//   - tmdb_ingest_cursor_revision_conflicts_total (Counter): Cursor saves lost to concurrent writers
//
// Batch Metrics (pkg/batch):
//   - tmdb_ingest_batch_bytes_total (Counter): NDJSON bytes uploaded
//
// Example Prometheus Queries:
//
//   # Run Failure Rate
//   sum(rate(tmdb_ingest_runs_total{outcome="failed"}[1h])) /
//   sum(rate(tmdb_ingest_runs_total[1h]))
//
//   # Records Ingested Per Day
//   increase(tmdb_ingest_records_fetched_total[1d])
//
//   # P95 Page Fetch Latency
//   histogram_quantile(0.95, rate(tmdb_ingest_page_fetch_duration_seconds_bucket[5m]))
//
//   # Concurrent Trigger Detection
//   increase(tmdb_ingest_cursor_revision_conflicts_total[1h]) > 0
//
//   # Authorization Failures (credential rotation needed)
//   rate(tmdb_ingest_errors_total{class="authorization"}[15m])
