// Package ingest drives sequential page fetching and owns the run
// lifecycle: cursor read, credential resolution, fetch loop, batch
// commit, cursor save.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the fetch loop.
var (
	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_ingest_records_fetched_total",
		Help: "Total catalog records fetched across runs",
	})
)

// Lineage field names stamped onto every record.
const (
	FieldIngestionTimestamp = "ingestion_timestamp"
	FieldBatchDate          = "batch_date"
	FieldSource             = "source"
	FieldPulledPage         = "pulled_page"
)

// SourceAPI is the provenance marker for records pulled from the live API.
const SourceAPI = "api"

// PageFetcher is the single-page interface the driver pulls from.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*catalog.Page, error)
}

// DriverResult is what one fetch loop produced. It is valid even when
// the loop stopped on an error: everything fetched before the failure
// is preserved.
type DriverResult struct {
	// Records holds lineage-stamped records in fetch order.
	Records []map[string]any

	// PagesFetched counts successfully fetched pages.
	PagesFetched int

	// LastSuccess is the last page fetched, start-1 when none was.
	LastSuccess int

	// TotalPages is the latest known page count: seeded from the cursor,
	// replaced by whatever the API reported last. 0 while unknown.
	TotalPages int
}

// Driver runs the sequential fetch loop for one run.
type Driver struct {
	fetcher PageFetcher
	logger  zerolog.Logger
}

// NewDriver creates a driver pulling from fetcher. The logger should be
// run-scoped so loop events carry the run id.
func NewDriver(fetcher PageFetcher, logger zerolog.Logger) *Driver {
	return &Driver{fetcher: fetcher, logger: logger}
}

// Run fetches up to budget pages starting at start, strictly in order.
// knownTotal seeds the end-of-collection check with the total a previous
// run observed (0 = unknown); any total reported by a fetched page
// replaces it. The loop stops before fetching a page beyond the known
// total, and stops on the first fetch failure, returning the partial
// result together with the error.
//
// Lineage stamped onto every record uses the run start instant, so all
// pages of one run share one ingestion_timestamp.
func (d *Driver) Run(ctx context.Context, start, budget, knownTotal int, runStart time.Time) (*DriverResult, error) {
	if start < 1 {
		return nil, fmt.Errorf("start page must be >= 1 (got %d)", start)
	}
	if budget < 1 {
		return nil, fmt.Errorf("page budget must be >= 1 (got %d)", budget)
	}

	end := start + budget - 1
	result := &DriverResult{
		LastSuccess: start - 1,
		TotalPages:  knownTotal,
	}

	ingestionTS := runStart.UTC().Format(time.RFC3339)
	batchDate := runStart.UTC().Format("2006-01-02")

	for page := start; page <= end; page++ {
		if result.TotalPages > 0 && page > result.TotalPages {
			d.logger.Info().
				Int("page", page).
				Int("total_pages", result.TotalPages).
				Msg("Reached end of collection, stopping early")
			break
		}

		fetched, err := d.fetcher.FetchPage(ctx, page)
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for _, record := range fetched.Results {
			record[FieldIngestionTimestamp] = ingestionTS
			record[FieldBatchDate] = batchDate
			record[FieldSource] = SourceAPI
			record[FieldPulledPage] = page
			result.Records = append(result.Records, record)
		}

		result.PagesFetched++
		result.LastSuccess = page
		if fetched.TotalPages > 0 {
			result.TotalPages = fetched.TotalPages
		}

		recordsFetchedTotal.Add(float64(len(fetched.Results)))

		if len(fetched.Results) == 0 {
			d.logger.Warn().Int("page", page).Msg("Page returned no records")
		}
	}

	d.logger.Debug().
		Int("pages_fetched", result.PagesFetched).
		Int("records", len(result.Records)).
		Int("total_pages", result.TotalPages).
		Msg("Fetch loop finished")

	return result, nil
}
