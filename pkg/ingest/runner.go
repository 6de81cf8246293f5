package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/auth"
	"github.com/Sternrassler/tmdb-ingest/pkg/batch"
	"github.com/Sternrassler/tmdb-ingest/pkg/catalog"
	"github.com/Sternrassler/tmdb-ingest/pkg/cursor"
	"github.com/Sternrassler/tmdb-ingest/pkg/secrets"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for run outcomes.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_ingest_runs_total",
		Help: "Total ingestion runs by outcome (success, partial, empty, failed)",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tmdb_ingest_run_duration_seconds",
		Help:    "End-to-end ingestion run duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Overrides optionally pin a run's page range. Zero values mean "use the
// cursor position" and "use the configured budget".
type Overrides struct {
	StartPage int
	Pages     int
}

// Result summarizes one run. For a partially committed run both Result
// and an error are returned.
type Result struct {
	RunID     string `json:"run_id"`
	StartPage int    `json:"start_page"`

	// EndPage is the last page actually fetched, StartPage-1 when none.
	EndPage int `json:"end_page"`

	PagesFetched int `json:"pages_fetched"`
	Rows         int `json:"rows"`

	// Output is the batch URI, empty when no batch was uploaded.
	Output string `json:"output"`

	NextPage   int    `json:"next_page"`
	TotalPages int    `json:"total_pages"`
	AuthScheme string `json:"auth_scheme"`

	// Committed reports whether batch and cursor were persisted.
	Committed bool `json:"committed"`
}

// Config wires a runner's collaborators.
type Config struct {
	// Secrets resolves the catalog credential on every run.
	Secrets secrets.Provider

	// SecretName is the logical name of the catalog credential.
	SecretName string

	// Cursor persists the resume record.
	Cursor *cursor.Store

	// Batch uploads run output.
	Batch *batch.Writer

	// DefaultPages is the page budget when a run has no override.
	DefaultPages int

	// Catalog configures the default page fetcher. Credential is filled
	// in per run from Secrets.
	Catalog catalog.Config

	// NewFetcher builds the page fetcher for one run's credential.
	// Overridable for tests; defaults to the catalog client.
	NewFetcher func(credential string) (PageFetcher, auth.Scheme, error)
}

// Runner owns one ingestion pipeline end to end.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

// NewRunner creates a runner after validating its wiring.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Secrets == nil {
		return nil, fmt.Errorf("secret provider is required")
	}
	if cfg.SecretName == "" {
		return nil, fmt.Errorf("secret name is required")
	}
	if cfg.Cursor == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	if cfg.Batch == nil {
		return nil, fmt.Errorf("batch writer is required")
	}
	if cfg.DefaultPages < 1 {
		cfg.DefaultPages = 5
	}

	if cfg.NewFetcher == nil {
		cfg.NewFetcher = func(credential string) (PageFetcher, auth.Scheme, error) {
			catalogCfg := cfg.Catalog
			catalogCfg.Credential = credential
			client, err := catalog.New(catalogCfg)
			if err != nil {
				return nil, "", err
			}
			return client, client.Scheme(), nil
		}
	}

	return &Runner{
		cfg:    cfg,
		logger: log.With().Str("component", "ingest-runner").Logger(),
	}, nil
}

// Run executes one ingestion run.
//
// Commit policy: a run that fetched at least one page commits its batch
// and advances the cursor even when a later page failed (the failing
// page contributes nothing). A run that fetched nothing commits nothing
// on error; without error (resume point beyond the known total) it
// skips the upload but still saves the wrapped cursor.
func (r *Runner) Run(ctx context.Context, ov Overrides) (*Result, error) {
	runID := uuid.NewString()
	runStart := time.Now().UTC()
	logger := r.logger.With().Str("run_id", runID).Logger()

	defer func() {
		runDuration.Observe(time.Since(runStart).Seconds())
	}()

	state, err := r.cfg.Cursor.Read(ctx)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return nil, &RunError{Stage: StageCursorRead, Err: err}
	}

	start := state.NextPage
	if ov.StartPage > 0 {
		start = ov.StartPage
	}
	budget := r.cfg.DefaultPages
	if ov.Pages > 0 {
		budget = ov.Pages
	}

	result := &Result{
		RunID:     runID,
		StartPage: start,
		EndPage:   start - 1,
		NextPage:  state.NextPage,
	}

	credential, err := r.cfg.Secrets.GetSecret(ctx, r.cfg.SecretName)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return result, &RunError{Stage: StageCredential, Err: err}
	}

	fetcher, scheme, err := r.cfg.NewFetcher(credential)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return result, &RunError{Stage: StageCredential, Err: err}
	}
	result.AuthScheme = string(scheme)

	logger.Info().
		Int("start_page", start).
		Int("pages", budget).
		Int("known_total", state.TotalPages).
		Str("scheme", string(scheme)).
		Msg("Ingestion run started")

	driver := NewDriver(fetcher, logger)
	fetched, fetchErr := driver.Run(ctx, start, budget, state.TotalPages, runStart)
	if fetched == nil {
		// Invalid page range: nothing ran.
		runsTotal.WithLabelValues("failed").Inc()
		return result, &RunError{Stage: StageFetch, Err: fetchErr}
	}

	result.EndPage = fetched.LastSuccess
	result.PagesFetched = fetched.PagesFetched
	result.Rows = len(fetched.Records)
	result.TotalPages = fetched.TotalPages

	if fetched.PagesFetched == 0 && fetchErr != nil {
		// Nothing to preserve: the cursor stays where it was.
		runsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(fetchErr).Msg("Run failed before fetching any page")
		return result, &RunError{Stage: StageFetch, Err: fetchErr}
	}

	if fetched.PagesFetched > 0 {
		output, err := r.cfg.Batch.Write(ctx, runStart, start, fetched.LastSuccess, fetched.Records)
		if err != nil {
			runsTotal.WithLabelValues("failed").Inc()
			return result, &RunError{Stage: StageUpload, Err: err}
		}
		result.Output = output
	} else {
		logger.Warn().
			Int("start_page", start).
			Int("total_pages", fetched.TotalPages).
			Msg("Resume point beyond known total, nothing to fetch")
	}

	state.NextPage = cursor.NextPage(fetched.LastSuccess, fetched.TotalPages)
	state.LastStartPage = start
	state.LastEndPage = fetched.LastSuccess
	state.LastRowCount = len(fetched.Records)
	state.LastOutput = result.Output
	state.TotalPages = fetched.TotalPages
	state.AuthScheme = string(scheme)

	if err := r.cfg.Cursor.Save(ctx, state); err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return result, &RunError{Stage: StageCursorSave, Err: err}
	}

	result.NextPage = state.NextPage
	result.Committed = true

	switch {
	case fetchErr != nil:
		runsTotal.WithLabelValues("partial").Inc()
		logger.Warn().
			Err(fetchErr).
			Int("pages_fetched", fetched.PagesFetched).
			Int("rows", result.Rows).
			Str("output", result.Output).
			Msg("Run committed partial batch before failure")
		return result, &RunError{Stage: StageFetch, Err: fetchErr}
	case fetched.PagesFetched == 0:
		runsTotal.WithLabelValues("empty").Inc()
	default:
		runsTotal.WithLabelValues("success").Inc()
	}

	logger.Info().
		Int("pages_fetched", fetched.PagesFetched).
		Int("rows", result.Rows).
		Int("next_page", result.NextPage).
		Str("output", result.Output).
		Msg("Ingestion run complete")

	return result, nil
}
