package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Sternrassler/tmdb-ingest/pkg/auth"
	"github.com/Sternrassler/tmdb-ingest/pkg/batch"
	"github.com/Sternrassler/tmdb-ingest/pkg/blobstore"
	"github.com/Sternrassler/tmdb-ingest/pkg/catalog"
	"github.com/Sternrassler/tmdb-ingest/pkg/cursor"
	"github.com/Sternrassler/tmdb-ingest/pkg/docstore"
)

// stubSecrets returns a fixed credential or error.
type stubSecrets struct {
	value string
	err   error
}

func (s *stubSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.value, nil
}

func (s *stubSecrets) Close() error { return nil }

// conflictStore rejects every write with a revision conflict.
type conflictStore struct {
	docstore.Store
}

func (c *conflictStore) MergeSet(ctx context.Context, collection, docID string, fields map[string]any, expectedRevision int64) error {
	return docstore.ErrRevisionConflict
}

// testRunnerConfig wires a runner against in-memory stores and the given
// fetcher. Tests tweak the returned config before calling NewRunner.
func testRunnerConfig(t *testing.T, fetcher PageFetcher) (Config, *cursor.Store) {
	t.Helper()

	cursorStore := cursor.NewStore(docstore.NewMemory(), "ingestion_state", "tmdb_movies")
	writer := batch.NewWriter(blobstore.NewFile(t.TempDir()), "test-bucket")

	cfg := Config{
		Secrets:      &stubSecrets{value: "test-api-key"},
		SecretName:   "tmdb-api-key",
		Cursor:       cursorStore,
		Batch:        writer,
		DefaultPages: 5,
		NewFetcher: func(credential string) (PageFetcher, auth.Scheme, error) {
			return fetcher, auth.SchemeAPIKey, nil
		},
	}
	return cfg, cursorStore
}

// readBatchFile loads the NDJSON lines behind a file:// batch URI.
func readBatchFile(t *testing.T, uri string) []string {
	t.Helper()

	path := strings.TrimPrefix(uri, "file://")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read batch file: %v", err)
	}
	trimmed := strings.TrimSuffix(string(content), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestRunnerRun_FirstRun(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		1: moviePage(1, 500, 2),
		2: moviePage(2, 500, 2),
		3: moviePage(3, 500, 2),
		4: moviePage(4, 500, 2),
		5: moviePage(5, 500, 2),
	}}
	cfg, cursorStore := testRunnerConfig(t, fetcher)

	var gotCredential string
	cfg.NewFetcher = func(credential string) (PageFetcher, auth.Scheme, error) {
		gotCredential = credential
		return fetcher, auth.SchemeAPIKey, nil
	}

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if gotCredential != "test-api-key" {
		t.Errorf("fetcher credential = %q, want %q", gotCredential, "test-api-key")
	}
	if result.RunID == "" {
		t.Error("RunID must not be empty")
	}
	if result.StartPage != 1 {
		t.Errorf("StartPage = %d, want 1", result.StartPage)
	}
	if result.EndPage != 5 {
		t.Errorf("EndPage = %d, want 5", result.EndPage)
	}
	if result.PagesFetched != 5 {
		t.Errorf("PagesFetched = %d, want 5", result.PagesFetched)
	}
	if result.Rows != 10 {
		t.Errorf("Rows = %d, want 10", result.Rows)
	}
	if result.NextPage != 6 {
		t.Errorf("NextPage = %d, want 6", result.NextPage)
	}
	if result.TotalPages != 500 {
		t.Errorf("TotalPages = %d, want 500", result.TotalPages)
	}
	if result.AuthScheme != "api_key" {
		t.Errorf("AuthScheme = %q, want %q", result.AuthScheme, "api_key")
	}
	if !result.Committed {
		t.Error("Committed = false, want true")
	}
	if !strings.HasPrefix(result.Output, "file://") {
		t.Errorf("Output = %q, want file:// URI", result.Output)
	}
	if !strings.Contains(result.Output, "movies_start=1_end=5_") {
		t.Errorf("Output = %q, want page range in the object key", result.Output)
	}
	if !strings.Contains(result.Output, "raw/api/batch_date=") {
		t.Errorf("Output = %q, want raw/api/batch_date= prefix in the object key", result.Output)
	}

	// The batch holds one NDJSON line per record, lineage included.
	lines := readBatchFile(t, result.Output)
	if len(lines) != 10 {
		t.Fatalf("batch lines = %d, want 10", len(lines))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("unmarshal batch line: %v", err)
	}
	if record[FieldSource] != SourceAPI {
		t.Errorf("batch record source = %v, want %q", record[FieldSource], SourceAPI)
	}
	if record[FieldBatchDate] == nil || record[FieldIngestionTimestamp] == nil {
		t.Error("batch record is missing lineage fields")
	}

	// The cursor now points at the next unfetched page.
	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.NextPage != 6 {
		t.Errorf("cursor NextPage = %d, want 6", state.NextPage)
	}
	if state.LastStartPage != 1 || state.LastEndPage != 5 {
		t.Errorf("cursor range = [%d, %d], want [1, 5]", state.LastStartPage, state.LastEndPage)
	}
	if state.LastRowCount != 10 {
		t.Errorf("cursor LastRowCount = %d, want 10", state.LastRowCount)
	}
	if state.LastOutput != result.Output {
		t.Errorf("cursor LastOutput = %q, want %q", state.LastOutput, result.Output)
	}
	if state.TotalPages != 500 {
		t.Errorf("cursor TotalPages = %d, want 500", state.TotalPages)
	}
	if state.AuthScheme != "api_key" {
		t.Errorf("cursor AuthScheme = %q, want %q", state.AuthScheme, "api_key")
	}
	if state.Revision != 1 {
		t.Errorf("cursor Revision = %d, want 1", state.Revision)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("cursor UpdatedAt must be stamped")
	}
}

func TestRunnerRun_ResumesFromCursor(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		1: moviePage(1, 500, 1),
		2: moviePage(2, 500, 1),
		3: moviePage(3, 500, 1),
		4: moviePage(4, 500, 1),
	}}
	cfg, cursorStore := testRunnerConfig(t, fetcher)
	cfg.DefaultPages = 2

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	first, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.StartPage != 1 || first.EndPage != 2 {
		t.Fatalf("first run range = [%d, %d], want [1, 2]", first.StartPage, first.EndPage)
	}

	second, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.StartPage != 3 || second.EndPage != 4 {
		t.Errorf("second run range = [%d, %d], want [3, 4]", second.StartPage, second.EndPage)
	}
	if second.NextPage != 5 {
		t.Errorf("second run NextPage = %d, want 5", second.NextPage)
	}

	// Each committed run bumps the revision once.
	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.Revision != 2 {
		t.Errorf("cursor Revision = %d, want 2", state.Revision)
	}
}

func TestRunnerRun_Overrides(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		100: moviePage(100, 500, 1),
		101: moviePage(101, 500, 1),
	}}
	cfg, _ := testRunnerConfig(t, fetcher)

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{StartPage: 100, Pages: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.StartPage != 100 || result.EndPage != 101 {
		t.Errorf("run range = [%d, %d], want [100, 101]", result.StartPage, result.EndPage)
	}
	if result.NextPage != 102 {
		t.Errorf("NextPage = %d, want 102", result.NextPage)
	}
	if len(fetcher.calls) != 2 || fetcher.calls[0] != 100 {
		t.Errorf("fetch calls = %v, want [100 101]", fetcher.calls)
	}
}

func TestRunnerRun_WrapsAtCollectionEnd(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		500: moviePage(500, 500, 3),
	}}
	cfg, cursorStore := testRunnerConfig(t, fetcher)

	seed := cursor.Empty()
	seed.NextPage = 500
	seed.TotalPages = 500
	if err := cursorStore.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed Save() error = %v", err)
	}

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Page 500 is the last one; the budget of 5 must not push past it,
	// and the cursor wraps to the beginning.
	if result.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", result.PagesFetched)
	}
	if result.EndPage != 500 {
		t.Errorf("EndPage = %d, want 500", result.EndPage)
	}
	if result.NextPage != 1 {
		t.Errorf("NextPage = %d, want 1 (wrap around)", result.NextPage)
	}
	if result.Rows != 3 {
		t.Errorf("Rows = %d, want 3", result.Rows)
	}
}

func TestRunnerRun_EmptyRunCommitsCursorOnly(t *testing.T) {
	fetcher := &fakeFetcher{}
	cfg, cursorStore := testRunnerConfig(t, fetcher)

	seed := cursor.Empty()
	seed.NextPage = 501
	seed.TotalPages = 500
	if err := cursorStore.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed Save() error = %v", err)
	}

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got calls %v", fetcher.calls)
	}
	if result.PagesFetched != 0 {
		t.Errorf("PagesFetched = %d, want 0", result.PagesFetched)
	}
	if result.Output != "" {
		t.Errorf("Output = %q, want empty (no batch for an empty run)", result.Output)
	}
	if !result.Committed {
		t.Error("Committed = false, want true (cursor wrap still persists)")
	}
	if result.NextPage != 1 {
		t.Errorf("NextPage = %d, want 1", result.NextPage)
	}

	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.NextPage != 1 {
		t.Errorf("cursor NextPage = %d, want 1", state.NextPage)
	}
	if state.LastRowCount != 0 {
		t.Errorf("cursor LastRowCount = %d, want 0", state.LastRowCount)
	}
	if state.LastOutput != "" {
		t.Errorf("cursor LastOutput = %q, want empty", state.LastOutput)
	}
}

func TestRunnerRun_FirstPageFailureCommitsNothing(t *testing.T) {
	authErr := &catalog.APIError{
		StatusCode: 401,
		Class:      catalog.ClassAuthorization,
		Message:    "Invalid API key: You must be granted a valid key.",
	}
	fetcher := &fakeFetcher{errs: map[int]error{1: authErr}}
	cfg, cursorStore := testRunnerConfig(t, fetcher)

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %T, want *RunError", err)
	}
	if runErr.Stage != StageFetch {
		t.Errorf("Stage = %q, want %q", runErr.Stage, StageFetch)
	}
	if runErr.Kind() != "authorization" {
		t.Errorf("Kind() = %q, want authorization", runErr.Kind())
	}
	if !errors.Is(err, authErr) {
		t.Errorf("error chain should include the API error, got %v", err)
	}

	if result.Committed {
		t.Error("Committed = true, want false (nothing fetched, nothing persisted)")
	}
	if result.Output != "" {
		t.Errorf("Output = %q, want empty", result.Output)
	}

	// The failed attempt was not retried and the cursor did not move.
	if len(fetcher.calls) != 1 {
		t.Errorf("fetch attempts = %d, want 1 (no automatic retry)", len(fetcher.calls))
	}
	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.Revision != 0 {
		t.Errorf("cursor Revision = %d, want 0 (untouched)", state.Revision)
	}
	if state.NextPage != 1 {
		t.Errorf("cursor NextPage = %d, want 1", state.NextPage)
	}
}

func TestRunnerRun_PartialCommit(t *testing.T) {
	upstreamErr := &catalog.APIError{
		StatusCode: 502,
		Class:      catalog.ClassUpstream,
		Message:    "Bad Gateway",
	}
	fetcher := &fakeFetcher{
		pages: map[int]*catalog.Page{
			1: moviePage(1, 500, 2),
			2: moviePage(2, 500, 2),
		},
		errs: map[int]error{3: upstreamErr},
	}
	cfg, cursorStore := testRunnerConfig(t, fetcher)

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %T, want *RunError", err)
	}
	if runErr.Stage != StageFetch {
		t.Errorf("Stage = %q, want %q", runErr.Stage, StageFetch)
	}

	// The two fetched pages were committed despite the failure on page 3.
	if !result.Committed {
		t.Error("Committed = false, want true (partial batch persists)")
	}
	if result.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", result.PagesFetched)
	}
	if result.Rows != 4 {
		t.Errorf("Rows = %d, want 4", result.Rows)
	}
	if result.EndPage != 2 {
		t.Errorf("EndPage = %d, want 2", result.EndPage)
	}
	if result.NextPage != 3 {
		t.Errorf("NextPage = %d, want 3 (failed page is retried next run)", result.NextPage)
	}
	if result.Output == "" {
		t.Error("Output must point at the committed partial batch")
	}

	lines := readBatchFile(t, result.Output)
	if len(lines) != 4 {
		t.Errorf("batch lines = %d, want 4", len(lines))
	}

	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.NextPage != 3 {
		t.Errorf("cursor NextPage = %d, want 3", state.NextPage)
	}
	if state.LastEndPage != 2 {
		t.Errorf("cursor LastEndPage = %d, want 2", state.LastEndPage)
	}
}

func TestRunnerRun_SecretFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	cfg, cursorStore := testRunnerConfig(t, fetcher)
	cfg.Secrets = &stubSecrets{err: errors.New("secret version not found")}

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %T, want *RunError", err)
	}
	if runErr.Stage != StageCredential {
		t.Errorf("Stage = %q, want %q", runErr.Stage, StageCredential)
	}
	if runErr.Kind() != KindStorage {
		t.Errorf("Kind() = %q, want %q", runErr.Kind(), KindStorage)
	}

	if result.Committed {
		t.Error("Committed = true, want false")
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got calls %v", fetcher.calls)
	}
	state, err := cursorStore.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.Revision != 0 {
		t.Errorf("cursor Revision = %d, want 0 (untouched)", state.Revision)
	}
}

func TestRunnerRun_CursorConflictSurfaced(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		1: moviePage(1, 500, 2),
	}}

	cursorStore := cursor.NewStore(&conflictStore{Store: docstore.NewMemory()}, "ingestion_state", "tmdb_movies")
	writer := batch.NewWriter(blobstore.NewFile(t.TempDir()), "test-bucket")
	cfg := Config{
		Secrets:      &stubSecrets{value: "test-api-key"},
		SecretName:   "tmdb-api-key",
		Cursor:       cursorStore,
		Batch:        writer,
		DefaultPages: 1,
		NewFetcher: func(credential string) (PageFetcher, auth.Scheme, error) {
			return fetcher, auth.SchemeAPIKey, nil
		},
	}

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// The conflict surfaces as-is; the run is not retried.
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %T, want *RunError", err)
	}
	if runErr.Stage != StageCursorSave {
		t.Errorf("Stage = %q, want %q", runErr.Stage, StageCursorSave)
	}
	if !errors.Is(err, docstore.ErrRevisionConflict) {
		t.Errorf("error chain should include ErrRevisionConflict, got %v", err)
	}

	// The batch was already uploaded when the save failed.
	if result.Committed {
		t.Error("Committed = true, want false (cursor save failed)")
	}
	if result.Output == "" {
		t.Error("Output must point at the uploaded batch even though the cursor save failed")
	}
}

func TestRunnerRun_UniqueRunIDs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		1: moviePage(1, 500, 1),
		2: moviePage(2, 500, 1),
	}}
	cfg, _ := testRunnerConfig(t, fetcher)
	cfg.DefaultPages = 1

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	first, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.RunID == "" || second.RunID == "" {
		t.Fatal("run IDs must not be empty")
	}
	if first.RunID == second.RunID {
		t.Errorf("run IDs must be unique, both were %q", first.RunID)
	}
}

func TestRunnerRun_DefaultBudget(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]*catalog.Page{
		1: moviePage(1, 500, 1),
		2: moviePage(2, 500, 1),
		3: moviePage(3, 500, 1),
		4: moviePage(4, 500, 1),
		5: moviePage(5, 500, 1),
	}}
	cfg, _ := testRunnerConfig(t, fetcher)
	cfg.DefaultPages = 0 // NewRunner falls back to 5

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), Overrides{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PagesFetched != 5 {
		t.Errorf("PagesFetched = %d, want 5", result.PagesFetched)
	}
}

func TestNewRunner_Validation(t *testing.T) {
	valid := func(t *testing.T) Config {
		cfg, _ := testRunnerConfig(t, &fakeFetcher{})
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "missing secrets",
			mutate:   func(c *Config) { c.Secrets = nil },
			errorMsg: "secret provider is required",
		},
		{
			name:     "missing secret name",
			mutate:   func(c *Config) { c.SecretName = "" },
			errorMsg: "secret name is required",
		},
		{
			name:     "missing cursor store",
			mutate:   func(c *Config) { c.Cursor = nil },
			errorMsg: "cursor store is required",
		},
		{
			name:     "missing batch writer",
			mutate:   func(c *Config) { c.Batch = nil },
			errorMsg: "batch writer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(&cfg)

			_, err := NewRunner(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("error = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}
