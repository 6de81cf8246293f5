// Package server exposes the HTTP trigger surface: liveness, cursor
// inspection, the run trigger and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/cursor"
	"github.com/Sternrassler/tmdb-ingest/pkg/ingest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName identifies the service in the liveness payload.
const ServiceName = "movie-api-ingestor"

// shutdownTimeout bounds how long in-flight runs may finish during shutdown.
const shutdownTimeout = 10 * time.Second

// Config wires the server's collaborators.
type Config struct {
	Port   string
	Runner *ingest.Runner
	Cursor *cursor.Store
}

// Server is the HTTP trigger service.
type Server struct {
	runner *ingest.Runner
	cursor *cursor.Store
	logger zerolog.Logger
	http   *http.Server
}

// New creates the server and its route table.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Cursor == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	s := &Server{
		runner: cfg.Runner,
		cursor: cfg.Cursor,
		logger: log.With().Str("component", "http-server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/cursor", s.handleCursor)
	mux.HandleFunc("/run", s.handleRun)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}
	return s, nil
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("Shutting down HTTP server")
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": ServiceName,
	})
}

func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	state, err := s.cursor.Read(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Cursor read failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "cursor_read_failed",
			"error":   err.Error(),
		})
		return
	}

	var updatedAt any
	if !state.UpdatedAt.IsZero() {
		updatedAt = state.UpdatedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"next_page":       state.NextPage,
		"last_start_page": state.LastStartPage,
		"last_end_page":   state.LastEndPage,
		"last_row_count":  state.LastRowCount,
		"last_output":     state.LastOutput,
		"total_pages":     state.TotalPages,
		"auth_scheme":     state.AuthScheme,
		"updated_at":      updatedAt,
		"revision":        state.Revision,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	overrides, err := parseOverrides(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "invalid_request",
			"error":   err.Error(),
		})
		return
	}

	result, err := s.runner.Run(r.Context(), overrides)
	if err != nil {
		s.writeRunFailure(w, result, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":       "ingestion_success",
		"run_id":        result.RunID,
		"rows":          result.Rows,
		"output":        result.Output,
		"start_page":    result.StartPage,
		"end_page":      result.EndPage,
		"pages_fetched": result.PagesFetched,
		"next_page":     result.NextPage,
		"total_pages":   result.TotalPages,
		"auth_scheme":   result.AuthScheme,
	})
}

// writeRunFailure renders a failed run. A partial commit surfaces its
// preserved progress alongside the error.
func (s *Server) writeRunFailure(w http.ResponseWriter, result *ingest.Result, err error) {
	kind := ingest.KindStorage
	var runErr *ingest.RunError
	if errors.As(err, &runErr) {
		kind = runErr.Kind()
	}

	// Upstream-facing failures are a gateway problem; failures of our own
	// storage are ours.
	status := http.StatusInternalServerError
	if kind != ingest.KindStorage {
		status = http.StatusBadGateway
	}

	payload := map[string]any{
		"message": "ingestion_failed",
		"error":   err.Error(),
		"kind":    kind,
	}
	if result != nil {
		payload["run_id"] = result.RunID
		if result.Committed {
			payload["committed"] = true
			payload["rows"] = result.Rows
			payload["output"] = result.Output
			payload["start_page"] = result.StartPage
			payload["end_page"] = result.EndPage
			payload["pages_fetched"] = result.PagesFetched
			payload["next_page"] = result.NextPage
		}
	}

	s.logger.Error().Err(err).Str("kind", kind).Msg("Ingestion run failed")
	s.writeJSON(w, status, payload)
}

func parseOverrides(r *http.Request) (ingest.Overrides, error) {
	var ov ingest.Overrides

	if raw := r.URL.Query().Get("start_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return ov, fmt.Errorf("start_page must be a positive integer (got %q)", raw)
		}
		ov.StartPage = v
	}
	if raw := r.URL.Query().Get("pages"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return ov, fmt.Errorf("pages must be a positive integer (got %q)", raw)
		}
		ov.Pages = v
	}
	return ov, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
