// Package catalog provides the HTTP client for the movie catalog API
// (discover endpoint) with credential handling and error classification.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalog API operations.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_ingest_pages_fetched_total",
		Help: "Total catalog page requests by HTTP status",
	}, []string{"status"})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tmdb_ingest_page_fetch_duration_seconds",
		Help:    "Catalog page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_ingest_errors_total",
		Help: "Total catalog fetch errors by class",
	}, []string{"class"})
)

// Page is one page of discover results as returned by the catalog API.
// Records are kept as loose maps so upstream schema changes pass through
// ingestion without code changes.
type Page struct {
	Page         int              `json:"page"`
	Results      []map[string]any `json:"results"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
}

// Client fetches discover pages from the catalog API.
type Client struct {
	httpClient *http.Client
	config     Config
	scheme     auth.Scheme
	logger     zerolog.Logger
}

// Config holds the catalog client configuration.
type Config struct {
	// BaseURL of the catalog API, without trailing slash.
	BaseURL string

	// Credential is either a v3 API key or a v4 read access token.
	// The request scheme is derived from its shape, not configured.
	Credential string

	// Language filter for discover results.
	Language string

	// SortBy ordering for discover results.
	SortBy string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout for a single page request.
	Timeout time.Duration
}

// DefaultConfig returns a default catalog configuration for the given
// credential.
func DefaultConfig(credential string) Config {
	return Config{
		BaseURL:    "https://api.themoviedb.org/3",
		Credential: credential,
		Language:   "en-US",
		SortBy:     "popularity.desc",
		UserAgent:  "tmdb-ingest/1.0",
		Timeout:    30 * time.Second,
	}
}

// New creates a new catalog client. The credential scheme is classified
// once here and reused for every page of the run.
func New(cfg Config) (*Client, error) {
	if cfg.Credential == "" {
		return nil, fmt.Errorf("credential is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	scheme := auth.Classify(cfg.Credential)

	logger := log.With().Str("component", "catalog-client").Logger()
	logger.Debug().
		Str("scheme", string(scheme)).
		Msg("Credential scheme classified")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		scheme: scheme,
		logger: logger,
	}, nil
}

// Scheme returns the credential scheme chosen at construction.
func (c *Client) Scheme() auth.Scheme {
	return c.scheme
}

// FetchPage fetches one discover page. Each call is a single attempt:
// failures are classified and returned, never retried here. Records in
// the returned page are exactly what the API sent, without lineage.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}

	req, err := c.newDiscoverRequest(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	startTime := time.Now()
	defer func() {
		pageFetchDuration.Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Int("page", page).
		Msg("Fetching discover page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(ClassTransport)).Inc()
		pagesFetchedTotal.WithLabelValues("transport_error").Inc()
		c.logger.Error().Err(err).Int("page", page).Msg("Catalog request failed")
		return nil, &APIError{
			Class:   ClassTransport,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	pagesFetchedTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("page", page).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    statusMessage(resp),
		}
	}

	var result Page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fetchErrorsTotal.WithLabelValues(string(ClassUpstream)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ClassUpstream,
			Message:    "malformed response body",
			Err:        err,
		}
	}

	c.logger.Debug().
		Int("page", page).
		Int("records", len(result.Results)).
		Int("total_pages", result.TotalPages).
		Msg("Discover page fetched")

	return &result, nil
}

// newDiscoverRequest builds the GET request for one discover page with
// the credential applied according to the classified scheme.
func (c *Client) newDiscoverRequest(ctx context.Context, page int) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+"/discover/movie", nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("language", c.config.Language)
	q.Set("sort_by", c.config.SortBy)
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	c.scheme.Apply(req, c.config.Credential)

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// classifyStatus categorizes a non-200 status for observability and handling.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ClassAuthorization
	default:
		return ClassUpstream
	}
}

// statusMessage extracts the API error message from a failed response
// body, falling back to the HTTP status line. The catalog API reports
// failures as {"status_code": ..., "status_message": ...}.
func statusMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.Status
	}

	var apiMsg struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(body, &apiMsg); err == nil && apiMsg.StatusMessage != "" {
		return apiMsg.StatusMessage
	}

	return resp.Status
}
