// Package testutil provides testing utilities for the catalog ingestion service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DiscoverPath is the catalog endpoint the ingestion service pulls from.
const DiscoverPath = "/discover/movie"

// MockTMDBResponse defines the behavior for a mock catalog endpoint response.
type MockTMDBResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTMDB is a configurable mock catalog API server for testing.
type MockTMDB struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	PagesRequested    []int
	LastRequestHeader http.Header
	LastQuery         url.Values
}

// NewMockTMDB creates a new mock catalog API server.
func NewMockTMDB() *MockTMDB {
	mock := &MockTMDB{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query()
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			mock.PagesRequested = append(mock.PagesRequested, page)
		}
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTMDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTMDB) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTMDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PagesRequested = nil
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTMDB) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockTMDB) SetResponse(path string, resp MockTMDBResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDiscoverCatalog serves a synthetic catalog of totalPages pages with
// perPage movies each from the discover endpoint. Pages past the total
// return an empty result list, which is what the live API does.
func (m *MockTMDB) SetDiscoverCatalog(totalPages, perPage int) {
	m.SetHandler(DiscoverPath, func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		count := perPage
		if page > totalPages {
			count = 0
		}

		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(DiscoverBody(page, totalPages, count)))
	})
}

// SetDiscoverFailure makes the discover endpoint fail for one specific page
// while all other pages keep serving the synthetic catalog.
func (m *MockTMDB) SetDiscoverFailure(failPage int, failResp MockTMDBResponse, totalPages, perPage int) {
	m.SetHandler(DiscoverPath, func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		if page == failPage {
			for key, value := range failResp.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(failResp.StatusCode)
			if failResp.Body != "" {
				w.Write([]byte(failResp.Body))
			}
			return
		}

		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(DiscoverBody(page, totalPages, perPage)))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTMDB) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPagesRequested returns the page numbers requested, in order.
func (m *MockTMDB) GetPagesRequested() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]int, len(m.PagesRequested))
	copy(pages, m.PagesRequested)
	return pages
}

// defaultHandler serves a generic single-page catalog.
func (m *MockTMDB) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(DiscoverBody(1, 1, 2)))
}

// DiscoverBody builds a discover response page with count deterministic
// movie records. Record ids encode the page so tests can assert ordering.
func DiscoverBody(page, totalPages, count int) string {
	results := make([]map[string]any, count)
	for i := range results {
		results[i] = map[string]any{
			"id":           page*1000 + i,
			"title":        fmt.Sprintf("Movie %d-%d", page, i),
			"popularity":   1000.0 - float64(page),
			"release_date": "2026-01-15",
			"vote_average": 7.2,
		}
	}

	body, _ := json.Marshal(map[string]any{
		"page":          page,
		"results":       results,
		"total_pages":   totalPages,
		"total_results": totalPages * count,
	})
	return string(body)
}

// NewUnauthorizedResponse creates the 401 response the catalog API sends
// for a rejected credential.
func NewUnauthorizedResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status_code":11,"status_message":"Internal error: Something went wrong, contact TMDb."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status_code":25,"status_message":"Your request count (41) is over the allowed limit of 40."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
			"Retry-After":  "10",
		},
	}
}
