// Package cursor persists and interprets the ingestion resume record.
// The record is a single small document tracking where the next run
// should start and what the last committed run produced.
package cursor

import (
	"strconv"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/docstore"
)

// Document field names of the cursor record.
const (
	FieldNextPage      = "next_page"
	FieldLastStartPage = "last_start_page"
	FieldLastEndPage   = "last_end_page"
	FieldLastRowCount  = "last_row_count"
	FieldLastOutput    = "last_output"
	FieldTotalPages    = "total_pages"
	FieldAuthScheme    = "auth_scheme"
	FieldUpdatedAt     = "updated_at"
)

// State is the typed view of the cursor record.
type State struct {
	// NextPage is the first page the next run should fetch.
	NextPage int

	// LastStartPage, LastEndPage and LastRowCount describe the page range
	// and record count of the last committed run.
	LastStartPage int
	LastEndPage   int
	LastRowCount  int

	// LastOutput is the object URI of the last committed batch.
	LastOutput string

	// TotalPages is the page count last reported by the catalog API,
	// 0 while unknown. It seeds the stop-before-fetch check of the next
	// run and drives wrap-around.
	TotalPages int

	// AuthScheme is the credential scheme the last run classified.
	AuthScheme string

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time

	// Revision is the optimistic concurrency token carried from Read to
	// Save. Zero means the record does not exist yet.
	Revision int64
}

// Empty returns the state a fresh deployment starts from.
func Empty() State {
	return State{NextPage: 1}
}

// NextPage computes where a following run resumes: the successor of the
// last fetched page, wrapping to 1 once a known total has been reached.
func NextPage(lastSuccess, totalPages int) int {
	if totalPages > 0 && lastSuccess >= totalPages {
		return 1
	}
	return lastSuccess + 1
}

// fromDocument decodes a raw cursor record, tolerating the numeric and
// timestamp representations the different backends return.
func fromDocument(doc map[string]any) State {
	s := Empty()

	if v, ok := asInt(doc[FieldNextPage]); ok && v >= 1 {
		s.NextPage = v
	}
	if v, ok := asInt(doc[FieldLastStartPage]); ok {
		s.LastStartPage = v
	}
	if v, ok := asInt(doc[FieldLastEndPage]); ok {
		s.LastEndPage = v
	}
	if v, ok := asInt(doc[FieldLastRowCount]); ok {
		s.LastRowCount = v
	}
	if v, ok := doc[FieldLastOutput].(string); ok {
		s.LastOutput = v
	}
	if v, ok := asInt(doc[FieldTotalPages]); ok && v >= 0 {
		s.TotalPages = v
	}
	if v, ok := doc[FieldAuthScheme].(string); ok {
		s.AuthScheme = v
	}
	if v, ok := asTime(doc[FieldUpdatedAt]); ok {
		s.UpdatedAt = v
	}

	if v, ok := asInt(doc[docstore.RevisionField]); ok {
		s.Revision = int64(v)
	}

	return s
}

// toFields encodes the business fields of the state for a merge write.
// The revision is not a field here; it rides the MergeSet expectation.
func (s State) toFields() map[string]any {
	return map[string]any{
		FieldNextPage:      s.NextPage,
		FieldLastStartPage: s.LastStartPage,
		FieldLastEndPage:   s.LastEndPage,
		FieldLastRowCount:  s.LastRowCount,
		FieldLastOutput:    s.LastOutput,
		FieldTotalPages:    s.TotalPages,
		FieldAuthScheme:    s.AuthScheme,
	}
}

// asInt converts the numeric shapes JSON, Firestore and plain Go writes
// produce. Strings holding digits are accepted too.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// asTime accepts native timestamps and RFC3339 strings.
func asTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case string:
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
