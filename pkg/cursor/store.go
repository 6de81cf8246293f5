package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/tmdb-ingest/pkg/docstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for cursor persistence.
var (
	cursorRevisionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_ingest_cursor_revision_conflicts_total",
		Help: "Total cursor writes rejected because another run committed first",
	})
)

// Store reads and writes the cursor record through a document store.
type Store struct {
	docs       docstore.Store
	collection string
	docID      string
	logger     zerolog.Logger
}

// NewStore creates a cursor store over one document.
func NewStore(docs docstore.Store, collection, docID string) *Store {
	return &Store{
		docs:       docs,
		collection: collection,
		docID:      docID,
		logger:     log.With().Str("component", "cursor-store").Logger(),
	}
}

// Read returns the current cursor state. An absent record yields the
// empty defaults (next_page 1, unknown total) rather than an error.
func (s *Store) Read(ctx context.Context) (State, error) {
	doc, ok, err := s.docs.Get(ctx, s.collection, s.docID)
	if err != nil {
		return State{}, fmt.Errorf("read cursor: %w", err)
	}
	if !ok {
		s.logger.Debug().Msg("No cursor record, starting from defaults")
		return Empty(), nil
	}

	state := fromDocument(doc)
	s.logger.Debug().
		Int("next_page", state.NextPage).
		Int("total_pages", state.TotalPages).
		Int64("revision", state.Revision).
		Msg("Cursor read")

	return state, nil
}

// Save merges the state into the record, stamping updated_at. The write
// is conditional on state.Revision still being current; a run that lost
// the race gets docstore.ErrRevisionConflict and must not retry.
func (s *Store) Save(ctx context.Context, state State) error {
	fields := state.toFields()
	fields[FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)

	if err := s.docs.MergeSet(ctx, s.collection, s.docID, fields, state.Revision); err != nil {
		if errors.Is(err, docstore.ErrRevisionConflict) {
			cursorRevisionConflictsTotal.Inc()
			s.logger.Error().
				Int64("revision", state.Revision).
				Msg("Cursor write lost to a concurrent run")
		}
		return fmt.Errorf("save cursor: %w", err)
	}

	s.logger.Info().
		Int("next_page", state.NextPage).
		Int("total_pages", state.TotalPages).
		Int("last_row_count", state.LastRowCount).
		Msg("Cursor committed")

	return nil
}
