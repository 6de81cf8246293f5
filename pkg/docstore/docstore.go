// Package docstore provides a minimal versioned document store used to
// persist the ingestion cursor. Documents are flat field maps; every write
// is an optimistic compare-and-swap on a store-managed revision counter.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RevisionField is the reserved document field holding the revision
// counter. It is managed by the store; callers must not set it.
const RevisionField = "revision"

// Common errors returned by document stores.
var (
	// ErrRevisionConflict is returned when a MergeSet expectation does not
	// match the stored revision, meaning another writer got there first.
	ErrRevisionConflict = errors.New("document revision conflict")
)

// Store persists small JSON-like documents with optimistic concurrency.
type Store interface {
	// Get returns the document fields and whether the document exists.
	// An absent document is not an error.
	Get(ctx context.Context, collection, docID string) (map[string]any, bool, error)

	// MergeSet merges fields into the document, creating it when absent.
	// The write succeeds only if the stored revision still equals
	// expectedRevision (0 for a document that should not exist yet);
	// otherwise ErrRevisionConflict is returned. On success the stored
	// revision becomes expectedRevision+1.
	MergeSet(ctx context.Context, collection, docID string, fields map[string]any, expectedRevision int64) error

	// Close releases underlying client resources.
	Close() error
}

// Config selects and parameterizes a document store backend.
type Config struct {
	// Backend is one of "firestore", "redis", "memory".
	Backend string

	// ProjectID is the GCP project for the firestore backend.
	ProjectID string

	// RedisURL is the connection URL for the redis backend,
	// e.g. redis://localhost:6379/0.
	RedisURL string
}

// New creates a document store for the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "firestore", "": // Empty selects the default backend.
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("firestore docstore requires a project id")
		}
		return NewFirestore(ctx, cfg.ProjectID)
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedis(redis.NewClient(opts)), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported docstore backend: %s", cfg.Backend)
	}
}
