package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores each document natively and implements the revision
// check inside a Firestore transaction.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a document store for the given GCP project.
// Credentials are resolved from the environment (ADC).
func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// Get retrieves the document fields.
func (f *Firestore) Get(ctx context.Context, collection, docID string) (map[string]any, bool, error) {
	snap, err := f.client.Collection(collection).Doc(docID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	return snap.Data(), true, nil
}

// MergeSet merges fields into the document under the revision check.
func (f *Firestore) MergeSet(ctx context.Context, collection, docID string, fields map[string]any, expectedRevision int64) error {
	ref := f.client.Collection(collection).Doc(docID)

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		var current int64

		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// Absent document: current revision is 0.
		case err != nil:
			return fmt.Errorf("get document: %w", err)
		default:
			current = revisionOf(snap.Data())
		}

		if current != expectedRevision {
			return ErrRevisionConflict
		}

		merged := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged[RevisionField] = expectedRevision + 1

		return tx.Set(ref, merged, firestore.MergeAll)
	})
	if err != nil {
		if errors.Is(err, ErrRevisionConflict) {
			return ErrRevisionConflict
		}
		return fmt.Errorf("merge document: %w", err)
	}
	return nil
}

// Close closes the underlying Firestore client.
func (f *Firestore) Close() error {
	return f.client.Close()
}
