package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores each document as one JSON value and implements the
// revision check with WATCH/MULTI so concurrent writers cannot interleave
// between read and write.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a document store on top of an existing Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func redisKey(collection, docID string) string {
	return fmt.Sprintf("docstore:%s:%s", collection, docID)
}

// Get retrieves and decodes the document.
func (r *Redis) Get(ctx context.Context, collection, docID string) (map[string]any, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(collection, docID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}

// MergeSet merges fields into the document under the revision check.
func (r *Redis) MergeSet(ctx context.Context, collection, docID string, fields map[string]any, expectedRevision int64) error {
	key := redisKey(collection, docID)

	txn := func(tx *redis.Tx) error {
		doc := map[string]any{}

		raw, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// Absent document: current revision is 0.
		case err != nil:
			return fmt.Errorf("get document: %w", err)
		default:
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
		}

		if revisionOf(doc) != expectedRevision {
			return ErrRevisionConflict
		}

		for k, v := range fields {
			doc[k] = v
		}
		doc[RevisionField] = expectedRevision + 1

		encoded, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The watched key changed before EXEC: a concurrent writer won.
		return ErrRevisionConflict
	}
	return err
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
