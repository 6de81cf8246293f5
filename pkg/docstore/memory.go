package docstore

import (
	"context"
	"sync"
)

// Memory is an in-process document store for tests and local development.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]any),
	}
}

func memKey(collection, docID string) string {
	return collection + "/" + docID
}

// Get returns a copy of the stored document.
func (m *Memory) Get(ctx context.Context, collection, docID string) (map[string]any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[memKey(collection, docID)]
	if !ok {
		return nil, false, nil
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true, nil
}

// MergeSet merges fields into the document under the revision check.
func (m *Memory) MergeSet(ctx context.Context, collection, docID string, fields map[string]any, expectedRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(collection, docID)
	doc, ok := m.docs[key]

	var current int64
	if ok {
		current = revisionOf(doc)
	}
	if current != expectedRevision {
		return ErrRevisionConflict
	}

	if !ok {
		doc = make(map[string]any, len(fields)+1)
		m.docs[key] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	doc[RevisionField] = expectedRevision + 1

	return nil
}

// Close implements Store. The memory backend holds no resources.
func (m *Memory) Close() error {
	return nil
}

// revisionOf reads the revision counter from a document, tolerating the
// numeric types different decoders produce.
func revisionOf(doc map[string]any) int64 {
	switch v := doc[RevisionField].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
