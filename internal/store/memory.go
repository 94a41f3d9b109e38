package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/activityserve/activityserve/internal/domain"
)

// MemoryStore keeps documents in process. Used for tests and for running
// without Postgres; documents are stored serialized so callers never share
// map references with the store.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError{Op: "get", Err: err}
	}

	s.mu.Lock()
	raw, ok := s.docs[key]
	s.mu.Unlock()

	if !ok {
		return nil, domain.NotFoundError{Resource: key}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.StorageError{Op: "get", Err: err}
	}
	return doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}

	s.mu.Lock()
	s.docs[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError{Op: "delete", Err: err}
	}

	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ConditionalCreate(ctx context.Context, key string, doc Document) (bool, Document, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, domain.StorageError{Op: "conditionalCreate", Err: err}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return false, nil, domain.StorageError{Op: "conditionalCreate", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingRaw, ok := s.docs[key]; ok {
		var existing Document
		if err := json.Unmarshal(existingRaw, &existing); err != nil {
			return false, nil, domain.StorageError{Op: "conditionalCreate", Err: err}
		}
		return false, existing, nil
	}

	s.docs[key] = raw
	return true, doc, nil
}

func (s *MemoryStore) QueryByFields(ctx context.Context, fields map[string]any, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError{Op: "queryByFields", Err: err}
	}

	s.mu.Lock()
	raws := make([][]byte, 0, len(s.docs))
	for _, raw := range s.docs {
		raws = append(raws, raw)
	}
	s.mu.Unlock()

	var out []Document
	for _, raw := range raws {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if doc.Matches(fields) {
			out = append(out, doc)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

var _ ObjectStore = (*MemoryStore)(nil)
