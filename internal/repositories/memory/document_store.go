// Package memory provides an in-process DocumentStore for local development
// and tests. Documents are kept JSON-encoded so callers never share state
// with the store.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ArowuTest/study-profile-backend/internal/repositories"
)

var _ repositories.DocumentStore = (*DocumentStore)(nil)

type key struct {
	partition string
	id        string
}

// DocumentStore is a map-backed repositories.DocumentStore
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[key][]byte
}

// NewDocumentStore creates an empty DocumentStore
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[key][]byte)}
}

// Read decodes the stored document into out
func (s *DocumentStore) Read(ctx context.Context, id, partitionKey string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	raw, ok := s.docs[key{partitionKey, id}]
	s.mu.RUnlock()
	if !ok {
		return repositories.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// Create inserts doc unless its id is taken
func (s *DocumentStore) Create(ctx context.Context, doc repositories.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	k := key{doc.PartitionKey(), doc.DocumentID()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[k]; exists {
		return repositories.ErrAlreadyExists
	}
	s.docs[k] = raw
	return nil
}

// Upsert replaces or inserts doc
func (s *DocumentStore) Upsert(ctx context.Context, doc repositories.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[key{doc.PartitionKey(), doc.DocumentID()}] = raw
	s.mu.Unlock()
	return nil
}

// Delete removes the document
func (s *DocumentStore) Delete(ctx context.Context, id, partitionKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := key{partitionKey, id}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[k]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.docs, k)
	return nil
}

// Len reports how many documents are stored
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
