// Package redis stores study documents as JSON values in Redis, one key per
// document, namespaced by partition key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store
const DefaultPrefix = "study:"

var _ repositories.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a repositories.DocumentStore backed by Redis
type DocumentStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewDocumentStore creates a new DocumentStore; an empty prefix means DefaultPrefix
func NewDocumentStore(client goredis.UniversalClient, prefix string) *DocumentStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &DocumentStore{client: client, prefix: prefix}
}

func (s *DocumentStore) key(id, partitionKey string) string {
	return s.prefix + partitionKey + ":" + id
}

// Read decodes the stored JSON document into out
func (s *DocumentStore) Read(ctx context.Context, id, partitionKey string, out any) error {
	raw, err := s.client.Get(ctx, s.key(id, partitionKey)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return repositories.ErrNotFound
	}
	if err != nil {
		return classify("read", id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &repositories.PersistenceError{Op: "decode", ID: id, Err: err}
	}
	return nil
}

// Create stores doc only if the key is free
func (s *DocumentStore) Create(ctx context.Context, doc repositories.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &repositories.PersistenceError{Op: "encode", ID: doc.DocumentID(), Err: err}
	}
	ok, err := s.client.SetNX(ctx, s.key(doc.DocumentID(), doc.PartitionKey()), raw, 0).Result()
	if err != nil {
		return classify("create", doc.DocumentID(), err)
	}
	if !ok {
		return repositories.ErrAlreadyExists
	}
	return nil
}

// Upsert stores doc unconditionally
func (s *DocumentStore) Upsert(ctx context.Context, doc repositories.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &repositories.PersistenceError{Op: "encode", ID: doc.DocumentID(), Err: err}
	}
	if err := s.client.Set(ctx, s.key(doc.DocumentID(), doc.PartitionKey()), raw, 0).Err(); err != nil {
		return classify("upsert", doc.DocumentID(), err)
	}
	return nil
}

// Delete removes the document key
func (s *DocumentStore) Delete(ctx context.Context, id, partitionKey string) error {
	n, err := s.client.Del(ctx, s.key(id, partitionKey)).Result()
	if err != nil {
		return classify("delete", id, err)
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// classify treats the transient "try again" replies of a busy or resharding
// server as throttling; Redis sends no wait hint with them.
func classify(op, id string, err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "TRYAGAIN") || strings.HasPrefix(msg, "BUSY") || strings.HasPrefix(msg, "LOADING") {
		return &repositories.ThrottledError{Err: err}
	}
	return &repositories.PersistenceError{Op: op, ID: id, Diagnostics: msg, Err: err}
}
