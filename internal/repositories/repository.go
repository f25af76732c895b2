package repositories

import (
	"context"
)

// Document is anything the DocumentStore can persist. Every document lives
// in the partition named by PartitionKey.
type Document interface {
	DocumentID() string
	PartitionKey() string
}

// DocumentStore defines the keyed document operations the study backend needs
// from its storage. Implementations translate their driver failures into
// ErrNotFound, ErrAlreadyExists, *ThrottledError or *PersistenceError.
type DocumentStore interface {
	// Read decodes the document into out, or returns ErrNotFound
	Read(ctx context.Context, id, partitionKey string, out any) error
	// Create inserts doc, or returns ErrAlreadyExists
	Create(ctx context.Context, doc Document) error
	// Upsert replaces or inserts doc unconditionally
	Upsert(ctx context.Context, doc Document) error
	// Delete removes the document, or returns ErrNotFound
	Delete(ctx context.Context, id, partitionKey string) error
}
