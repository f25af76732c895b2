package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// partitionField holds the partition key on every document
	partitionField = "userId"
	// throttledCode is what Cosmos DB's MongoDB API returns for HTTP 429
	throttledCode = 16500
)

var retryAfterPattern = regexp.MustCompile(`RetryAfterMs=(\d+)`)

// Compile-time check to ensure DocumentStore implements the interface
var _ repositories.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a repositories.DocumentStore over a MongoDB collection.
// Documents are addressed by _id and partition key together so that the
// same code works against a collection sharded on userId.
type DocumentStore struct {
	collection *mongo.Collection
}

// NewDocumentStore creates a new DocumentStore over db.collection
func NewDocumentStore(db *mongo.Database, collection string) *DocumentStore {
	return newDocumentStore(db.Collection(collection))
}

func newDocumentStore(collection *mongo.Collection) *DocumentStore {
	return &DocumentStore{collection: collection}
}

// EnsureIndexes creates the partition key index
func (s *DocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: partitionField, Value: 1}},
	})
	if err != nil {
		return classify("create index", "", err)
	}
	return nil
}

// Read finds a document by id and partition key and decodes it into out
func (s *DocumentStore) Read(ctx context.Context, id, partitionKey string, out any) error {
	err := s.collection.FindOne(ctx, documentFilter(id, partitionKey)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repositories.ErrNotFound
	}
	if err != nil {
		return classify("read", id, err)
	}
	return nil
}

// Create inserts doc, failing when its id is taken
func (s *DocumentStore) Create(ctx context.Context, doc repositories.Document) error {
	_, err := s.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrAlreadyExists
	}
	if err != nil {
		return classify("create", doc.DocumentID(), err)
	}
	return nil
}

// Upsert replaces doc, inserting it when absent. Two upserts racing on a
// missing document can both try the insert; the loser gets E11000 and is
// replayed once, which then matches the winner's document.
func (s *DocumentStore) Upsert(ctx context.Context, doc repositories.Document) error {
	opts := options.Replace().SetUpsert(true)
	filter := documentFilter(doc.DocumentID(), doc.PartitionKey())
	_, err := s.collection.ReplaceOne(ctx, filter, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.collection.ReplaceOne(ctx, filter, doc, opts)
	}
	if err != nil {
		return classify("upsert", doc.DocumentID(), err)
	}
	return nil
}

// Delete removes a document by id and partition key
func (s *DocumentStore) Delete(ctx context.Context, id, partitionKey string) error {
	result, err := s.collection.DeleteOne(ctx, documentFilter(id, partitionKey))
	if err != nil {
		return classify("delete", id, err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func documentFilter(id, partitionKey string) bson.M {
	return bson.M{"_id": id, partitionField: partitionKey}
}

// classify maps a driver error onto the repositories error set
func classify(op, id string, err error) error {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(throttledCode) {
		return &repositories.ThrottledError{RetryAfter: parseRetryAfter(err.Error()), Err: err}
	}
	return &repositories.PersistenceError{
		Op:          op,
		ID:          id,
		Diagnostics: diagnostics(err),
		Err:         err,
	}
}

// parseRetryAfter reads the RetryAfterMs hint Cosmos DB embeds in the message
func parseRetryAfter(msg string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	ms, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func diagnostics(err error) string {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Sprintf("code=%d name=%s labels=%v", cmdErr.Code, cmdErr.Name, cmdErr.Labels)
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		parts := make([]string, 0, len(writeErr.WriteErrors)+1)
		for _, we := range writeErr.WriteErrors {
			parts = append(parts, fmt.Sprintf("code=%d msg=%q", we.Code, we.Message))
		}
		if wce := writeErr.WriteConcernError; wce != nil {
			parts = append(parts, fmt.Sprintf("writeConcern code=%d msg=%q", wce.Code, wce.Message))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
