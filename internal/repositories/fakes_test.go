package repositories_test

import (
	"context"
	"sync"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/ArowuTest/study-profile-backend/internal/repositories/memory"
)

// scriptedStore wraps the memory store and fails writes from queues
type scriptedStore struct {
	*memory.DocumentStore

	mu         sync.Mutex
	upsertErrs []error
	createErrs []error
	readErr    error
	deleteErr  error
	upserts    int
	creates    int
}

func newScriptedStore(upsertErrs ...error) *scriptedStore {
	return &scriptedStore{DocumentStore: memory.NewDocumentStore(), upsertErrs: upsertErrs}
}

func (s *scriptedStore) Upsert(ctx context.Context, doc repositories.Document) error {
	s.mu.Lock()
	s.upserts++
	var err error
	if len(s.upsertErrs) > 0 {
		err, s.upsertErrs = s.upsertErrs[0], s.upsertErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.DocumentStore.Upsert(ctx, doc)
}

func (s *scriptedStore) Create(ctx context.Context, doc repositories.Document) error {
	s.mu.Lock()
	s.creates++
	var err error
	if len(s.createErrs) > 0 {
		err, s.createErrs = s.createErrs[0], s.createErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.DocumentStore.Create(ctx, doc)
}

func (s *scriptedStore) Read(ctx context.Context, id, partitionKey string, out any) error {
	if s.readErr != nil {
		return s.readErr
	}
	return s.DocumentStore.Read(ctx, id, partitionKey, out)
}

func (s *scriptedStore) Delete(ctx context.Context, id, partitionKey string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.DocumentStore.Delete(ctx, id, partitionKey)
}

func (s *scriptedStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *scriptedStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// recordingSleep records requested waits without blocking
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

type recordingObserver struct {
	backoffs []time.Duration
	outcome  string
	attempts int
}

func (o *recordingObserver) Backoff(wait time.Duration) { o.backoffs = append(o.backoffs, wait) }

func (o *recordingObserver) WriteFinished(outcome string, attempts int) {
	o.outcome, o.attempts = outcome, attempts
}

func throttled(after time.Duration) error {
	return &repositories.ThrottledError{RetryAfter: after}
}
