package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the total number of upsert attempts
	DefaultMaxAttempts = 3
	// DefaultBaseBackoff is the linear backoff step used without a server hint
	DefaultBaseBackoff = 500 * time.Millisecond
)

// Write outcomes reported to a RetryObserver
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeExhausted = "exhausted"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryObserver receives retry events, e.g. for metrics
type RetryObserver interface {
	Backoff(wait time.Duration)
	WriteFinished(outcome string, attempts int)
}

// RetryingWriter writes documents, retrying only when the store throttles.
type RetryingWriter struct {
	store       DocumentStore
	maxAttempts int
	baseBackoff time.Duration
	sleep       SleepFunc
	observer    RetryObserver
	logger      *zap.Logger
}

// RetryOption configures a RetryingWriter
type RetryOption func(*RetryingWriter)

// WithMaxAttempts sets the total attempt budget; values below 1 mean 1
func WithMaxAttempts(n int) RetryOption {
	return func(w *RetryingWriter) {
		if n < 1 {
			n = 1
		}
		w.maxAttempts = n
	}
}

// WithBaseBackoff sets the linear backoff step
func WithBaseBackoff(d time.Duration) RetryOption {
	return func(w *RetryingWriter) { w.baseBackoff = d }
}

// WithSleep replaces the wait function, mostly for tests
func WithSleep(fn SleepFunc) RetryOption {
	return func(w *RetryingWriter) { w.sleep = fn }
}

// WithObserver attaches a RetryObserver
func WithObserver(o RetryObserver) RetryOption {
	return func(w *RetryingWriter) { w.observer = o }
}

// WithLogger sets the logger used for throttle warnings and diagnostics
func WithLogger(l *zap.Logger) RetryOption {
	return func(w *RetryingWriter) { w.logger = l }
}

// NewRetryingWriter creates a RetryingWriter over store
func NewRetryingWriter(store DocumentStore, opts ...RetryOption) *RetryingWriter {
	w := &RetryingWriter{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		sleep:       sleepContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Upsert writes doc. A throttled attempt waits for the server hint, or
// baseBackoff*(attempt+1) without one, and tries again. Any other failure is
// returned at once. Every returned error is a *PersistenceError.
func (w *RetryingWriter) Upsert(ctx context.Context, doc Document) error {
	return w.write(ctx, "upsert", doc.DocumentID(), func() error {
		return w.store.Upsert(ctx, doc)
	})
}

// Create inserts doc with the same throttle handling as Upsert. ErrAlreadyExists
// is returned unwrapped and never retried.
func (w *RetryingWriter) Create(ctx context.Context, doc Document) error {
	return w.write(ctx, "create", doc.DocumentID(), func() error {
		return w.store.Create(ctx, doc)
	})
}

func (w *RetryingWriter) write(ctx context.Context, op, id string, attemptFn func() error) error {
	var lastErr error
	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		err := attemptFn()
		if err == nil {
			w.finished(OutcomeOK, attempt+1)
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrAlreadyExists) {
			w.finished(OutcomeOK, attempt+1)
			return ErrAlreadyExists
		}

		if !IsThrottled(err) {
			if diag := Diagnostics(err); diag != "" {
				w.logger.Error("store write failed",
					zap.String("op", op),
					zap.String("id", id),
					zap.String("diagnostics", diag),
					zap.Error(err))
			}
			w.finished(OutcomeError, attempt+1)
			return asPersistenceError(op, id, err)
		}

		wait, ok := RetryAfter(err)
		if !ok {
			wait = w.baseBackoff * time.Duration(attempt+1)
		}
		if attempt == w.maxAttempts-1 {
			break
		}
		if w.observer != nil {
			w.observer.Backoff(wait)
		}

		w.logger.Warn("store throttled write; retrying",
			zap.String("op", op),
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		if err := w.sleep(ctx, wait); err != nil {
			w.finished(OutcomeError, attempt+1)
			return &PersistenceError{Op: op, ID: id, Err: err}
		}
	}

	w.finished(OutcomeExhausted, w.maxAttempts)
	w.logger.Error("store write throttled on every attempt",
		zap.String("op", op),
		zap.String("id", id),
		zap.Int("attempts", w.maxAttempts),
		zap.Error(lastErr))
	return &PersistenceError{
		Op:          op,
		ID:          id,
		Diagnostics: Diagnostics(lastErr),
		Err:         fmt.Errorf("%d attempts exhausted: %w", w.maxAttempts, lastErr),
	}
}

func (w *RetryingWriter) finished(outcome string, attempts int) {
	if w.observer != nil {
		w.observer.WriteFinished(outcome, attempts)
	}
}

func asPersistenceError(op, id string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, ID: id, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
