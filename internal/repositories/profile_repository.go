package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/ArowuTest/study-profile-backend/internal/utils"
)

// ProfileRepository handles study profile persistence.
//
// There is no concurrency token on writes: two requests racing on the same
// user both read, both write, and the later upsert wins. Callers that need
// single-writer semantics must serialize per user themselves.
type ProfileRepository struct {
	store  DocumentStore
	writer *RetryingWriter
	now    func() time.Time
}

// NewProfileRepository creates a new ProfileRepository. now defaults to time.Now.
func NewProfileRepository(store DocumentStore, writer *RetryingWriter, now func() time.Time) *ProfileRepository {
	if now == nil {
		now = time.Now
	}
	return &ProfileRepository{
		store:  store,
		writer: writer,
		now:    now,
	}
}

// Read finds the profile of userID. A missing profile is (nil, nil).
func (r *ProfileRepository) Read(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	id := models.ProfileID(userID)
	err := r.store.Read(ctx, id, userID, &profile)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asPersistenceError("read", id, err)
	}
	return &profile, nil
}

// NewProfile builds a fresh profile for userID without persisting it
func (r *ProfileRepository) NewProfile(userID, username string) *models.Profile {
	return models.NewProfile(userID, utils.AssignGroup(userID, username), r.now())
}

// Create builds a fresh profile and upserts it
func (r *ProfileRepository) Create(ctx context.Context, userID, username string) (*models.Profile, error) {
	return r.Save(ctx, r.NewProfile(userID, username))
}

// GetOrCreate returns the stored profile, creating it first when absent
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID, username string) (*models.Profile, error) {
	profile, err := r.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	return r.Create(ctx, userID, username)
}

// Save upserts profile with retry and returns it
func (r *ProfileRepository) Save(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if err := r.writer.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Insert writes profile only if no document with its id exists yet.
// It reports false when one already did.
func (r *ProfileRepository) Insert(ctx context.Context, profile *models.Profile) (bool, error) {
	err := r.writer.Create(ctx, profile)
	if errors.Is(err, ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the profile of userID, reporting whether one existed
func (r *ProfileRepository) Delete(ctx context.Context, userID string) (bool, error) {
	id := models.ProfileID(userID)
	err := r.store.Delete(ctx, id, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, asPersistenceError("delete", id, err)
	}
	return true, nil
}
