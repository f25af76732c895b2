package repositories_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC)

func newRepo(store repositories.DocumentStore) *repositories.ProfileRepository {
	writer := repositories.NewRetryingWriter(store, repositories.WithSleep((&recordingSleep{}).sleep))
	return repositories.NewProfileRepository(store, writer, func() time.Time { return fixedNow })
}

func TestProfileRepository_ReadMissing(t *testing.T) {
	repo := newRepo(newScriptedStore())

	profile, err := repo.Read(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestProfileRepository_ReadFailure(t *testing.T) {
	store := newScriptedStore()
	store.readErr = errors.New("socket closed")
	repo := newRepo(store)

	_, err := repo.Read(context.Background(), "u1")
	var pe *repositories.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "read", pe.Op)
	assert.Equal(t, "profile-u1", pe.ID)
}

func TestProfileRepository_Create(t *testing.T) {
	repo := newRepo(newScriptedStore())

	profile, err := repo.Create(context.Background(), "u1", "aifast300@example.com")
	require.NoError(t, err)

	assert.Equal(t, "profile-u1", profile.ID)
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, models.GroupTreatment, profile.Group)
	assert.Equal(t, models.FormatTimestamp(fixedNow), profile.CreatedAt)

	stored, err := repo.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, profile, stored)
}

func TestProfileRepository_GetOrCreateIsIdempotent(t *testing.T) {
	store := newScriptedStore()
	repo := newRepo(store)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "u1", "aifast12")
	require.NoError(t, err)
	// A different username later must not regroup an existing profile.
	second, err := repo.GetOrCreate(ctx, "u1", "aifast999")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.GroupControl, second.Group)
	assert.Equal(t, 1, store.upsertCount())
}

func TestProfileRepository_GetOrCreateSurfacesExhaustedRetries(t *testing.T) {
	store := newScriptedStore(throttled(0), throttled(0), throttled(0))
	repo := newRepo(store)

	_, err := repo.GetOrCreate(context.Background(), "u1", "")
	var pe *repositories.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.True(t, repositories.IsThrottled(err))
}

func TestProfileRepository_Delete(t *testing.T) {
	repo := newRepo(newScriptedStore())
	ctx := context.Background()

	removed, err := repo.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Create(ctx, "u1", "")
	require.NoError(t, err)

	removed, err = repo.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	profile, err := repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestProfileRepository_DeleteFailure(t *testing.T) {
	store := newScriptedStore()
	store.deleteErr = errors.New("forbidden")
	repo := newRepo(store)

	_, err := repo.Delete(context.Background(), "u1")
	var pe *repositories.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "delete", pe.Op)
}

func TestProfileRepository_Insert(t *testing.T) {
	repo := newRepo(newScriptedStore())
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, repo.NewProfile("u1", ""))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, repo.NewProfile("u1", ""))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestProfileRepository_InsertRetriesThrottling(t *testing.T) {
	store := newScriptedStore()
	store.createErrs = []error{throttled(10 * time.Millisecond), throttled(10 * time.Millisecond)}
	repo := newRepo(store)

	inserted, err := repo.Insert(context.Background(), repo.NewProfile("u1", ""))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 3, store.createCount())
	assert.Equal(t, 1, store.Len())
}

func TestProfileRepository_GetOrCreateConcurrent(t *testing.T) {
	store := newScriptedStore()
	repo := newRepo(store)

	const workers = 8
	profiles := make([]*models.Profile, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profiles[i], errs[i] = repo.GetOrCreate(context.Background(), "u-1", "aifast301")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, profiles[0].ID, profiles[i].ID)
		assert.Equal(t, profiles[0].Group, profiles[i].Group)
	}
	assert.Equal(t, 1, store.Len())
}

func TestLegacyMetadataRepository_Read(t *testing.T) {
	store := newScriptedStore()
	repo := repositories.NewLegacyMetadataRepository(store)
	ctx := context.Background()

	doc, err := repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Upsert(ctx, &models.LegacyMetadata{
		ID:             models.LegacyMetadataID("u1"),
		UserID:         "u1",
		Type:           "metadata",
		TreatmentGroup: "treatment",
		LoginCount:     3,
	}))

	doc, err = repo.Read(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 3, doc.LoginCount)
	assert.Equal(t, "treatment", doc.TreatmentGroup)
}
