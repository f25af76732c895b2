package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *DocumentStore) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewDocumentStore(client, "")
}

func TestDocumentStore_Lifecycle(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()
	profile := models.NewProfile("u1", models.GroupTreatment, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	var out models.Profile
	assert.ErrorIs(t, store.Read(ctx, profile.ID, "u1", &out), repositories.ErrNotFound)

	require.NoError(t, store.Create(ctx, profile))
	assert.True(t, mr.Exists("study:u1:profile-u1"))
	assert.ErrorIs(t, store.Create(ctx, profile), repositories.ErrAlreadyExists)

	profile.LoginCount = 7
	profile.SetSurvey(models.SurveyPreTest, true)
	require.NoError(t, store.Upsert(ctx, profile))

	require.NoError(t, store.Read(ctx, profile.ID, "u1", &out))
	assert.Equal(t, 7, out.LoginCount)
	assert.Equal(t, models.GroupTreatment, out.Group)
	assert.True(t, out.SurveyCompleted(models.SurveyPreTest))

	require.NoError(t, store.Delete(ctx, profile.ID, "u1"))
	assert.ErrorIs(t, store.Delete(ctx, profile.ID, "u1"), repositories.ErrNotFound)
}

func TestDocumentStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewDocumentStore(client, "exp:")

	require.NoError(t, store.Upsert(context.Background(), models.NewProfile("u9", models.GroupControl, time.Now())))
	assert.True(t, mr.Exists("exp:u9:profile-u9"))
}

func TestDocumentStore_CorruptValue(t *testing.T) {
	mr, store := setupTestRedis(t)
	require.NoError(t, mr.Set("study:u1:profile-u1", "{not json"))

	var out models.Profile
	err := store.Read(context.Background(), "profile-u1", "u1", &out)
	var pe *repositories.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "decode", pe.Op)
}

func TestDocumentStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewDocumentStore(client, "")
	mr.Close()

	err = store.Upsert(context.Background(), models.NewProfile("u1", models.GroupControl, time.Now()))
	var pe *repositories.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.False(t, repositories.IsThrottled(err))
}

func TestClassify(t *testing.T) {
	assert.True(t, repositories.IsThrottled(classify("upsert", "x", errors.New("TRYAGAIN Multiple keys request during rehashing of slot"))))
	assert.True(t, repositories.IsThrottled(classify("upsert", "x", errors.New("BUSY Redis is busy running a script"))))
	assert.True(t, repositories.IsThrottled(classify("read", "x", errors.New("LOADING Redis is loading the dataset in memory"))))
	assert.False(t, repositories.IsThrottled(classify("upsert", "x", errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))))
}
