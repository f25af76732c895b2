package repositories

import (
	"context"
	"errors"

	"github.com/ArowuTest/study-profile-backend/internal/models"
)

// LegacyMetadataRepository reads session-metadata documents left by the
// earlier tracker. It never writes them.
type LegacyMetadataRepository struct {
	store DocumentStore
}

// NewLegacyMetadataRepository creates a new LegacyMetadataRepository
func NewLegacyMetadataRepository(store DocumentStore) *LegacyMetadataRepository {
	return &LegacyMetadataRepository{store: store}
}

// Read finds the metadata document of userID. A missing document is (nil, nil).
func (r *LegacyMetadataRepository) Read(ctx context.Context, userID string) (*models.LegacyMetadata, error) {
	var doc models.LegacyMetadata
	id := models.LegacyMetadataID(userID)
	err := r.store.Read(ctx, id, userID, &doc)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asPersistenceError("read", id, err)
	}
	return &doc, nil
}
