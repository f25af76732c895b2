package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/ArowuTest/study-profile-backend/internal/utils"
	"go.uber.org/zap"
)

// Migration statuses
const (
	MigrationMigrated    = "migrated"
	MigrationOverwritten = "overwritten"
	MigrationSkipped     = "skipped_existing"
	MigrationNoLegacy    = "no_legacy"
)

// MigrationResult describes what happened to one user
type MigrationResult struct {
	UserID  string          `json:"userId"`
	Status  string          `json:"status"`
	Profile *models.Profile `json:"profile,omitempty"`
}

type migrationService struct {
	profiles *repositories.ProfileRepository
	legacy   *repositories.LegacyMetadataRepository
	now      func() time.Time
	logger   *zap.Logger
}

// NewMigrationService creates a new MigrationService implementation
func NewMigrationService(profiles *repositories.ProfileRepository, legacy *repositories.LegacyMetadataRepository, now func() time.Time, logger *zap.Logger) MigrationService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &migrationService{profiles: profiles, legacy: legacy, now: now, logger: logger}
}

// MigrateUser converts userID's metadata document into a profile. An existing
// profile wins unless force is set. Legacy documents are never modified.
func (s *migrationService) MigrateUser(ctx context.Context, userID string, force bool) (*MigrationResult, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	result := &MigrationResult{UserID: userID}

	existing, err := s.profiles.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		result.Status = MigrationSkipped
		result.Profile = existing
		return result, nil
	}

	doc, err := s.legacy.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		result.Status = MigrationNoLegacy
		result.Profile = existing
		return result, nil
	}

	profile := ConvertLegacy(doc, s.now())
	if force {
		if _, err := s.profiles.Save(ctx, profile); err != nil {
			return nil, err
		}
		result.Status = MigrationMigrated
		if existing != nil {
			result.Status = MigrationOverwritten
		}
		result.Profile = profile
		return result, nil
	}

	// Insert instead of upsert: a profile created since the read above wins.
	inserted, err := s.profiles.Insert(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !inserted {
		winner, err := s.profiles.Read(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.Status = MigrationSkipped
		result.Profile = winner
		return result, nil
	}
	result.Status = MigrationMigrated
	result.Profile = profile
	s.logger.Info("legacy metadata migrated", zap.String("userId", userID), zap.String("group", string(profile.Group)))
	return result, nil
}

// MigrateUsers migrates every id in order. Failures are collected and
// returned together after the remaining users were attempted.
func (s *migrationService) MigrateUsers(ctx context.Context, userIDs []string, force bool) ([]*MigrationResult, error) {
	results := make([]*MigrationResult, 0, len(userIDs))
	var errs []error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := s.MigrateUser(ctx, userID, force)
		if err != nil {
			s.logger.Error("legacy migration failed", zap.String("userId", userID), zap.Error(err))
			errs = append(errs, fmt.Errorf("migrate %s: %w", userID, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// ConvertLegacy maps a session-metadata document onto the profile schema.
// The legacy tracker counted the first visit as login 1, profiles count it
// as 0, so the count is shifted down by one.
func ConvertLegacy(doc *models.LegacyMetadata, now time.Time) *models.Profile {
	group, ok := models.ParseGroup(doc.TreatmentGroup)
	if !ok {
		group = utils.AssignGroup(doc.UserID, "")
	}
	profile := models.NewProfile(doc.UserID, group, now)

	profile.LoginCount = doc.LoginCount - 1
	if profile.LoginCount < 0 {
		profile.LoginCount = 0
	}

	if doc.LastLogin != "" {
		lastLogin := doc.LastLogin
		if t, err := models.ParseTimestamp(doc.LastLogin); err == nil {
			lastLogin = models.FormatTimestamp(t)
		}
		profile.LastLogin = &lastLogin
	}

	for key, completed := range doc.Surveys {
		if mapped, ok := models.LegacySurveyKeys[key]; ok {
			key = mapped
		}
		profile.SetSurvey(key, completed)
	}
	return profile
}
