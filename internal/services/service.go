package services

import (
	"context"
	"errors"

	"github.com/ArowuTest/study-profile-backend/internal/models"
)

// ErrInvalidArgument is returned, wrapped, for malformed caller input
var ErrInvalidArgument = errors.New("invalid argument")

// StudyService defines the study profile lifecycle operations
type StudyService interface {
	// GetUserState returns the user's profile, creating it on first access
	GetUserState(ctx context.Context, userID, username string) (*models.Profile, error)

	// RegisterLogin counts a new session when the previous login is older than the session window
	RegisterLogin(ctx context.Context, userID, username string) (*models.Profile, error)

	// SetSurveyStatus flips one survey completion flag
	SetSurveyStatus(ctx context.Context, userID, surveyKey string, completed bool) (*models.Profile, error)

	// DebugResetUser replaces the profile with a fresh one
	DebugResetUser(ctx context.Context, userID, username string, hardDelete bool) (*models.Profile, error)

	// DebugSetState overrides the login count and optionally the group
	DebugSetState(ctx context.Context, userID string, loginCount int, group *string, username string) (*models.Profile, error)
}

// MigrationService defines the one-time legacy metadata migration
type MigrationService interface {
	// MigrateUser converts one user's legacy metadata into a profile
	MigrateUser(ctx context.Context, userID string, force bool) (*MigrationResult, error)

	// MigrateUsers runs MigrateUser for every id, continuing past failures
	MigrateUsers(ctx context.Context, userIDs []string, force bool) ([]*MigrationResult, error)
}
