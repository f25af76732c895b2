package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"go.uber.org/zap"
)

// DefaultSessionWindow is the inactivity gap after which a login counts again
const DefaultSessionWindow = 30 * time.Minute

// Login kinds reported to a LoginRecorder
const (
	LoginFirst       = "first"
	LoginNewSession  = "new_session"
	LoginSameSession = "same_session"
)

// LoginRecorder is notified of every RegisterLogin outcome
type LoginRecorder interface {
	LoginRegistered(kind string)
}

type studyService struct {
	repo          *repositories.ProfileRepository
	now           func() time.Time
	sessionWindow time.Duration
	logger        *zap.Logger
	recorder      LoginRecorder
}

// StudyOption configures the study service
type StudyOption func(*studyService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) StudyOption {
	return func(s *studyService) { s.now = now }
}

// WithSessionWindow overrides DefaultSessionWindow
func WithSessionWindow(d time.Duration) StudyOption {
	return func(s *studyService) {
		if d > 0 {
			s.sessionWindow = d
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) StudyOption {
	return func(s *studyService) { s.logger = l }
}

// WithLoginRecorder attaches a LoginRecorder
func WithLoginRecorder(r LoginRecorder) StudyOption {
	return func(s *studyService) { s.recorder = r }
}

// NewStudyService creates a new StudyService implementation.
// The service keeps no per-user state; every call is one read and at most
// one upsert, last writer wins.
func NewStudyService(repo *repositories.ProfileRepository, opts ...StudyOption) StudyService {
	s := &studyService{
		repo:          repo,
		now:           time.Now,
		sessionWindow: DefaultSessionWindow,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUserState returns the user's profile, creating it on first access
func (s *studyService) GetUserState(ctx context.Context, userID, username string) (*models.Profile, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	return s.repo.GetOrCreate(ctx, userID, username)
}

// RegisterLogin records a visit. The very first visit only stamps last_login
// and leaves login_count at 0.
func (s *studyService) RegisterLogin(ctx context.Context, userID, username string) (*models.Profile, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	profile, err := s.load(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if profile.LastLogin == nil || *profile.LastLogin == "" {
		profile.MarkLogin(now)
		s.record(LoginFirst)
		s.logger.Info("first login registered", zap.String("userId", userID), zap.String("group", string(profile.Group)))
		return s.repo.Save(ctx, profile)
	}

	lastLogin, err := models.ParseTimestamp(*profile.LastLogin)
	if err != nil {
		s.logger.Warn("unreadable last_login; treating as expired",
			zap.String("userId", userID),
			zap.String("last_login", *profile.LastLogin))
		lastLogin = time.Time{}
	}

	if now.Sub(lastLogin) <= s.sessionWindow {
		s.record(LoginSameSession)
		return profile, nil
	}

	profile.LoginCount++
	profile.MarkLogin(now)
	s.record(LoginNewSession)
	s.logger.Info("new session registered", zap.String("userId", userID), zap.Int("loginCount", profile.LoginCount))
	return s.repo.Save(ctx, profile)
}

// SetSurveyStatus flips one survey completion flag
func (s *studyService) SetSurveyStatus(ctx context.Context, userID, surveyKey string, completed bool) (*models.Profile, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	surveyKey = strings.TrimSpace(surveyKey)
	if surveyKey == "" {
		return nil, fmt.Errorf("%w: survey key is required", ErrInvalidArgument)
	}
	profile, err := s.load(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	profile.SetSurvey(surveyKey, completed)
	profile.Touch(s.now())
	return s.repo.Save(ctx, profile)
}

// DebugResetUser replaces the profile with a fresh one. A hard reset deletes
// the document first; a soft reset overwrites it in place.
func (s *studyService) DebugResetUser(ctx context.Context, userID, username string, hardDelete bool) (*models.Profile, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	s.logger.Warn("resetting study profile", zap.String("userId", userID), zap.Bool("hardDelete", hardDelete))
	if hardDelete {
		if _, err := s.repo.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return s.repo.Create(ctx, userID, username)
	}
	return s.repo.Save(ctx, s.repo.NewProfile(userID, username))
}

// DebugSetState overrides the login count, bypassing the monotonic rule, and
// the group when one is given. Input is validated before anything is read.
func (s *studyService) DebugSetState(ctx context.Context, userID string, loginCount int, group *string, username string) (*models.Profile, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	var newGroup models.Group
	if group != nil && *group != "" {
		g, ok := models.ParseGroup(*group)
		if !ok {
			return nil, fmt.Errorf("%w: group must be %q or %q, got %q",
				ErrInvalidArgument, models.GroupControl, models.GroupTreatment, *group)
		}
		newGroup = g
	}

	profile, err := s.load(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	profile.LoginCount = loginCount
	if newGroup != "" {
		profile.Group = newGroup
	}
	profile.Touch(s.now())
	s.logger.Warn("study profile overridden",
		zap.String("userId", userID),
		zap.Int("loginCount", loginCount),
		zap.String("group", string(profile.Group)))
	return s.repo.Save(ctx, profile)
}

// load returns the stored profile or, when absent, a fresh unsaved one so
// the caller's mutation and the creation share a single write.
func (s *studyService) load(ctx context.Context, userID, username string) (*models.Profile, error) {
	profile, err := s.repo.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = s.repo.NewProfile(userID, username)
	}
	return profile, nil
}

func (s *studyService) record(kind string) {
	if s.recorder != nil {
		s.recorder.LoginRegistered(kind)
	}
}

func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	return nil
}
