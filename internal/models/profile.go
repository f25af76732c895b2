package models

import (
	"strings"
	"time"
)

// ProfileType is the document type tag stored on every study profile
const ProfileType = "study_profile"

// profileIDPrefix is prepended to the user id to build the document id
const profileIDPrefix = "profile-"

// Survey keys created on every new profile
const (
	SurveyPreTest   = "pre_test"
	SurveyPostTest1 = "post_test_1"
	SurveyPostTest2 = "post_test_2"
)

// Group is the experiment arm a user belongs to
type Group string

const (
	GroupControl   Group = "control"
	GroupTreatment Group = "treatment"
)

// Valid reports whether g is one of the two experiment arms
func (g Group) Valid() bool {
	return g == GroupControl || g == GroupTreatment
}

// ParseGroup converts s into a Group, reporting false for anything else
func ParseGroup(s string) (Group, bool) {
	g := Group(strings.TrimSpace(s))
	return g, g.Valid()
}

// Profile represents the per-user study record.
// Timestamps are ISO-8601 strings so that documents written by older clients
// keep decoding even when a value is malformed.
type Profile struct {
	ID         string          `bson:"_id" json:"id"`
	Type       string          `bson:"type" json:"type"`
	UserID     string          `bson:"userId" json:"userId"`
	Group      Group           `bson:"group" json:"group"`
	LoginCount int             `bson:"login_count" json:"login_count"`
	LastLogin  *string         `bson:"last_login" json:"last_login"`
	CreatedAt  string          `bson:"created_at" json:"created_at"`
	UpdatedAt  string          `bson:"updated_at" json:"updated_at"`
	Surveys    map[string]bool `bson:"surveys" json:"surveys"`
}

// ProfileID returns the deterministic document id for userID
func ProfileID(userID string) string {
	return profileIDPrefix + userID
}

// NewProfile builds a fresh profile with zero logins and every default survey incomplete
func NewProfile(userID string, group Group, now time.Time) *Profile {
	ts := FormatTimestamp(now)
	return &Profile{
		ID:         ProfileID(userID),
		Type:       ProfileType,
		UserID:     userID,
		Group:      group,
		LoginCount: 0,
		LastLogin:  nil,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		Surveys: map[string]bool{
			SurveyPreTest:   false,
			SurveyPostTest1: false,
		},
	}
}

// DocumentID implements repositories.Document
func (p *Profile) DocumentID() string { return p.ID }

// PartitionKey implements repositories.Document
func (p *Profile) PartitionKey() string { return p.UserID }

// SurveyCompleted reports the flag for key; absent keys are incomplete
func (p *Profile) SurveyCompleted(key string) bool {
	return p.Surveys[key]
}

// SetSurvey flips a survey flag, creating the key when needed
func (p *Profile) SetSurvey(key string, completed bool) {
	if p.Surveys == nil {
		p.Surveys = make(map[string]bool)
	}
	p.Surveys[key] = completed
}

// MarkLogin records now as the last login and refreshes UpdatedAt
func (p *Profile) MarkLogin(now time.Time) {
	ts := FormatTimestamp(now)
	p.LastLogin = &ts
	p.UpdatedAt = ts
}

// Touch refreshes UpdatedAt
func (p *Profile) Touch(now time.Time) {
	p.UpdatedAt = FormatTimestamp(now)
}
