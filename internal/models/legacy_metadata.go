package models

// legacyIDPrefix is the id prefix used by the session-metadata variant
const legacyIDPrefix = "metadata-"

// Survey keys used by the session-metadata variant
const (
	LegacySurveyPreTest      = "preTest"
	LegacySurveySession1Post = "session1Post"
	LegacySurveySession2Post = "session2Post"
)

// LegacySurveyKeys maps session-metadata survey keys onto profile survey keys
var LegacySurveyKeys = map[string]string{
	LegacySurveyPreTest:      SurveyPreTest,
	LegacySurveySession1Post: SurveyPostTest1,
	LegacySurveySession2Post: SurveyPostTest2,
}

// LegacyMetadata represents a `metadata-<userId>` document written by the
// earlier session tracker. It is only read, for migration.
type LegacyMetadata struct {
	ID             string          `bson:"_id" json:"id"`
	UserID         string          `bson:"userId" json:"userId"`
	Type           string          `bson:"type" json:"type"`
	TreatmentGroup string          `bson:"treatmentGroup" json:"treatmentGroup"`
	LoginCount     int             `bson:"loginCount" json:"loginCount"`
	LastLogin      string          `bson:"lastLogin" json:"lastLogin"`
	Surveys        map[string]bool `bson:"surveys" json:"surveys"`
}

// LegacyMetadataID returns the document id of userID's session metadata
func LegacyMetadataID(userID string) string {
	return legacyIDPrefix + userID
}

// DocumentID implements repositories.Document
func (m *LegacyMetadata) DocumentID() string { return m.ID }

// PartitionKey implements repositories.Document
func (m *LegacyMetadata) PartitionKey() string { return m.UserID }
