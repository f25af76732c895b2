package utils

import (
	"testing"

	"github.com/ArowuTest/study-profile-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAssignGroup(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		username string
		want     models.Group
	}{
		{"below threshold", "user", "aifast299", models.GroupControl},
		{"at threshold", "user", "aifast300", models.GroupTreatment},
		{"email local part", "user", "aifast300@example.com", models.GroupTreatment},
		{"no digits", "user", "nodigits", models.GroupControl},
		{"falls back to user id", "aifast450", "", models.GroupTreatment},
		{"username wins over user id", "aifast450", "aifast12", models.GroupControl},
		{"digits only after the at sign", "user", "someone@host301", models.GroupTreatment},
		{"local part digits preferred", "user", "a5@host999", models.GroupControl},
		{"leading zeros", "user", "aifast0300", models.GroupTreatment},
		{"number wider than uint64", "user", "x99999999999999999999999", models.GroupTreatment},
		{"everything empty", "", "", models.GroupControl},
		{"one trailing newline", "user", "aifast300\n", models.GroupTreatment},
		{"two trailing newlines", "user", "aifast300\n\n", models.GroupControl},
		{"arabic-indic digits", "user", "aifast\u0663\u0660\u0660", models.GroupTreatment},
		{"fullwidth digits below threshold", "user", "aifast\uff12\uff19\uff19", models.GroupControl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignGroup(tt.userID, tt.username))
		})
	}
}

func TestAssignGroup_Stable(t *testing.T) {
	first := AssignGroup("00000000-0000-0000-0000-000000000301", "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AssignGroup("00000000-0000-0000-0000-000000000301", ""))
	}
	assert.Equal(t, models.GroupTreatment, first)
}

func TestTrailingDigits(t *testing.T) {
	assert.Equal(t, "123", TrailingDigits("abc123"))
	assert.Equal(t, "", TrailingDigits("abc"))
	assert.Equal(t, "42", TrailingDigits("42"))
	assert.Equal(t, "", TrailingDigits(""))
	assert.Equal(t, "7", TrailingDigits("1a7"))
	assert.Equal(t, "300", TrailingDigits("x300\n"))
	assert.Equal(t, "", TrailingDigits("x300\n\n"))
	assert.Equal(t, "305", TrailingDigits("x\u0663\u0660\u0665"))
	assert.Equal(t, "19", TrailingDigits("x\U0001D7CF\U0001D7D7"))
}
