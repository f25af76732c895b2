package utils

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ArowuTest/study-profile-backend/internal/models"
)

// TreatmentThreshold is the smallest trailing number assigned to treatment
const TreatmentThreshold = 300

// AssignGroup deterministically places a user in an experiment arm.
// The username wins over the user id when present. Trailing digits are read
// from the part before any '@' first, then from the whole candidate; no
// digits count as 0, which lands in control. A run too long for uint64 is
// past the threshold by definition.
func AssignGroup(userID, username string) models.Group {
	candidate := username
	if candidate == "" {
		candidate = userID
	}

	localPart, _, _ := strings.Cut(candidate, "@")
	digits := TrailingDigits(localPart)
	if digits == "" {
		digits = TrailingDigits(candidate)
	}

	number, err := strconv.ParseUint(digits, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return models.GroupTreatment
	}
	if number >= TreatmentThreshold {
		return models.GroupTreatment
	}
	return models.GroupControl
}

// TrailingDigits returns the longest run of decimal digits ending s, as
// ASCII. A single trailing newline is ignored. Any Unicode decimal digit
// counts, so "user٣٠٠" yields "300".
func TrailingDigits(s string) string {
	s = strings.TrimSuffix(s, "\n")

	var reversed []byte
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		value, ok := digitValue(r)
		if !ok {
			break
		}
		reversed = append(reversed, byte('0'+value))
		s = s[:len(s)-size]
	}
	slices.Reverse(reversed)
	return string(reversed)
}

// digitValue reports the value of a Unicode decimal digit. Every Nd block
// is a contiguous run of ten starting at zero.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if r < utf8.RuneSelf || !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rng := range unicode.Nd.R16 {
		if rng.Stride == 1 && r <= 0xFFFF && uint16(r) >= rng.Lo && uint16(r) <= rng.Hi {
			return int(uint16(r)-rng.Lo) % 10, true
		}
	}
	for _, rng := range unicode.Nd.R32 {
		if rng.Stride == 1 && uint32(r) >= rng.Lo && uint32(r) <= rng.Hi {
			return int(uint32(r)-rng.Lo) % 10, true
		}
	}
	return 0, false
}
