package models

import (
	"errors"
	"strings"
	"time"
)

// Layouts accepted when reading stored timestamps. Naive values were written
// by the legacy session-metadata code and are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ErrInvalidTimestamp is returned by ParseTimestamp for unreadable values
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// FormatTimestamp renders t as an ISO-8601 UTC string
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a stored timestamp, assuming UTC when no offset is present
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
