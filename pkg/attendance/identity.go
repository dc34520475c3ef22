package attendance

import (
	"fmt"
	"strings"
	"time"
)

// isoDay is the layout of the calendar-day component used for dates and keys.
const isoDay = "2006-01-02"

// identitySeparator joins the parts of a canonical identifier.
const identitySeparator = "_"

// IdentifierFor derives the canonical identifier of the session recorded by
// recorderID for classID on the calendar day of date.
//
// The day is normalized with NormalizeDay, separators are stripped from it, the
// triple is joined with "_" and the result is lower-cased:
//
//	IdentifierFor("c1", "t1", "2024-03-04")           // "c1_t1_20240304"
//	IdentifierFor("c1", "t1", "2024-03-04T15:30:00Z") // "c1_t1_20240304"
//
// classID and recorderID are assumed to be collision-free system identifiers.
func IdentifierFor(classID, recorderID, date string) (string, error) {
	classID = strings.TrimSpace(classID)
	recorderID = strings.TrimSpace(recorderID)

	if classID == "" {
		return "", fmt.Errorf("class ID cannot be empty")
	}
	if recorderID == "" {
		return "", fmt.Errorf("recorder ID cannot be empty")
	}

	day, err := NormalizeDay(date)
	if err != nil {
		return "", err
	}

	id := strings.Join([]string{classID, recorderID, stripSeparators(day)}, identitySeparator)
	return strings.ToLower(id), nil
}

// IdentifierForTime is IdentifierFor for a time value. Only the calendar day of t,
// in t's own location, is used.
func IdentifierForTime(classID, recorderID string, t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("date cannot be zero")
	}
	return IdentifierFor(classID, recorderID, t.Format(isoDay))
}

// NormalizeDay returns the ISO calendar day (YYYY-MM-DD) of date.
//
// Accepted inputs: an ISO day, a compact day (YYYYMMDD), or any string whose first
// ten characters are an ISO day, such as an RFC3339 timestamp. The time-of-day is
// dropped without converting between timezones.
func NormalizeDay(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", fmt.Errorf("date cannot be empty")
	}

	if len(date) >= len(isoDay) {
		if t, err := time.Parse(isoDay, date[:len(isoDay)]); err == nil {
			if len(date) == len(isoDay) || isTimeSuffix(date[len(isoDay):]) {
				return t.Format(isoDay), nil
			}
		}
	}

	if t, err := time.Parse("20060102", date); err == nil {
		return t.Format(isoDay), nil
	}

	return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD or an RFC3339 timestamp", date)
}

// DayScore converts an ISO day into its yyyymmdd integer form, used to order and
// range-filter sessions by date.
func DayScore(day string) (int64, error) {
	t, err := time.Parse(isoDay, day)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day()), nil
}

// isTimeSuffix reports whether rest looks like the time part of a timestamp.
func isTimeSuffix(rest string) bool {
	return rest[0] == 'T' || rest[0] == 't' || rest[0] == ' '
}

func stripSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
