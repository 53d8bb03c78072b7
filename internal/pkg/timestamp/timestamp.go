// Package timestamp owns the official display representation of pass
// timestamps (DD-MM-YYYY HH:MM:SS AM/PM) and the validity-window arithmetic
// built on it. The display string is the legally authoritative value embedded
// in form data; the storage columns carry the same instants in native form
// for querying, and ResolveValidUpto arbitrates between the two.
package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var formatPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4} \d{2}:\d{2}:\d{2} (AM|PM)$`)

// Format renders t as DD-MM-YYYY HH:MM:SS AM/PM, zero-padded, 12-hour clock
// with midnight and noon shown as 12. No locale involvement.
func Format(t time.Time) string {
	hour := t.Hour()
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	hour = hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d-%02d-%04d %02d:%02d:%02d %s",
		t.Day(), int(t.Month()), t.Year(), hour, t.Minute(), t.Second(), period)
}

// Parse is the exact inverse of Format. Malformed input returns time.Now():
// a defensive fallback, not an error. Callers needing strictness validate
// with IsValidFormat first.
func Parse(s string) time.Time {
	t, ok := parseOfficial(s)
	if !ok {
		return time.Now()
	}
	return t
}

// ParseFlexible tolerates the official display format as well as RFC3339 and
// a plain "2006-01-02 15:04:05" datetime, reporting whether anything matched.
func ParseFlexible(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseOfficial(s); ok {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseOfficial(s string) (time.Time, bool) {
	if !formatPattern.MatchString(s) {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(s[0:2])
	month, _ := strconv.Atoi(s[3:5])
	year, _ := strconv.Atoi(s[6:10])
	hour, _ := strconv.Atoi(s[11:13])
	minute, _ := strconv.Atoi(s[14:16])
	second, _ := strconv.Atoi(s[17:19])
	period := s[20:22]

	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 1 || hour > 12 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	if period == "PM" && hour != 12 {
		hour += 12
	} else if period == "AM" && hour == 12 {
		hour = 0
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local), true
}

// IsValidFormat reports whether s matches the official pattern exactly.
func IsValidFormat(s string) bool {
	return formatPattern.MatchString(s)
}

// AddValidityWindow returns t plus the given number of hours. Pure duration
// arithmetic; calendar and zone edge cases are out of scope by contract.
func AddValidityWindow(t time.Time, hours int) time.Time {
	return t.Add(time.Duration(hours) * time.Hour)
}

// IsStillValid reports whether now is at or before the expiry carried in the
// official-format string validUpto.
func IsStillValid(validUpto string, now time.Time) bool {
	return !now.After(Parse(validUpto))
}

// ResolveValidUpto picks the effective expiry instant: the form-embedded
// display value wins when it parses, otherwise the storage column. The two
// are written together at creation, so the fallback only fires on drift.
func ResolveValidUpto(formValue string, column time.Time) time.Time {
	if t, ok := ParseFlexible(formValue); ok {
		return t
	}
	return column
}
