package tasks

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDue reads a due date as RFC 3339 or as a bare YYYY-MM-DD. A bare date
// keeps now's time of day in now's location. Empty input yields the zero time
// so ValidateSubmission can report it.
func ParseDue(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, invalid("dueDate", fmt.Sprintf("Invalid due date %q", raw))
	}
	h, m, s := now.Clock()
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, now.Nanosecond(), now.Location()), nil
}

// ParseDay reads a calendar day as YYYY-MM-DD at midnight in loc; empty input
// is today.
func ParseDay(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, invalid("date", fmt.Sprintf("Invalid date %q", raw))
	}
	return d, nil
}
