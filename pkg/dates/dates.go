// Package dates provides calendar-safe date handling for sailing schedules.
//
// Dates in this system are calendar dates, not instants. Every parsed date is
// pinned to 12:00 local time so that later timezone-bearing conversions cannot
// slide the value across a midnight boundary for users west of UTC.
package dates

import (
	"fmt"
	"math"
	"time"
)

// layouts accepted by ParseCalendarDate, tried in order.
var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseCalendarDate parses a date-only string or an ISO datetime and
// normalizes the result to midday local time.
func ParseCalendarDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return Midday(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date value %q", value)
}

// ParseCalendarDatePtr is the tolerant form of ParseCalendarDate used at the
// API boundary: empty or malformed input yields nil rather than an error, so
// derived fields downstream come out null instead of failing the request.
func ParseCalendarDatePtr(value string) *time.Time {
	t, err := ParseCalendarDate(value)
	if err != nil {
		return nil
	}
	return &t
}

// Midday pins a time to 12:00 local on the same calendar date.
func Midday(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local)
}

// TransitDays returns the rounded number of days between departure and
// arrival. It returns nil when either date is absent or when the interval is
// negative; a voyage never reports a negative transit.
func TransitDays(etd, eta *time.Time) *int {
	if etd == nil || eta == nil {
		return nil
	}

	days := int(math.Round(eta.Sub(*etd).Hours() / 24))
	if days < 0 {
		return nil
	}
	return &days
}

// Week returns the week number used by the weekly sailing reports.
//
// The date is shifted to the Thursday of its week, then the week index is
// ceil(days since Jan 1 of that Thursday's year / 7). This is deliberately the
// Jan-1-epoch rule rather than strict ISO-8601 cross-year weeks; downstream
// reports depend on it.
func Week(t time.Time) int {
	t = Midday(t)

	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	thursday := t.AddDate(0, 0, 4-weekday)

	yearStart := time.Date(thursday.Year(), time.January, 1, 12, 0, 0, 0, time.Local)
	return int(math.Ceil((thursday.Sub(yearStart).Hours()/24 + 1) / 7))
}

// WeekPtr computes the week number for an optional date.
func WeekPtr(t *time.Time) *int {
	if t == nil {
		return nil
	}
	w := Week(*t)
	return &w
}
