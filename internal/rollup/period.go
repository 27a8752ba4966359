package rollup

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// civil strips the clock from t, keeping its calendar date in t's location.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekKey returns the ISO week key, e.g. 2026-W42.
func WeekKey(date time.Time) string {
	y, w := date.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// WeekStart returns the Monday of date's ISO week.
func WeekStart(date time.Time) time.Time {
	d := civil(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthKey returns e.g. 2026-10.
func MonthKey(date time.Time) string {
	return date.Format("2006-01")
}

// YearKey returns e.g. 2026.
func YearKey(date time.Time) string {
	return date.Format("2006")
}

// weekParent is the month holding the week's Thursday, the day ISO 8601 uses
// to assign a week to a year.
func weekParent(date time.Time) string {
	return MonthKey(WeekStart(date).AddDate(0, 0, 3))
}

// ParseDate parses YYYY-MM-DD as a calendar day in loc and returns its noon,
// the instant daily reports center on.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc), nil
}
