// Package timezone provides timezone handling and date-window helpers.
//
// Every user-facing date in the system is a local civil date in the
// configured zone; windows returned here are half-open [start, end).
package timezone

import (
	"fmt"
	"time"
)

// Parse parses an IANA timezone identifier (e.g., "Asia/Seoul").
// If the timezone is invalid, returns UTC and an error.
func Parse(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// IsValid checks if a timezone identifier is valid.
func IsValid(tz string) bool {
	_, err := Parse(tz)
	return err == nil
}

// ParseDate parses a "YYYY-MM-DD" string as midnight in loc.
// Out-of-range days are clamped to the last day of the month, so
// "2025-02-30" resolves to 2025-02-28. The reasoning backend produces
// month-end dates and occasionally gets February wrong.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	var year, month, day int
	if _, err := fmt.Sscanf(s, "%d-%d-%d", &year, &month, &day); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), nil
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// DayWindow returns [00:00, next day 00:00) of t's civil date in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns the Monday-to-Monday window containing t.
func WeekWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	// time.Weekday is Sunday-based; shift so Monday == 0.
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// MonthWindow returns the window of the calendar month containing t.
func MonthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
