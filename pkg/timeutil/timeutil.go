// Package timeutil provides period-window helpers for leaderboard scoping.
// Daily, weekly, and monthly leaderboards each aggregate over a UTC window;
// courses span timezones, so all windows are anchored to UTC.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(u.AddDate(0, 0, -(weekday - 1)))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59) in UTC.
func EndOfWeek(t time.Time) time.Time {
	return EndOfDay(StartOfWeek(t).AddDate(0, 0, 6))
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the end of the month in UTC.
func EndOfMonth(t time.Time) time.Time {
	return EndOfDay(StartOfMonth(t).AddDate(0, 1, -1))
}

// PeriodWindow returns the [start, end] window for a named period around t.
// Unknown or all-time periods return the zero window (no bounds).
func PeriodWindow(period string, t time.Time) (time.Time, time.Time) {
	switch period {
	case "daily":
		return StartOfDay(t), EndOfDay(t)
	case "weekly":
		return StartOfWeek(t), EndOfWeek(t)
	case "monthly":
		return StartOfMonth(t), EndOfMonth(t)
	default:
		return time.Time{}, time.Time{}
	}
}

// SameDay checks whether two times fall on the same UTC day.
func SameDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month() && au.Day() == bu.Day()
}
