package util

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate parses a "2006-01-02" calendar day as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseDateDefault parses a date or returns def if s is empty or invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, err := ParseDate(s); err == nil {
		return t
	}
	return def
}

// FormatDate renders t as a "2006-01-02" calendar day.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// not modeled; a holiday run simply finds no bar.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PrevTradingDay returns the last weekday strictly before t.
func PrevTradingDay(t time.Time) time.Time {
	d := Day(t).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// LatestTradingDay returns t's day if it is a weekday, else the last weekday
// before it.
func LatestTradingDay(t time.Time) time.Time {
	d := Day(t)
	if IsTradingDay(d) {
		return d
	}
	return PrevTradingDay(d)
}
