// Package period holds the calendar helpers used to bucket expenses by
// month and week.
//
// Weeks follow ISO-8601: weeks start on Monday and week 1 is the week
// containing the first Thursday of the year, so the last days of December
// can belong to week 1 of the following year.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// DefaultLocale renders month names in Spanish ("enero 2025").
const DefaultLocale = monday.LocaleEsES

var ErrInvalidMonthKey = errors.New("invalid month key")

// Month identifies a calendar month. It orders by (Year, Month), never by label.
type Month struct {
	Year  int
	Month time.Month
}

// Week identifies an ISO week.
type Week struct {
	Year int
	Week int
}

// Of returns the month containing t.
func Of(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses "YYYY-MM".
func ParseMonthKey(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return Of(t), nil
}

// Key returns the sortable "YYYY-MM" form.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label renders "{month name} {year}" in the given locale.
func (m Month) Label(locale monday.Locale) string {
	if locale == "" {
		locale = DefaultLocale
	}
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return monday.Format(first, "January 2006", locale)
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Contains reports whether t falls in m.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Days returns the number of days in m.
func (m Month) Days() int {
	return DaysIn(m.Year, m.Month)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Week: w}
}

// WeekOfYear returns the 1-based ISO week number of t.
func WeekOfYear(t time.Time) int {
	return WeekOf(t).Week
}

// Key returns "YYYY-Www", zero-padded so lexical order is chronological.
func (w Week) Key() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// Label returns the group heading used under a month, e.g. "Semana 3".
func (w Week) Label() string {
	return fmt.Sprintf("Semana %d", w.Week)
}

// MonthKey renders the localized month label of t.
func MonthKey(t time.Time, locale monday.Locale) string {
	return Of(t).Label(locale)
}

// DisplayDate reformats "YYYY-MM-DD" as "DD/MM/YY". Empty input yields "".
func DisplayDate(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return ""
	}
	return t.Format("02/01/06")
}

// ParseLocale accepts a monday locale name such as "es_ES" or "en_US".
func ParseLocale(s string) (monday.Locale, error) {
	if s == "" {
		return DefaultLocale, nil
	}
	for _, l := range monday.ListLocales() {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported locale %q", s)
}
