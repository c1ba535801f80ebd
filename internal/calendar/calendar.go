// Package calendar holds the date arithmetic behind the month grid:
// Sunday-first week matrices, canonical date keys and display labels.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// DateKeyLayout is the canonical YYYY-MM-DD layout.
const DateKeyLayout = "2006-01-02"

// ErrInvalidDateKey is returned for keys that are not a real calendar day.
var ErrInvalidDateKey = errors.New("calendar: invalid date key")

// Week is one row of the month grid, Sunday first. A zero entry is an
// empty padding cell.
type Week [7]int

// BuildMonthMatrix returns the Sunday-first weeks of the given month.
// Leading cells before day 1 and trailing cells after the last day are
// zero. Months outside 1-12 roll over like time.Date.
func BuildMonthMatrix(year int, month time.Month) []Week {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := DaysIn(first.Year(), first.Month())
	lead := int(first.Weekday())

	weeks := make([]Week, 0, 6)
	var cur Week
	col := lead
	for day := 1; day <= days; day++ {
		cur[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, cur)
			cur = Week{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, cur)
	}
	return weeks
}

// DaysIn returns the number of days in a month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateKey formats t as YYYY-MM-DD using its own wall clock.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// DateKeyOf builds a key from components; overflowing days or months are
// normalised (e.g. January 32 becomes February 1).
func DateKeyOf(year int, month time.Month, day int) string {
	return DateKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDateKey parses a YYYY-MM-DD key, rejecting impossible days.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	return t, nil
}

// ValidDateKey reports whether key is a canonical, real calendar day.
func ValidDateKey(key string) bool {
	_, err := ParseDateKey(key)
	return err == nil
}

// AddDays shifts a key by n days.
func AddDays(key string, n int) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return DateKey(t.AddDate(0, 0, n)), nil
}

// Locales supported by DisplayLabel.
const (
	LocaleEnglish     = "en"
	LocaleTraditional = "zh-TW"
)

var zhWeekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// DisplayLabel returns a weekday-qualified label for t.
//
//	en:    Monday, September 1, 2025
//	zh-TW: 2025年9月1日 星期一
//
// Unknown locales use English.
func DisplayLabel(t time.Time, locale string) string {
	switch locale {
	case LocaleTraditional, "zh", "zh-Hant":
		return fmt.Sprintf("%d年%d月%d日 %s", t.Year(), int(t.Month()), t.Day(), zhWeekdays[t.Weekday()])
	default:
		return t.Format("Monday, January 2, 2006")
	}
}

// WeekdayNames returns short Sunday-first column headings.
func WeekdayNames(locale string) []string {
	switch locale {
	case LocaleTraditional, "zh", "zh-Hant":
		return []string{"日", "一", "二", "三", "四", "五", "六"}
	default:
		return []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	}
}

// MonthLabel returns the month heading for the grid.
func MonthLabel(year int, month time.Month, locale string) string {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	switch locale {
	case LocaleTraditional, "zh", "zh-Hant":
		return fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))
	default:
		return t.Format("January 2006")
	}
}

// ParseMonth parses "YYYY-MM" into year and month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("calendar: invalid month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}
