// Package timetext parses and formats the "HH:MM" wall-clock token that
// users type in front of a schedule entry ("09:00 stand-up").
package timetext

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinutesPerDay is the upper clamp for minute values.
	MinutesPerDay = 24 * 60
	// EndOfDay is the sort key for entries without a time.
	EndOfDay = MinutesPerDay
)

// ErrInvalidTime is returned by ParseClock for malformed input.
var ErrInvalidTime = errors.New("timetext: invalid HH:MM time")

// leadingTime matches a one-or-two digit hour, two digit minute and the
// whitespace that separates it from the rest of the text, which may span
// several lines.
var leadingTime = regexp.MustCompile(`(?s)^(\d{1,2}):(\d{2})\s+(.*)$`)

// Extracted is the result of ExtractTime.
type Extracted struct {
	// Time is a zero-padded "HH:MM" or "" when the text carries no token.
	Time string
	// Content is the trimmed text after the token.
	Content string
}

// HasTime reports whether a time token was found.
func (e Extracted) HasTime() bool {
	return e.Time != ""
}

// Minutes returns the sort key for the extracted time.
func (e Extracted) Minutes() int {
	return SortKey(e.Time)
}

// ExtractTime splits a leading "H:MM " / "HH:MM " token off text.
// Hours must be 0-23 and minutes 0-59; anything else is treated as plain text.
func ExtractTime(text string) Extracted {
	trimmed := strings.TrimSpace(text)
	m := leadingTime.FindStringSubmatch(trimmed)
	if m == nil {
		return Extracted{Content: trimmed}
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return Extracted{Content: trimmed}
	}
	return Extracted{
		Time:    fmt.Sprintf("%02d:%02d", h, mm),
		Content: strings.TrimSpace(m[3]),
	}
}

// Normalize returns text in canonical "HH:MM content" form.
func Normalize(text string) string {
	e := ExtractTime(text)
	return Join(e.Time, e.Content)
}

// Join builds the display form of a time and content pair.
func Join(hhmm, content string) string {
	if hhmm == "" {
		return content
	}
	if content == "" {
		return hhmm
	}
	return hhmm + " " + content
}

// ToMinutes converts "HH:MM" to minutes since midnight, clamped to
// [0, MinutesPerDay]. Non-numeric or missing components count as zero.
func ToMinutes(hhmm string) int {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	h := atoiOrZero(parts[0])
	m := 0
	if len(parts) > 1 {
		m = atoiOrZero(parts[1])
	}
	return clamp(h*60 + m)
}

// ToTimeString formats minutes since midnight as zero-padded "HH:MM".
// Values outside [0, MinutesPerDay] are clamped first.
func ToTimeString(minutes int) string {
	minutes = clamp(minutes)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SortKey orders untimed entries after every timed one.
func SortKey(hhmm string) int {
	if strings.TrimSpace(hhmm) == "" {
		return EndOfDay
	}
	return ToMinutes(hhmm)
}

// ParseClock is the strict counterpart of ToMinutes used to validate
// user input. It accepts "H:MM" and "HH:MM" with hour 0-23, and the
// special value "24:00".
func ParseClock(hhmm string) (int, error) {
	s := strings.TrimSpace(hhmm)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	total := hour*60 + minute
	if hour > 24 || total > MinutesPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return total, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func clamp(m int) int {
	if m < 0 {
		return 0
	}
	if m > MinutesPerDay {
		return MinutesPerDay
	}
	return m
}
