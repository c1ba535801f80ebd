package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"agenda/internal/calendar"
	"agenda/internal/timetext"
)

// Validation errors surfaced to the user. No state changes when one of
// these is returned.
var (
	ErrEmptyTitle       = errors.New("title is required")
	ErrInvalidDate      = errors.New("date must be a YYYY-MM-DD calendar day")
	ErrInvalidTime      = errors.New("time must be HH:MM")
	ErrEndNotAfterStart = errors.New("end time must be after start time")
	ErrEndWithoutStart  = errors.New("end time requires a start time")
	ErrInvalidPayload   = errors.New("invalid drop payload")
)

// MaxTextLength bounds free-form text accepted from the outside.
const MaxTextLength = 500

// ItemInput is what the presentation layer submits on quick-add or modal
// submit. Time and End are optional "HH:MM" strings; when Time is empty the
// text is checked for a leading time token.
type ItemInput struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Time     string `json:"time,omitempty"`
	End      string `json:"end,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ToItem validates the input and converts it into the structured record.
// ID and timestamps are left for the store to assign.
func (in ItemInput) ToItem() (ScheduleItem, error) {
	if !calendar.ValidDateKey(strings.TrimSpace(in.Date)) {
		return ScheduleItem{}, fmt.Errorf("%w: %q", ErrInvalidDate, in.Date)
	}

	text := strings.TrimSpace(in.Text)
	clock := strings.TrimSpace(in.Time)
	if clock == "" {
		ex := timetext.ExtractTime(text)
		clock, text = ex.Time, ex.Content
	} else if ex := timetext.ExtractTime(text); ex.HasTime() {
		// An explicit field wins; drop a duplicated prefix from the text.
		text = ex.Content
	}
	if text == "" {
		return ScheduleItem{}, ErrEmptyTitle
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ScheduleItem{}, fmt.Errorf("%w: text longer than %d characters", ErrInvalidPayload, MaxTextLength)
	}

	item := ScheduleItem{
		Date:     strings.TrimSpace(in.Date),
		Category: strings.TrimSpace(in.Category),
		Text:     text,
		Notes:    strings.TrimSpace(in.Notes),
	}

	end := strings.TrimSpace(in.End)
	if clock == "" {
		if end != "" {
			return ScheduleItem{}, ErrEndWithoutStart
		}
		return item, nil
	}

	start, err := timetext.ParseClock(clock)
	if err != nil {
		return ScheduleItem{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	item.Time = &start

	if end != "" {
		stop, err := timetext.ParseClock(end)
		if err != nil {
			return ScheduleItem{}, fmt.Errorf("%w: %q", ErrInvalidTime, end)
		}
		if stop <= start {
			return ScheduleItem{}, ErrEndNotAfterStart
		}
		item.Duration = stop - start
	}
	return item, nil
}

// NormalizeItem moves a leading time token out of the text of an untimed
// local item into Time. Items that already carry a Time keep their text as
// entered, and imported items are left alone. It is applied on every write
// and again on load, where it only changes records from older snapshots
// that kept the time as a text prefix.
func NormalizeItem(it ScheduleItem) ScheduleItem {
	if it.Time != nil || it.Source != "" {
		return it
	}
	ex := timetext.ExtractTime(it.Text)
	if ex.HasTime() {
		m := ex.Minutes()
		it.Time = &m
	}
	it.Text = ex.Content
	return it
}

// Drop sources.
const (
	SourceTodoList = "todoList"
	SourceCalendar = "calendar"
)

// DropPayload is the drag-and-drop handoff from one collection to another.
// Text and Category mirror what the UI dragged; the stored record remains
// authoritative.
type DropPayload struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Time     string `json:"time,omitempty"`
	Source   string `json:"source"`
}

// Validate checks the payload shape.
func (p DropPayload) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	switch p.Source {
	case SourceTodoList, SourceCalendar:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidPayload, p.Source)
	}
	if utf8.RuneCountInString(p.Text) > MaxTextLength {
		return fmt.Errorf("%w: text longer than %d characters", ErrInvalidPayload, MaxTextLength)
	}
	if p.Time != "" {
		if _, err := timetext.ParseClock(p.Time); err != nil {
			return fmt.Errorf("%w: bad time %q", ErrInvalidPayload, p.Time)
		}
	}
	return nil
}

// Minutes returns the payload time as minutes, or nil when absent.
func (p DropPayload) Minutes() *int {
	if p.Time == "" {
		return nil
	}
	m, err := timetext.ParseClock(p.Time)
	if err != nil {
		return nil
	}
	return &m
}
