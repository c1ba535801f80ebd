package model

import "time"

// ScheduleItem is a dated, categorized, optionally timed entry shown on the
// day and month views.
//
// Time is stored structurally as minutes since midnight; the free-text
// "HH:MM " prefix users type is stripped at the input boundary.
type ScheduleItem struct {
	ID       string `json:"id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Category string `json:"category"`
	Text     string `json:"text"`

	// Time is nil for untimed items.
	Time *int `json:"time,omitempty"`
	// Duration in minutes; zero when unknown.
	Duration int `json:"duration,omitempty"`

	Notes string `json:"notes,omitempty"`

	// Source and ExternalID are set on items imported from an ICS
	// subscription; local items leave them empty.
	Source     string `json:"source,omitempty"`
	ExternalID string `json:"external_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Timed reports whether the item carries a time of day.
func (it ScheduleItem) Timed() bool {
	return it.Time != nil
}

// Imported reports whether the item came from a subscription.
func (it ScheduleItem) Imported() bool {
	return it.Source != ""
}

// Clone returns a deep copy, so callers never alias store memory.
func (it ScheduleItem) Clone() ScheduleItem {
	if it.Time != nil {
		t := *it.Time
		it.Time = &t
	}
	return it
}

// ItemPatch carries the fields an update may change. Nil fields are left
// untouched. ClearTime removes the time of day. End is an end time in
// minutes; it is checked against the resulting start and stored as a
// Duration.
type ItemPatch struct {
	Date      *string `json:"date,omitempty"`
	Category  *string `json:"category,omitempty"`
	Text      *string `json:"text,omitempty"`
	Time      *int    `json:"-"`
	ClearTime bool    `json:"-"`
	End       *int    `json:"-"`
	Duration  *int    `json:"duration,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Date == nil && p.Category == nil && p.Text == nil &&
		p.Time == nil && !p.ClearTime && p.End == nil && p.Duration == nil && p.Notes == nil
}

// TodoStatus is the lifecycle of a to-do.
type TodoStatus string

const (
	TodoUnscheduled TodoStatus = "unscheduled"
	TodoScheduled   TodoStatus = "scheduled"
)

// TodoItem is an entry not yet pinned to a day. Once scheduled it points at
// the schedule item that was created for it.
type TodoItem struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Category string     `json:"category"`
	Status   TodoStatus `json:"status"`

	ScheduledDate   string `json:"scheduled_date,omitempty"`
	ScheduledItemID string `json:"scheduled_item_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TodoPatch carries editable to-do fields.
type TodoPatch struct {
	Text     *string `json:"text,omitempty"`
	Category *string `json:"category,omitempty"`
}

// TodoStats is the footer of the to-do panel.
type TodoStats struct {
	Total       int `json:"total"`
	Scheduled   int `json:"scheduled"`
	Unscheduled int `json:"unscheduled"`
}

// Category is a named, colored tag.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// DisplayItem is one row of the derived day view.
type DisplayItem struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"` // HH:MM, empty when untimed
	Minutes  int    `json:"minutes"`        // sort key, 1440 when untimed
	Text     string `json:"text"`
	Label    string `json:"label"` // "HH:MM text" or text
	TimeSpan string `json:"time_span,omitempty"`

	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	CategoryColor string `json:"category_color"`

	Source string `json:"source,omitempty"`
}

// CalendarCell is the derived state of one month-grid cell. Day is zero for
// padding cells.
type CalendarCell struct {
	Day            int      `json:"day"`
	Date           string   `json:"date,omitempty"`
	IsToday        bool     `json:"is_today"`
	IsSelected     bool     `json:"is_selected"`
	ItemCount      int      `json:"item_count"`
	CategoryColors []string `json:"category_colors,omitempty"`
	MoreColors     int      `json:"more_colors,omitempty"`
}

// Empty reports whether the cell is padding.
func (c CalendarCell) Empty() bool {
	return c.Day == 0
}
