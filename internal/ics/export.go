package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"agenda/internal/calendar"
	"agenda/internal/model"
)

// uidNamespace scopes the name-based UIDs of exported items, so the same
// item id always exports under the same UID.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("agenda:schedule-item"))

// ExportOptions controls Export.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Location anchors dates and times of day. Nil means time.Local.
	Location *time.Location
	// IncludeImported also exports items that came from subscriptions.
	IncludeImported bool
	// Resolve maps a category key to its label, written as CATEGORIES.
	Resolve func(key string) model.Category
	// Now stamps DTSTAMP. Nil means time.Now.
	Now func() time.Time
}

// ItemUID returns the stable UID an item is exported under.
func ItemUID(id string) string {
	return uuid.NewSHA1(uidNamespace, []byte(id)).String()
}

// Export serializes items as an iCalendar document. Timed items become
// DTSTART/DTEND events; untimed items become all-day events.
func Export(items []model.ScheduleItem, opts ExportOptions) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stamp := now()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//agenda//agenda export//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, it := range items {
		if it.Imported() && !opts.IncludeImported {
			continue
		}
		day, err := calendar.ParseDateKey(it.Date)
		if err != nil {
			return "", err
		}
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

		ev := cal.AddEvent(ItemUID(it.ID))
		ev.SetDtStampTime(stamp)
		if !it.CreatedAt.IsZero() {
			ev.SetCreatedTime(it.CreatedAt)
		}
		if !it.UpdatedAt.IsZero() {
			ev.SetModifiedAt(it.UpdatedAt)
		}
		ev.SetSummary(it.Text)
		if it.Notes != "" {
			ev.SetDescription(it.Notes)
		}
		if opts.Resolve != nil && it.Category != "" {
			if cat := opts.Resolve(it.Category); cat.Label != "" {
				ev.AddProperty(ical.ComponentPropertyCategories, cat.Label)
			}
		}

		if it.Time == nil {
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			continue
		}
		start := day.Add(time.Duration(*it.Time) * time.Minute)
		ev.SetStartAt(start)
		if it.Duration > 0 {
			ev.SetEndAt(start.Add(time.Duration(it.Duration) * time.Minute))
		}
	}

	return cal.Serialize(), nil
}
