package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "agenda/internal/log"
)

// ParsedEvent is a VEVENT reduced to what the agenda imports. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, set on overrides
	IsOverride bool
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
// Timed DTSTART/DTEND go through the library's TZID handling. All-day
// values are parsed as floating dates. RRULE/EXDATE/RECURRENCE-ID are
// recorded here and expanded by ExpandOccurrences.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseICSTime(dtStart.Value)
		if err != nil {
			return out, err
		}
		out.Start = start
		out.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value); err == nil && end.After(start) {
				out.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		out.End = start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
			out.End = end
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each possibly a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// isDateValue reports whether a DTSTART carries VALUE=DATE or a bare
// YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic ICS date/date-time string. Used where the
// property parameters are not consulted (all-day, EXDATE, RECURRENCE-ID).
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
