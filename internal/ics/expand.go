package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "agenda/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	UID         string
	InstanceKey string // stable per-instance key, the start in RFC3339

	Summary     string
	Description string
	Location    string

	AllDay bool
	Start  time.Time
	End    time.Time
}

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted into.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences.
type ExpandResult struct {
	Occurrences []Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences expands parsed events into concrete occurrences inside
// the configured range. It handles single events, RRULE recurrence, EXDATE
// removal, RECURRENCE-ID overrides and all-day semantics.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order so
	// the output is deterministic.
	var order []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		ov := overridesByUID[uid]
		truncated := false
		for _, ev := range baseByUID[uid] {
			var occ []Occurrence
			hitCap := false
			if ev.RawRRule == "" {
				occ = expandSingleEvent(ev, ov, cfg)
			} else {
				occ, hitCap = expandRecurringEvent(ev, ov, cfg)
			}
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	return result, nil
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the range but are still running are kept.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(occTimes))
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			occEnd = occStart.AddDate(0, 0, daysBetween(ev.Start, ev.End))
		}
		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, baseEv = o.Start, o.End, o
		}
		out = append(out, makeOccurrence(baseEv, occStart, occEnd, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence normalizes an instance into displayLoc. All-day dates are
// floating, so they keep their calendar date instead of being shifted.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) Occurrence {
	if ev.AllDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, displayLoc)
	} else {
		start = start.In(displayLoc)
		end = end.In(displayLoc)
	}
	return Occurrence{
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	n := int(bd.Sub(ad).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
