package ics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"agenda/internal/calendar"
	appLog "agenda/internal/log"
	"agenda/internal/model"
)

// untitled is used for events without a SUMMARY, since items need text.
const untitled = "(untitled)"

// ToItems converts occurrences into schedule items filed under categoryKey.
// Timed occurrences keep their start minute and length. All-day
// occurrences become one untimed item per covered day.
func ToItems(occs []Occurrence, categoryKey string) []model.ScheduleItem {
	out := make([]model.ScheduleItem, 0, len(occs))
	for _, occ := range occs {
		text := cleanText(occ.Summary)
		notes := strings.TrimSpace(strings.Join(nonEmpty(occ.Location, occ.Description), "\n"))

		if occ.AllDay {
			day := occ.Start
			for {
				key := calendar.DateKey(day)
				out = append(out, model.ScheduleItem{
					Date:       key,
					Category:   categoryKey,
					Text:       text,
					Notes:      notes,
					ExternalID: occ.UID + "/" + key,
				})
				day = day.AddDate(0, 0, 1)
				if !day.Before(occ.End) {
					break
				}
			}
			continue
		}

		minutes := occ.Start.Hour()*60 + occ.Start.Minute()
		it := model.ScheduleItem{
			Date:       calendar.DateKey(occ.Start),
			Category:   categoryKey,
			Text:       text,
			Time:       &minutes,
			Notes:      notes,
			ExternalID: occ.UID + "/" + occ.InstanceKey,
		}
		if d := int(occ.End.Sub(occ.Start).Minutes()); d > 0 {
			it.Duration = d
		}
		out = append(out, it)
	}
	return out
}

func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return untitled
	}
	if utf8.RuneCountInString(s) > model.MaxTextLength {
		s = string([]rune(s)[:model.MaxTextLength])
	}
	return s
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Replacer is the store operation an import writes through.
type Replacer interface {
	ReplaceSource(source string, items []model.ScheduleItem) (added, removed int, err error)
}

// Importer refreshes subscriptions into the store.
type Importer struct {
	Fetcher  *Fetcher
	Store    Replacer
	Location *time.Location

	// Window around now that occurrences are expanded into.
	BackfillDays int
	HorizonDays  int

	Now func() time.Time
}

// ImportStats reports one subscription's refresh.
type ImportStats struct {
	Source    string `json:"source"`
	Items     int    `json:"items"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	FromCache bool   `json:"from_cache"`
}

// Refresh fetches, expands and stores every source. A failing source is
// logged and skipped; its previously imported items stay in place. The
// returned error joins the per-source failures.
func (im *Importer) Refresh(ctx context.Context, sources []Source) ([]ImportStats, error) {
	var (
		stats []ImportStats
		errs  []error
	)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		st, err := im.RefreshOne(ctx, src)
		if err != nil {
			appLog.Error("ics import failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
			continue
		}
		stats = append(stats, st)
	}
	return stats, errors.Join(errs...)
}

// RefreshOne imports a single source.
func (im *Importer) RefreshOne(ctx context.Context, src Source) (ImportStats, error) {
	if src.ID == "" {
		return ImportStats{}, errors.New("ics import: source id is empty")
	}
	res, err := im.Fetcher.FetchOne(ctx, src)
	if err != nil {
		return ImportStats{}, err
	}
	items, err := im.Items(src, res.Body)
	if err != nil {
		return ImportStats{}, err
	}
	added, removed, err := im.Store.ReplaceSource(src.ID, items)
	if err != nil {
		return ImportStats{}, err
	}
	st := ImportStats{Source: src.ID, Items: len(items), Added: added, Removed: removed, FromCache: res.FromCache}
	appLog.Info("ics import done", "id", src.ID, "items", st.Items, "added", added, "removed", removed, "from_cache", res.FromCache)
	return st, nil
}

// Items parses and expands an ICS body into schedule items for src.
func (im *Importer) Items(src Source, body []byte) ([]model.ScheduleItem, error) {
	events, err := ParseICS(src, body)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if im.Now != nil {
		now = im.Now
	}
	loc := im.Location
	if loc == nil {
		loc = time.Local
	}
	today := now().In(loc)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      today.AddDate(0, 0, -im.BackfillDays),
		RangeEnd:        today.AddDate(0, 0, im.HorizonDays),
	})
	if err != nil {
		return nil, err
	}
	return ToItems(res.Occurrences, src.Category), nil
}
