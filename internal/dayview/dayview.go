// Package dayview derives what the day list and the month grid show from
// the store: time-sorted display rows and per-day summaries.
package dayview

import (
	"sort"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/model"
	"agenda/internal/timetext"
)

// MaxCellColors is how many category dots a month cell shows before
// collapsing the rest into "+N".
const MaxCellColors = 3

// Source is the part of the store the views read from.
type Source interface {
	QueryByDate(dateKey, categoryKey string) []model.ScheduleItem
	ResolveCategory(key string) model.Category
}

// ForDate returns the items on dateKey ordered by time of day. Untimed
// items sort after every timed one; equal keys keep insertion order.
func ForDate(src Source, dateKey, categoryKey string) []model.DisplayItem {
	items := src.QueryByDate(dateKey, categoryKey)
	out := make([]model.DisplayItem, 0, len(items))
	for _, it := range items {
		out = append(out, toDisplay(src, it))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes < out[j].Minutes
		}
		// A 24:00 start shares the untimed key; timed still goes first.
		return out[i].Time != "" && out[j].Time == ""
	})
	return out
}

func toDisplay(src Source, it model.ScheduleItem) model.DisplayItem {
	cat := src.ResolveCategory(it.Category)
	d := model.DisplayItem{
		ID:            it.ID,
		Date:          it.Date,
		Minutes:       timetext.EndOfDay,
		Text:          it.Text,
		Label:         it.Text,
		Category:      it.Category,
		CategoryLabel: cat.Label,
		CategoryColor: cat.Color,
		Source:        it.Source,
	}
	if it.Time != nil {
		d.Time = timetext.ToTimeString(*it.Time)
		d.Minutes = timetext.ToMinutes(d.Time)
		d.Label = timetext.Join(d.Time, it.Text)
		if it.Duration > 0 {
			d.TimeSpan = d.Time + " - " + timetext.ToTimeString(d.Minutes+it.Duration)
		}
	}
	return d
}

// DaySummary is what one month cell shows.
type DaySummary struct {
	Count int `json:"count"`
	// Colors holds up to MaxCellColors distinct category colors in
	// first-seen (time) order.
	Colors []string `json:"colors"`
	// More is the number of further distinct colors not shown.
	More int `json:"more"`
}

// Summarize builds the summary for one day.
func Summarize(src Source, dateKey, categoryKey string) DaySummary {
	rows := ForDate(src, dateKey, categoryKey)
	sum := DaySummary{Count: len(rows), Colors: []string{}}
	seen := make(map[string]bool)
	for _, r := range rows {
		if seen[r.CategoryColor] {
			continue
		}
		seen[r.CategoryColor] = true
		if len(sum.Colors) < MaxCellColors {
			sum.Colors = append(sum.Colors, r.CategoryColor)
		} else {
			sum.More++
		}
	}
	return sum
}

// MonthSummary returns a summary for each day of the month, keyed by day
// number. Days without items are present with a zero count.
func MonthSummary(src Source, year int, month time.Month, categoryKey string) map[int]DaySummary {
	days := calendar.DaysIn(year, month)
	out := make(map[int]DaySummary, days)
	for day := 1; day <= days; day++ {
		out[day] = Summarize(src, calendar.DateKeyOf(year, month, day), categoryKey)
	}
	return out
}

// MonthCells lays the month summary out on the Sunday-first grid. today
// and selected are date keys; either may be empty.
func MonthCells(src Source, year int, month time.Month, categoryKey, today, selected string) [][7]model.CalendarCell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	year, month = first.Year(), first.Month()

	summary := MonthSummary(src, year, month, categoryKey)
	weeks := calendar.BuildMonthMatrix(year, month)
	grid := make([][7]model.CalendarCell, len(weeks))
	for w, week := range weeks {
		for d, day := range week {
			if day == 0 {
				continue
			}
			key := calendar.DateKeyOf(year, month, day)
			sum := summary[day]
			grid[w][d] = model.CalendarCell{
				Day:            day,
				Date:           key,
				IsToday:        key == today,
				IsSelected:     key == selected,
				ItemCount:      sum.Count,
				CategoryColors: sum.Colors,
				MoreColors:     sum.More,
			}
		}
	}
	return grid
}
