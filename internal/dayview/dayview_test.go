package dayview

import (
	"testing"
	"time"

	"agenda/internal/category"
	"agenda/internal/kv"
	"agenda/internal/model"
	"agenda/internal/store"
	"agenda/internal/timetext"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	n := int64(1_756_684_800_000)
	s := store.New(kv.NewMemory(), store.Options{Now: func() time.Time {
		n++
		return time.UnixMilli(n)
	}})
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func add(t *testing.T, s *store.Store, in model.ItemInput) string {
	t.Helper()
	it, err := in.ToItem()
	if err != nil {
		t.Fatalf("ToItem(%+v): %v", in, err)
	}
	id, err := s.Create(it)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func labels(rows []model.DisplayItem) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Label
	}
	return out
}

func TestForDateScenario(t *testing.T) {
	s := newStore(t)
	add(t, s, model.ItemInput{Date: "2025-09-01", Category: "work", Text: "09:00 stand-up"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Category: "study", Text: "no-time item"})

	got := labels(ForDate(s, "2025-09-01", ""))
	want := []string{"09:00 stand-up", "no-time item"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ForDate=%q, want %q", got, want)
	}
}

func TestForDateOrdering(t *testing.T) {
	s := newStore(t)
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "untimed first"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "18:00 dinner"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "7:30 run"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "untimed second"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "18:00 call"})
	add(t, s, model.ItemInput{Date: "2025-09-02", Text: "06:00 other day"})

	rows := ForDate(s, "2025-09-01", "")
	got := labels(rows)
	want := []string{"07:30 run", "18:00 dinner", "18:00 call", "untimed first", "untimed second"}
	if len(got) != len(want) {
		t.Fatalf("ForDate=%q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ForDate=%q, want %q", got, want)
		}
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Minutes < rows[i-1].Minutes {
			t.Fatalf("not sorted at %d: %+v", i, rows)
		}
	}
	if rows[len(rows)-1].Minutes != timetext.EndOfDay {
		t.Fatalf("untimed key=%d", rows[len(rows)-1].Minutes)
	}
}

func TestForDateMidnightStartBeforeUntimed(t *testing.T) {
	s := newStore(t)
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "untimed"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Time: "24:00", Text: "late"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Text: "also untimed"})

	got := labels(ForDate(s, "2025-09-01", ""))
	want := []string{"24:00 late", "untimed", "also untimed"}
	if len(got) != len(want) {
		t.Fatalf("ForDate=%q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ForDate=%q, want %q", got, want)
		}
	}
}

func TestForDateCategoryFilterAndResolution(t *testing.T) {
	s := newStore(t)
	add(t, s, model.ItemInput{Date: "2025-09-01", Category: "work", Text: "10:00 review", End: "11:30"})
	add(t, s, model.ItemInput{Date: "2025-09-01", Category: "ghost", Text: "orphan"})

	rows := ForDate(s, "2025-09-01", "work")
	if len(rows) != 1 {
		t.Fatalf("filtered rows=%+v", rows)
	}
	r := rows[0]
	if r.CategoryLabel != "工作" || r.CategoryColor != "#4f46e5" {
		t.Fatalf("category=%q %q", r.CategoryLabel, r.CategoryColor)
	}
	if r.TimeSpan != "10:00 - 11:30" {
		t.Fatalf("TimeSpan=%q", r.TimeSpan)
	}

	rows = ForDate(s, "2025-09-01", "ghost")
	if rows[0].CategoryColor != category.FallbackColor || rows[0].CategoryLabel != "" {
		t.Fatalf("unresolved category=%+v", rows[0])
	}
}

func TestMonthSummary(t *testing.T) {
	s := newStore(t)
	c1, _ := s.AddCategory("A", "#111111")
	c2, _ := s.AddCategory("B", "#222222")
	for _, cat := range []string{"work", "study", "work", "project", c1.Key, c2.Key} {
		add(t, s, model.ItemInput{Date: "2025-09-10", Category: cat, Text: "x"})
	}
	add(t, s, model.ItemInput{Date: "2025-09-11", Category: "life", Text: "y"})

	sum := MonthSummary(s, 2025, time.September, "")
	if len(sum) != 30 {
		t.Fatalf("len=%d, want 30", len(sum))
	}
	d := sum[10]
	if d.Count != 6 || len(d.Colors) != MaxCellColors || d.More != 2 {
		t.Fatalf("day 10=%+v", d)
	}
	if d.Colors[0] != "#4f46e5" || d.Colors[1] != "#16a34a" || d.Colors[2] != "#ea580c" {
		t.Fatalf("colors=%v", d.Colors)
	}
	if sum[11].Count != 1 || sum[1].Count != 0 {
		t.Fatalf("day 11=%+v day 1=%+v", sum[11], sum[1])
	}

	filtered := MonthSummary(s, 2025, time.September, "work")
	if filtered[10].Count != 2 || filtered[11].Count != 0 {
		t.Fatalf("filtered=%+v %+v", filtered[10], filtered[11])
	}
}

func TestMonthCells(t *testing.T) {
	s := newStore(t)
	add(t, s, model.ItemInput{Date: "2025-09-01", Category: "work", Text: "09:00 stand-up"})

	grid := MonthCells(s, 2025, time.September, "", "2025-09-02", "2025-09-01")
	if len(grid) != 5 {
		t.Fatalf("weeks=%d, want 5", len(grid))
	}
	if !grid[0][0].Empty() {
		t.Fatalf("Sunday before the 1st should be empty: %+v", grid[0][0])
	}
	first := grid[0][1]
	if first.Day != 1 || !first.IsSelected || first.IsToday || first.ItemCount != 1 {
		t.Fatalf("first=%+v", first)
	}
	if !grid[0][2].IsToday {
		t.Fatalf("day 2 should be today: %+v", grid[0][2])
	}
	last := grid[4]
	for i := 3; i < 7; i++ {
		if !last[i].Empty() {
			t.Fatalf("trailing cell %d not empty: %+v", i, last[i])
		}
	}
}
