package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agenda/internal/ics"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	body := "locale: en\nlog_level: error\nseed: false\nstorage:\n  driver: file\n  path: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	if err := app.Run(append([]string{"agenda", "--config", cfgPath}, args...)); err != nil {
		t.Fatalf("agenda %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestAddThenDay(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, cfg, "add", "--date", "2025-09-01", "--category", "work", "9:30", "stand-up")
	if !strings.Contains(out, "2025-09-01") || !strings.Contains(out, "09:30 stand-up") {
		t.Fatalf("add output: %q", out)
	}
	run(t, cfg, "add", "--date", "2025-09-01", "--category", "life", "groceries")

	day := run(t, cfg, "day", "--date", "2025-09-01")
	if !strings.Contains(day, "stand-up") || !strings.Contains(day, "groceries") {
		t.Fatalf("day output:\n%s", day)
	}
	if strings.Index(day, "stand-up") > strings.Index(day, "groceries") {
		t.Fatalf("timed item should come first:\n%s", day)
	}

	month := run(t, cfg, "month", "--month", "2025-09")
	if !strings.Contains(month, "September 2025") {
		t.Fatalf("month output:\n%s", month)
	}
}

func TestDayOffset(t *testing.T) {
	cfg := writeConfig(t)
	run(t, cfg, "add", "--date", "2025-08-31", "month end review")

	day := run(t, cfg, "day", "--date", "2025-09-01", "--offset=-1")
	if !strings.Contains(day, "Sunday, August 31, 2025") || !strings.Contains(day, "month end review") {
		t.Fatalf("day --offset=-1:\n%s", day)
	}
	next := run(t, cfg, "day", "--date", "2025-08-31", "--offset", "1")
	if strings.Contains(next, "month end review") || !strings.Contains(next, "Monday, September 1, 2025") {
		t.Fatalf("day --offset 1:\n%s", next)
	}
}

func TestAddRejectsBadEnd(t *testing.T) {
	cfg := writeConfig(t)
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"agenda", "--config", cfg, "add", "--date", "2025-09-01", "--time", "10:00", "--end", "09:00", "meeting"})
	if err == nil {
		t.Fatal("expected an error for end before start")
	}
}

func TestTodoScheduleFlow(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, cfg, "todo", "add", "--category", "study", "read", "paper")
	id := strings.Fields(out)[0]

	run(t, cfg, "todo", "schedule", "--date", "2025-09-03", "--time", "14:00", id)

	stats := run(t, cfg, "todo", "stats")
	if !strings.Contains(stats, "total 1") || !strings.Contains(stats, "scheduled 1") {
		t.Fatalf("stats: %q", stats)
	}
	day := run(t, cfg, "day", "--date", "2025-09-03")
	if !strings.Contains(day, "read paper") || !strings.Contains(day, "14:00") {
		t.Fatalf("scheduled to-do missing from day:\n%s", day)
	}
}

func TestExportToFile(t *testing.T) {
	cfg := writeConfig(t)
	run(t, cfg, "add", "--date", "2025-09-01", "dentist")
	out := filepath.Join(t.TempDir(), "agenda.ics")
	run(t, cfg, "export", "--out", out)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "BEGIN:VCALENDAR") || !strings.Contains(string(data), "dentist") {
		t.Fatalf("export body:\n%s", data)
	}
}

func TestStartRefreshScheduleRejectsBadExpr(t *testing.T) {
	if _, err := startRefreshSchedule(context.Background(), "not a cron", &ics.Importer{}, nil); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}
