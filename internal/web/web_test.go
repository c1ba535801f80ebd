package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda/internal/config"
	"agenda/internal/kv"
	"agenda/internal/model"
	"agenda/internal/store"
)

var fixedNow = time.Date(2025, 9, 2, 10, 0, 0, 0, time.Local)

func newTestServer(t *testing.T, cfg *config.Config, opts Options) (http.Handler, *store.Store) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Locale = "en"
	}
	st := store.New(kv.NewMemory(), store.Options{})
	if err := st.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewServer(cfg, st, opts).Handler(), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "pw"}
	h, _ := newTestServer(t, cfg, Options{})

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("/health=%d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/items", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.SetBasicAuth("me", "pw")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated=%d", rec.Code)
	}
}

func TestItemLifecycle(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})

	rec := do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-01", Category: "work", Text: "09:00 stand-up"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create=%d %s", rec.Code, rec.Body.String())
	}
	created := decode[model.ScheduleItem](t, rec)
	if created.Text != "stand-up" || created.Time == nil || *created.Time != 540 {
		t.Fatalf("created=%+v", created)
	}
	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-01", Category: "study", Text: "no-time item"})

	day := decode[dayResponse](t, do(t, h, http.MethodGet, "/api/items?date=2025-09-01", nil))
	if day.Label != "Monday, September 1, 2025" || len(day.Items) != 2 {
		t.Fatalf("day=%+v", day)
	}
	if day.Items[0].Label != "09:00 stand-up" || day.Items[1].Label != "no-time item" {
		t.Fatalf("order=%q, %q", day.Items[0].Label, day.Items[1].Label)
	}
	if day.Items[0].CategoryLabel != "工作" {
		t.Fatalf("category label=%q", day.Items[0].CategoryLabel)
	}

	rec = do(t, h, http.MethodPatch, "/api/items/"+created.ID, `{"time":"10:00","end":"11:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch=%d %s", rec.Code, rec.Body.String())
	}
	day = decode[dayResponse](t, do(t, h, http.MethodGet, "/api/items?date=2025-09-01&category=work", nil))
	if len(day.Items) != 1 || day.Items[0].TimeSpan != "10:00 - 11:30" {
		t.Fatalf("patched day=%+v", day)
	}

	if rec := do(t, h, http.MethodPatch, "/api/items/"+created.ID, `{"end":"09:00"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("end before start=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPatch, "/api/items/"+created.ID, `{"time":"","end":"12:00"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("end after clearing time=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPatch, "/api/items/missing", `{"end":"12:00"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("end on missing item=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPatch, "/api/items/missing", `{"text":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("patch missing=%d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/items/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/items/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/items/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete twice=%d", rec.Code)
	}
}

func TestCreateItemValidation(t *testing.T) {
	h, st := newTestServer(t, nil, Options{})
	cases := []struct {
		name string
		body string
	}{
		{"empty text", `{"date":"2025-09-01","text":"   "}`},
		{"bad date", `{"date":"2025-02-30","text":"x"}`},
		{"bad time", `{"date":"2025-09-01","text":"x","time":"25:00"}`},
		{"end before start", `{"date":"2025-09-01","text":"x","time":"10:00","end":"09:00"}`},
		{"unknown field", `{"date":"2025-09-01","text":"x","color":"red"}`},
		{"not json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/items", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
	if n := len(st.Items()); n != 0 {
		t.Fatalf("items=%d after rejected input", n)
	}
}

func TestTodoScheduling(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})

	rec := do(t, h, http.MethodPost, "/api/todos", todoRequest{Text: "write report", Category: "work"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create todo=%d %s", rec.Code, rec.Body.String())
	}
	td := decode[model.TodoItem](t, rec)

	path := "/api/todos/" + td.ID + "/schedule"
	rec = do(t, h, http.MethodPost, path, scheduleRequest{Date: "2025-09-03", Time: "14:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule=%d %s", rec.Code, rec.Body.String())
	}
	item := decode[model.ScheduleItem](t, rec)
	if item.Date != "2025-09-03" || *item.Time != 840 {
		t.Fatalf("item=%+v", item)
	}
	if rec := do(t, h, http.MethodPost, path, scheduleRequest{Date: "2025-09-04"}); rec.Code != http.StatusConflict {
		t.Fatalf("schedule twice=%d", rec.Code)
	}

	stats := decode[model.TodoStats](t, do(t, h, http.MethodGet, "/api/todos/stats", nil))
	if stats.Total != 1 || stats.Scheduled != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	scheduled := decode[[]model.TodoItem](t, do(t, h, http.MethodGet, "/api/todos?status=scheduled", nil))
	if len(scheduled) != 1 || scheduled[0].ScheduledItemID != item.ID {
		t.Fatalf("scheduled=%+v", scheduled)
	}
	if rec := do(t, h, http.MethodGet, "/api/todos?status=done", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status=%d", rec.Code)
	}

	rec = do(t, h, http.MethodPatch, "/api/todos/"+td.ID, `{"text":"final report"}`)
	if got := decode[model.TodoItem](t, rec); got.Text != "final report" {
		t.Fatalf("patched todo=%+v", got)
	}
	if rec := do(t, h, http.MethodDelete, "/api/todos/"+td.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete todo=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/todos/missing/schedule", scheduleRequest{Date: "2025-09-04"}); rec.Code != http.StatusNotFound {
		t.Fatalf("schedule missing=%d", rec.Code)
	}
}

func TestCategoriesAPI(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})

	rec := do(t, h, http.MethodPost, "/api/categories", categoryRequest{Label: "Health", Color: "#10B981"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create=%d %s", rec.Code, rec.Body.String())
	}
	c := decode[model.Category](t, rec)
	if !strings.HasPrefix(c.Key, "custom_") || c.Color != "#10b981" {
		t.Fatalf("category=%+v", c)
	}
	if rec := do(t, h, http.MethodPost, "/api/categories", categoryRequest{Label: "x", Color: "red"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad color=%d", rec.Code)
	}

	all := decode[[]model.Category](t, do(t, h, http.MethodGet, "/api/categories", nil))
	if len(all) != 5 || all[4].Key != c.Key {
		t.Fatalf("all=%+v", all)
	}

	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-01", Category: "work", Text: "a"})
	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-02", Category: "work", Text: "b"})
	counts := decode[map[string]int](t, do(t, h, http.MethodGet, "/api/categories/counts", nil))
	if counts["work"] != 2 {
		t.Fatalf("counts=%v", counts)
	}

	if rec := do(t, h, http.MethodDelete, "/api/categories/work", nil); rec.Code != http.StatusConflict {
		t.Fatalf("delete builtin=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/categories/custom_1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/categories/"+c.Key, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete custom=%d", rec.Code)
	}
}

func TestDropAPI(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})
	td := decode[model.TodoItem](t, do(t, h, http.MethodPost, "/api/todos", todoRequest{Text: "read", Category: "study"}))

	rec := do(t, h, http.MethodPost, "/api/drop", dropRequest{
		Payload: model.DropPayload{ID: td.ID, Text: "read", Category: "study", Source: model.SourceTodoList},
		Date:    "2025-09-05",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("drop=%d %s", rec.Code, rec.Body.String())
	}
	item := decode[model.ScheduleItem](t, rec)

	rec = do(t, h, http.MethodPost, "/api/drop", dropRequest{
		Payload: model.DropPayload{ID: item.ID, Source: model.SourceCalendar, Time: "07:15"},
		Date:    "2025-09-06",
	})
	moved := decode[model.ScheduleItem](t, rec)
	if moved.Date != "2025-09-06" || *moved.Time != 435 {
		t.Fatalf("moved=%+v", moved)
	}

	if rec := do(t, h, http.MethodPost, "/api/drop", dropRequest{Payload: model.DropPayload{ID: "x", Source: "clipboard"}, Date: "2025-09-06"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad payload=%d", rec.Code)
	}
}

func TestMonthAPI(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})
	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-10", Category: "work", Text: "x"})

	month := decode[monthResponse](t, do(t, h, http.MethodGet, "/api/month?month=2025-09&selected=2025-09-10", nil))
	if month.Month != "2025-09" || month.Label != "September 2025" || len(month.Weeks) != 5 {
		t.Fatalf("month=%+v", month)
	}
	cell := month.Weeks[1][3]
	if cell.Day != 10 || !cell.IsSelected || cell.ItemCount != 1 || cell.CategoryColors[0] != "#4f46e5" {
		t.Fatalf("cell=%+v", cell)
	}
	if !month.Weeks[0][2].IsToday {
		t.Fatalf("today not marked: %+v", month.Weeks[0][2])
	}
	if month.Summary[10].Count != 1 {
		t.Fatalf("summary=%+v", month.Summary[10])
	}

	if rec := do(t, h, http.MethodGet, "/api/month?month=2025-13", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month=%d", rec.Code)
	}
}

func TestSettingsAPI(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})

	got := decode[settingsResponse](t, do(t, h, http.MethodGet, "/api/settings", nil))
	if got.Theme != store.ThemeLight || got.Today != "2025-09-02" {
		t.Fatalf("settings=%+v", got)
	}
	if rec := do(t, h, http.MethodPut, "/api/settings", `{"theme":"dark","last_time":"nope"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad last_time=%d", rec.Code)
	}
	got = decode[settingsResponse](t, do(t, h, http.MethodGet, "/api/settings", nil))
	if got.Theme != store.ThemeLight || got.LastTime != "" {
		t.Fatalf("rejected settings were partly applied: %+v", got)
	}
	got = decode[settingsResponse](t, do(t, h, http.MethodPut, "/api/settings", `{"theme":"dark","last_time":"8:05"}`))
	if got.Theme != store.ThemeDark || got.LastTime != "08:05" {
		t.Fatalf("settings=%+v", got)
	}
	if rec := do(t, h, http.MethodPut, "/api/settings", `{"theme":"sepia"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad theme=%d", rec.Code)
	}
}

func TestCalendarExportAndPage(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})
	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-02", Category: "work", Text: "09:00 stand-up"})

	rec := do(t, h, http.MethodGet, "/calendar.ics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "SUMMARY:stand-up") {
		t.Fatalf("ics=%d %s", rec.Code, rec.Body.String())
	}

	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-02", Text: "lunch"})
	rec = do(t, h, http.MethodGet, "/calendar.ics", nil)
	if !strings.Contains(rec.Body.String(), "SUMMARY:lunch") {
		t.Fatalf("export cache not invalidated:\n%s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/calendar", nil)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `data-ready="true"`) {
		t.Fatalf("page=%d", rec.Code)
	}
	if !strings.Contains(body, "09:00 stand-up") || !strings.Contains(body, "Tuesday, September 2, 2025") {
		t.Fatalf("page content:\n%s", body)
	}
	if rec := do(t, h, http.MethodGet, "/calendar?date=nope", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date=%d", rec.Code)
	}
}

func TestCalendarExportImportedScope(t *testing.T) {
	h, st := newTestServer(t, nil, Options{})
	do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-02", Text: "local"})
	if _, _, err := st.ReplaceSource("team", []model.ScheduleItem{
		{Date: "2025-09-03", Category: "work", Text: "feed event", ExternalID: "ev@team/20250903"},
	}); err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}

	plain := do(t, h, http.MethodGet, "/calendar.ics", nil).Body.String()
	if strings.Contains(plain, "feed event") || !strings.Contains(plain, "SUMMARY:local") {
		t.Fatalf("default export:\n%s", plain)
	}
	all := do(t, h, http.MethodGet, "/calendar.ics?include_imported=1", nil).Body.String()
	if !strings.Contains(all, "SUMMARY:feed event") || !strings.Contains(all, "SUMMARY:local") {
		t.Fatalf("export with imported items:\n%s", all)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})
	if rec := do(t, h, http.MethodPost, "/api/subscriptions/refresh", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("no refresher=%d", rec.Code)
	}

	calls := 0
	h, _ = newTestServer(t, nil, Options{Refresh: func(context.Context) error {
		calls++
		if calls > 1 {
			return errors.New("feed down")
		}
		return nil
	}})
	if rec := do(t, h, http.MethodPost, "/api/subscriptions/refresh", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("refresh=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/subscriptions/refresh", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("failing refresh=%d", rec.Code)
	}
}

func TestPersistFailureIsReported(t *testing.T) {
	cfg := config.DefaultConfig()
	backend := kv.NewMemory()
	st := store.New(backend, store.Options{})
	_ = st.Load()
	h := NewServer(cfg, st, Options{Now: func() time.Time { return fixedNow }}).Handler()

	backend.FailWrites = errors.New("disk full")
	rec := do(t, h, http.MethodPost, "/api/items", model.ItemInput{Date: "2025-09-01", Text: "x"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if len(st.Items()) != 1 {
		t.Fatalf("in-memory item missing after persist failure")
	}
}
