package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/dayview"
	"agenda/internal/ics"
	appLog "agenda/internal/log"
	"agenda/internal/model"
	"agenda/internal/store"
	"agenda/internal/timetext"
)

// mutated bumps the change version when a write reached memory, which is
// also the case for persistence failures.
func (s *Server) mutated(err error) {
	if err == nil || errors.Is(err, store.ErrPersist) {
		s.changed()
	}
}

// dayResponse is the JSON shape for GET /api/items.
type dayResponse struct {
	Date     string              `json:"date"`
	Label    string              `json:"label"`
	Category string              `json:"category,omitempty"`
	Items    []model.DisplayItem `json:"items"`
}

// handleListItems returns the day view for ?date= (default today),
// optionally filtered by ?category=.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = s.today()
	}
	day, err := calendar.ParseDateKey(date)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	cat := q.Get("category")
	writeJSON(w, http.StatusOK, dayResponse{
		Date:     date,
		Label:    calendar.DisplayLabel(day, s.locale()),
		Category: cat,
		Items:    dayview.ForDate(s.store, date, cat),
	})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in model.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeFailure(w, r, err)
		return
	}
	item, err := in.ToItem()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	id, err := s.store.Create(item)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	created, _ := s.store.Get(id)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeFailure(w, r, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// itemPatchRequest is the PATCH body for an item. Time and End are
// "HH:MM"; an empty Time clears the time of day.
type itemPatchRequest struct {
	Date     *string `json:"date"`
	Category *string `json:"category"`
	Text     *string `json:"text"`
	Time     *string `json:"time"`
	End      *string `json:"end"`
	Notes    *string `json:"notes"`
}

// toPatch validates the request fields. Whether End fits the start time is
// decided by the store against the item as it is when the patch applies.
func (req itemPatchRequest) toPatch() (model.ItemPatch, error) {
	p := model.ItemPatch{
		Date:     trimmed(req.Date),
		Category: trimmed(req.Category),
		Text:     req.Text,
		Notes:    req.Notes,
	}
	if p.Text != nil {
		// A time typed into the text is lifted out, as on create.
		ex := timetext.ExtractTime(*p.Text)
		text := ex.Content
		p.Text = &text
		if ex.HasTime() && req.Time == nil {
			m := ex.Minutes()
			p.Time = &m
		}
	}

	if req.Time != nil {
		if strings.TrimSpace(*req.Time) == "" {
			p.ClearTime = true
		} else {
			m, err := timetext.ParseClock(*req.Time)
			if err != nil {
				return p, fmt.Errorf("%w: %q", model.ErrInvalidTime, *req.Time)
			}
			p.Time = &m
		}
	}

	if req.End != nil {
		if strings.TrimSpace(*req.End) == "" {
			zero := 0
			p.Duration = &zero
			return p, nil
		}
		stop, err := timetext.ParseClock(*req.End)
		if err != nil {
			return p, fmt.Errorf("%w: %q", model.ErrInvalidTime, *req.End)
		}
		p.End = &stop
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req itemPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	err = s.store.Update(id, patch)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	updated, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.PathValue("id"))
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// monthResponse is the JSON shape for GET /api/month.
type monthResponse struct {
	Month    string                     `json:"month"` // YYYY-MM
	Label    string                     `json:"label"`
	Category string                     `json:"category,omitempty"`
	Weeks    [][7]model.CalendarCell    `json:"weeks"`
	Summary  map[int]dayview.DaySummary `json:"summary"`
}

// handleMonth returns the month grid for ?month=YYYY-MM (default the
// current month). ?selected= marks a date key.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month := s.now().Year(), s.now().Month()
	if m := q.Get("month"); m != "" {
		var err error
		year, month, err = calendar.ParseMonth(m)
		if err != nil {
			writeFailure(w, r, errBadRequest{err})
			return
		}
	}
	cat := q.Get("category")
	writeJSON(w, http.StatusOK, monthResponse{
		Month:    fmt.Sprintf("%04d-%02d", year, int(month)),
		Label:    calendar.MonthLabel(year, month, s.locale()),
		Category: cat,
		Weeks:    dayview.MonthCells(s.store, year, month, cat, s.today(), q.Get("selected")),
		Summary:  dayview.MonthSummary(s.store, year, month, cat),
	})
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	status := model.TodoStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.TodoScheduled, model.TodoUnscheduled:
	default:
		writeError(w, http.StatusBadRequest, "status must be scheduled or unscheduled")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Todos(status))
}

type todoRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	td, err := s.store.CreateTodo(req.Text, req.Category)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, td)
}

func (s *Server) handleTodoStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.TodoStats())
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch model.TodoPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeFailure(w, r, err)
		return
	}
	err := s.store.UpdateTodo(id, patch)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	td, _ := s.store.GetTodo(id)
	writeJSON(w, http.StatusOK, td)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteTodo(r.PathValue("id"))
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

func (s *Server) handleScheduleTodo(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	var minutes *int
	if req.Time != "" {
		m, err := timetext.ParseClock(req.Time)
		if err != nil {
			writeFailure(w, r, fmt.Errorf("%w: %q", model.ErrInvalidTime, req.Time))
			return
		}
		minutes = &m
	}
	item, err := s.store.ScheduleTodo(r.PathValue("id"), req.Date, minutes)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Categories().All())
}

type categoryRequest struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	c, err := s.store.AddCategory(req.Label, req.Color)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCategoryCounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.CategoryCounts())
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.store.RemoveCategory(r.PathValue("key"))
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dropRequest is a drag-and-drop handoff onto Date.
type dropRequest struct {
	Payload model.DropPayload `json:"payload"`
	Date    string            `json:"date"`
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	item, err := s.store.Drop(req.Payload, req.Date)
	s.mutated(err)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type settingsResponse struct {
	Theme    string `json:"theme"`
	LastTime string `json:"last_time"`
	Locale   string `json:"locale"`
	Today    string `json:"today"`
}

type settingsRequest struct {
	Theme    *string `json:"theme"`
	LastTime *string `json:"last_time"`
}

func (s *Server) settings() settingsResponse {
	return settingsResponse{
		Theme:    s.store.Theme(),
		LastTime: s.store.LastTime(),
		Locale:   s.locale(),
		Today:    s.today(),
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := s.store.UpdateSettings(req.Theme, req.LastTime); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusNotFound, "no subscriptions configured")
		return
	}
	err := s.refresh(r.Context())
	s.changed()
	if err != nil {
		appLog.Error("subscription refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport serves every local item as an iCalendar feed. The body is
// cached until the next mutation, or for at most exportCacheTTL.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	const exportCacheTTL = 5 * time.Minute

	imported := r.URL.Query().Get("include_imported") == "1"

	s.exportMu.RLock()
	ec, version := s.exportCache[imported], s.version
	s.exportMu.RUnlock()

	body := ""
	if ec != nil && ec.version == version && time.Since(ec.updatedAt) < exportCacheTTL {
		body = ec.body
	} else {
		var err error
		body, err = ics.Export(s.store.Items(), ics.ExportOptions{
			Name:            "agenda",
			IncludeImported: imported,
			Resolve:         s.store.ResolveCategory,
			Now:             s.now,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.exportMu.Lock()
		if s.exportCache == nil {
			s.exportCache = make(map[bool]*exportCache, 2)
		}
		s.exportCache[imported] = &exportCache{body: body, version: version, updatedAt: time.Now()}
		s.exportMu.Unlock()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="agenda.ics"`)
	_, _ = w.Write([]byte(body))
}

func (s *Server) locale() string {
	if s.cfg == nil {
		return calendar.LocaleEnglish
	}
	return s.cfg.Locale
}
