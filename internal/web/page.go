package web

import (
	"html/template"
	"net/http"

	"agenda/internal/calendar"
	"agenda/internal/dayview"
	appLog "agenda/internal/log"
	"agenda/internal/model"
)

// pageData feeds calendarPage.
type pageData struct {
	Theme      string
	MonthLabel string
	DayLabel   string
	Weekdays   []string
	Weeks      [][7]model.CalendarCell
	Items      []model.DisplayItem
	Todos      []model.TodoItem
	Stats      model.TodoStats
}

// calendarPage is the static render captured to PNG. data-ready is set on
// the root so capture can wait for it.
var calendarPage = template.Must(template.New("calendar").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.MonthLabel}}</title>
<style>
body{font-family:sans-serif;margin:16px}
body.dark{background:#111827;color:#f9fafb}
table.month{border-collapse:collapse;width:100%}
table.month td,table.month th{border:1px solid #d1d5db;vertical-align:top;height:64px;width:14%}
td.today{outline:2px solid #111827}
td.selected{background:#eef2ff}
.dot{display:inline-block;width:8px;height:8px;border-radius:4px;margin-right:2px}
.day li{margin:4px 0}
.cat{font-size:12px;padding:0 4px;border-radius:4px;color:#fff}
</style>
</head>
<body class="{{.Theme}}">
<main data-ready="true">
<h1>{{.MonthLabel}}</h1>
<table class="month">
<tr>{{range .Weekdays}}<th>{{.}}</th>{{end}}</tr>
{{range .Weeks}}<tr>{{range .}}{{if .Day}}<td class="{{if .IsToday}}today {{end}}{{if .IsSelected}}selected{{end}}">
<div>{{.Day}}</div>
{{range .CategoryColors}}<span class="dot" style="background:{{.}}"></span>{{end}}{{if .MoreColors}}<small>+{{.MoreColors}}</small>{{end}}
</td>{{else}}<td></td>{{end}}{{end}}</tr>
{{end}}</table>
<section class="day">
<h2>{{.DayLabel}}</h2>
<ul>
{{range .Items}}<li><span class="cat" style="background:{{.CategoryColor}}">{{.CategoryLabel}}</span> {{if .TimeSpan}}{{.TimeSpan}} {{.Text}}{{else}}{{.Label}}{{end}}</li>
{{else}}<li class="empty"></li>
{{end}}</ul>
</section>
<section class="todos">
<h2>{{.Stats.Unscheduled}} / {{.Stats.Total}}</h2>
<ul>
{{range .Todos}}<li>{{.Text}}</li>
{{end}}</ul>
</section>
</main>
</body>
</html>
`))

// handleCalendarPage renders the month of ?date= (default today) with that
// day's list underneath. ?category= filters both.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = s.today()
	}
	day, err := calendar.ParseDateKey(date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cat := q.Get("category")
	locale := s.locale()

	data := pageData{
		Theme:      s.store.Theme(),
		MonthLabel: calendar.MonthLabel(day.Year(), day.Month(), locale),
		DayLabel:   calendar.DisplayLabel(day, locale),
		Weekdays:   calendar.WeekdayNames(locale),
		Weeks:      dayview.MonthCells(s.store, day.Year(), day.Month(), cat, s.today(), date),
		Items:      dayview.ForDate(s.store, date, cat),
		Todos:      s.store.Todos(model.TodoUnscheduled),
		Stats:      s.store.TodoStats(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Last-Modified", s.now().UTC().Format(http.TimeFormat))
	if err := calendarPage.Execute(w, data); err != nil {
		appLog.Error("calendar page render failed", err)
	}
}
