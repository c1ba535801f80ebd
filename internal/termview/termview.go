// Package termview renders the day list, month grid and to-do panel for
// the terminal.
package termview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agenda/internal/model"
)

// Theme holds the styles used by the renderers.
type Theme struct {
	Text   lipgloss.Color
	Muted  lipgloss.Color
	Accent lipgloss.Color
	Border lipgloss.Color

	TitleStyle    lipgloss.Style
	MutedStyle    lipgloss.Style
	TodayStyle    lipgloss.Style
	SelectedStyle lipgloss.Style
	PanelStyle    lipgloss.Style
}

// ThemeFor returns the dark theme for "dark" and the light theme otherwise.
func ThemeFor(name string) Theme {
	if name == "dark" {
		return newTheme("#E5E7EB", "#9CA3AF", "#818CF8", "#374151")
	}
	return newTheme("#111827", "#6B7280", "#4F46E5", "#D1D5DB")
}

func newTheme(text, muted, accent, border string) Theme {
	t := Theme{
		Text:   lipgloss.Color(text),
		Muted:  lipgloss.Color(muted),
		Accent: lipgloss.Color(accent),
		Border: lipgloss.Color(border),
	}
	t.TitleStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)
	t.MutedStyle = lipgloss.NewStyle().
		Foreground(t.Muted)
	t.TodayStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true).
		Underline(true)
	t.SelectedStyle = lipgloss.NewStyle().
		Reverse(true)
	t.PanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	return t
}

// swatch renders a small colored marker for a category color.
func swatch(color string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

// Day renders one day's list under its heading.
func Day(th Theme, heading string, rows []model.DisplayItem) string {
	var b strings.Builder
	b.WriteString(th.TitleStyle.Render(heading))
	b.WriteByte('\n')
	if len(rows) == 0 {
		b.WriteString(th.MutedStyle.Render("  (nothing scheduled)"))
		return th.PanelStyle.Render(b.String())
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		when := r.Time
		if r.TimeSpan != "" {
			when = r.TimeSpan
		}
		if when == "" {
			when = "-----"
		}
		label := r.CategoryLabel
		if label == "" {
			label = r.Category
		}
		fmt.Fprintf(&b, "%s %-13s %s %s",
			swatch(r.CategoryColor),
			when,
			r.Text,
			th.MutedStyle.Render("["+label+"]"),
		)
	}
	return th.PanelStyle.Render(b.String())
}

// Month renders a Sunday-first grid. Each cell shows the day number and
// either the item count or nothing.
func Month(th Theme, heading string, weekdays []string, weeks [][7]model.CalendarCell) string {
	const cellWidth = 6
	cell := lipgloss.NewStyle().Width(cellWidth)

	var lines []string
	lines = append(lines, th.TitleStyle.Render(heading))

	header := make([]string, 0, 7)
	for _, wd := range weekdays {
		header = append(header, cell.Render(th.MutedStyle.Render(wd)))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, week := range weeks {
		cols := make([]string, 0, 7)
		for _, c := range week {
			cols = append(cols, cell.Render(renderCell(th, c)))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	return th.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderCell(th Theme, c model.CalendarCell) string {
	if c.Empty() {
		return ""
	}
	day := fmt.Sprintf("%2d", c.Day)
	switch {
	case c.IsSelected:
		day = th.SelectedStyle.Render(day)
	case c.IsToday:
		day = th.TodayStyle.Render(day)
	}
	if c.ItemCount == 0 {
		return day
	}
	dots := ""
	for _, col := range c.CategoryColors {
		dots += swatch(col)
	}
	if c.MoreColors > 0 {
		dots += "+"
	}
	return day + dots
}

// Todos renders the to-do panel with its stats footer.
func Todos(th Theme, todos []model.TodoItem, stats model.TodoStats, resolve func(string) model.Category) string {
	var b strings.Builder
	b.WriteString(th.TitleStyle.Render("To-do"))
	for _, td := range todos {
		b.WriteByte('\n')
		cat := resolve(td.Category)
		mark := "[ ]"
		if td.Status == model.TodoScheduled {
			mark = "[" + td.ScheduledDate + "]"
		}
		fmt.Fprintf(&b, "%s %s %s %s", swatch(cat.Color), mark, td.Text, th.MutedStyle.Render(td.ID))
	}
	b.WriteByte('\n')
	b.WriteString(th.MutedStyle.Render(fmt.Sprintf("total %d · scheduled %d · unscheduled %d",
		stats.Total, stats.Scheduled, stats.Unscheduled)))
	return th.PanelStyle.Render(b.String())
}
