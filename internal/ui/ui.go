// Package ui renders the store's collections for the terminal. It is
// presentation only: it reads snapshots and never calls the backend.
package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/planward/planward/internal/model"
	"github.com/planward/planward/internal/stats"
)

// Renderer draws the task layouts. Construct with NewRenderer so the
// color profile matches the terminal and the user's preference.
type Renderer struct {
	header   lipgloss.Style
	dim      lipgloss.Style
	overdue  lipgloss.Style
	done     lipgloss.Style
	canceled lipgloss.Style
	column   lipgloss.Style
}

// NewRenderer builds a renderer. color=false forces plain output
// regardless of terminal capabilities. The color profile lives on a
// renderer of our own; the process-global lipgloss renderer is untouched.
func NewRenderer(color bool) *Renderer {
	lr := lipgloss.NewRenderer(os.Stdout)
	if !color {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		header:   lr.NewStyle().Bold(true),
		dim:      lr.NewStyle().Faint(true),
		overdue:  lr.NewStyle().Foreground(lipgloss.Color("1")),
		done:     lr.NewStyle().Foreground(lipgloss.Color("2")),
		canceled: lr.NewStyle().Faint(true).Strikethrough(true),
		column: lr.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(28),
	}
}

func (r *Renderer) statusMark(s model.TaskStatus) string {
	switch s {
	case model.StatusCompleted:
		return r.done.Render("✓")
	case model.StatusOverdue:
		return r.overdue.Render("!")
	case model.StatusCanceled:
		return r.canceled.Render("×")
	default:
		return "·"
	}
}

func (r *Renderer) taskLine(t model.Task, catName string) string {
	line := fmt.Sprintf("%s %s", r.statusMark(t.Status), t.Title)
	if t.Status == model.StatusCanceled {
		line = fmt.Sprintf("%s %s", r.statusMark(t.Status), r.canceled.Render(t.Title))
	}
	meta := catName
	if t.DueAt != nil {
		meta += " · due " + t.DueAt.Format("2 Jan 15:04")
	}
	if meta != "" {
		line += " " + r.dim.Render("("+meta+")")
	}
	return line
}

func categoryNames(categories []model.Category) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}

// List renders tasks grouped by category, default category first.
func (r *Renderer) List(tasks []model.Task, categories []model.Category) string {
	names := categoryNames(categories)
	var sb strings.Builder
	for _, c := range categories {
		var lines []string
		for _, t := range tasks {
			if t.CategoryID == c.ID {
				lines = append(lines, "  "+r.taskLine(t, ""))
			}
		}
		sb.WriteString(r.header.Render(c.Name) + "\n")
		if len(lines) == 0 {
			sb.WriteString(r.dim.Render("  no tasks") + "\n")
		} else {
			sb.WriteString(strings.Join(lines, "\n") + "\n")
		}
	}
	// Tasks whose category vanished mid-refresh still render.
	var orphans []string
	for _, t := range tasks {
		if _, ok := names[t.CategoryID]; !ok {
			orphans = append(orphans, "  "+r.taskLine(t, ""))
		}
	}
	if len(orphans) > 0 {
		sb.WriteString(r.header.Render("(uncategorized)") + "\n")
		sb.WriteString(strings.Join(orphans, "\n") + "\n")
	}
	return sb.String()
}

// Kanban renders one bordered column per status.
func (r *Renderer) Kanban(tasks []model.Task, categories []model.Category) string {
	names := categoryNames(categories)
	order := []model.TaskStatus{model.StatusUpcoming, model.StatusOverdue, model.StatusCompleted, model.StatusCanceled}

	cols := make([]string, 0, len(order))
	for _, status := range order {
		var lines []string
		for _, t := range tasks {
			if t.Status == status {
				lines = append(lines, "• "+t.Title+"\n  "+r.dim.Render(names[t.CategoryID]))
			}
		}
		body := r.dim.Render("empty")
		if len(lines) > 0 {
			body = strings.Join(lines, "\n")
		}
		content := r.header.Render(strings.ToUpper(string(status))) + "\n" + body
		cols = append(cols, r.column.Render(content))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// Week renders one column per day of the current week, placing tasks by
// due date.
func (r *Renderer) Week(tasks []model.Task, now time.Time, mondayStart bool) string {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := int(start.Weekday())
	if mondayStart {
		offset = (offset + 6) % 7
	}
	start = start.AddDate(0, 0, -offset)

	var sb strings.Builder
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		next := day.AddDate(0, 0, 1)
		label := day.Format("Mon 2 Jan")
		if sameDay(day, now) {
			label += " (today)"
		}
		sb.WriteString(r.header.Render(label) + "\n")
		empty := true
		for _, t := range tasks {
			if t.DueAt != nil && !t.DueAt.Before(day) && t.DueAt.Before(next) {
				sb.WriteString("  " + r.taskLine(t, "") + "\n")
				empty = false
			}
		}
		if empty {
			sb.WriteString(r.dim.Render("  —") + "\n")
		}
	}
	return sb.String()
}

// Month renders a due-date calendar for the month containing now; days
// with due tasks show a count.
func (r *Renderer) Month(tasks []model.Task, now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	next := first.AddDate(0, 1, 0)

	counts := make(map[int]int)
	for _, t := range tasks {
		if t.DueAt != nil && !t.DueAt.Before(first) && t.DueAt.Before(next) {
			counts[t.DueAt.Day()]++
		}
	}

	var sb strings.Builder
	sb.WriteString(r.header.Render(now.Format("January 2006")) + "\n")
	sb.WriteString(r.dim.Render("Su Mo Tu We Th Fr Sa") + "\n")
	sb.WriteString(strings.Repeat("   ", int(first.Weekday())))
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		cell := fmt.Sprintf("%2d", d.Day())
		if counts[d.Day()] > 0 {
			cell = r.header.Render(cell)
		} else {
			cell = r.dim.Render(cell)
		}
		sb.WriteString(cell + " ")
		if d.Weekday() == time.Saturday {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	var days []int
	for d := range counts {
		days = append(days, d)
	}
	sort.Ints(days)
	for _, d := range days {
		fmt.Fprintf(&sb, "%s %d task(s) due\n", first.AddDate(0, 0, d-1).Format("Jan 2:"), counts[d])
	}
	return sb.String()
}

// Reports renders the productivity statistics.
func (r *Renderer) Reports(o stats.Overview, perf []stats.CategoryStat, weekly []stats.DayActivity) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render("Overview") + "\n")
	fmt.Fprintf(&sb, "  total %d · upcoming %d · overdue %d · completed %d · canceled %d\n",
		o.Total, o.Upcoming, o.Overdue, o.Completed, o.Canceled)
	fmt.Fprintf(&sb, "  completion rate %d%%\n\n", o.CompletionRate)

	sb.WriteString(r.header.Render("Category performance") + "\n")
	for _, p := range perf {
		fmt.Fprintf(&sb, "  %-20s %3d tasks  %3d%% done\n", p.Category.Name, p.Total, p.CompletionRate)
	}
	sb.WriteString("\n" + r.header.Render("This week") + "\n")
	for _, d := range weekly {
		bar := strings.Repeat("▪", d.Completed)
		fmt.Fprintf(&sb, "  %-9s created %d, completed %d %s\n", d.Day, d.Created, d.Completed, bar)
	}
	return sb.String()
}

// Profile renders the signed-in profile.
func (r *Renderer) Profile(p model.Profile) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render(p.DisplayName) + "\n")
	fmt.Fprintf(&sb, "  email: %s\n", p.Email)
	if p.PhoneNumber != "" {
		fmt.Fprintf(&sb, "  phone: %s\n", p.PhoneNumber)
	}
	if p.AvatarURL != "" {
		fmt.Fprintf(&sb, "  avatar: %s\n", p.AvatarURL)
	}
	return sb.String()
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
