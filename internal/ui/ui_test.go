package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/planward/planward/internal/model"
)

func plainRenderer() *Renderer {
	return NewRenderer(false)
}

func TestNewRendererLeavesGlobalProfileAlone(t *testing.T) {
	before := lipgloss.DefaultRenderer().ColorProfile()
	NewRenderer(false)
	NewRenderer(true)
	if got := lipgloss.DefaultRenderer().ColorProfile(); got != before {
		t.Errorf("global color profile changed from %v to %v", before, got)
	}
}

func TestListGroupsByCategory(t *testing.T) {
	cats := []model.Category{
		{ID: "c1", Name: "General", IsDefault: true},
		{ID: "c2", Name: "Work"},
	}
	tasks := []model.Task{
		{ID: "t1", Title: "Buy milk", Status: model.StatusUpcoming, CategoryID: "c1"},
		{ID: "t2", Title: "Quarterly report", Status: model.StatusCompleted, CategoryID: "c2"},
	}

	out := plainRenderer().List(tasks, cats)
	general := strings.Index(out, "General")
	work := strings.Index(out, "Work")
	if general < 0 || work < 0 || general > work {
		t.Errorf("categories missing or misordered:\n%s", out)
	}
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Quarterly report") {
		t.Errorf("tasks missing:\n%s", out)
	}
}

func TestListRendersOrphans(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", Title: "Floating", Status: model.StatusUpcoming, CategoryID: "gone"},
	}
	out := plainRenderer().List(tasks, nil)
	if !strings.Contains(out, "(uncategorized)") || !strings.Contains(out, "Floating") {
		t.Errorf("orphaned task not rendered:\n%s", out)
	}
}

func TestKanbanColumns(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", Title: "Soon", Status: model.StatusUpcoming, CategoryID: "c1"},
		{ID: "t2", Title: "Late", Status: model.StatusOverdue, CategoryID: "c1"},
	}
	out := plainRenderer().Kanban(tasks, []model.Category{{ID: "c1", Name: "General"}})
	for _, want := range []string{"UPCOMING", "OVERDUE", "COMPLETED", "CANCELED", "Soon", "Late"} {
		if !strings.Contains(out, want) {
			t.Errorf("kanban output missing %q:\n%s", want, out)
		}
	}
}

func TestWeekPlacesTasksByDueDate(t *testing.T) {
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC) // Wednesday
	due := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)  // Friday
	tasks := []model.Task{
		{ID: "t1", Title: "Ship it", Status: model.StatusUpcoming, CategoryID: "c1", DueAt: &due},
	}

	out := plainRenderer().Week(tasks, now, true)
	if !strings.Contains(out, "(today)") {
		t.Errorf("current day not marked:\n%s", out)
	}
	fri := strings.Index(out, "Fri 4 Sep")
	task := strings.Index(out, "Ship it")
	if fri < 0 || task < fri {
		t.Errorf("task not placed under its due day:\n%s", out)
	}
}

func TestMonthCountsDueDays(t *testing.T) {
	now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	due := time.Date(2026, 9, 20, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "t1", Title: "Renew", Status: model.StatusUpcoming, CategoryID: "c1", DueAt: &due},
	}

	out := plainRenderer().Month(tasks, now)
	if !strings.Contains(out, "September 2026") {
		t.Errorf("month header missing:\n%s", out)
	}
	if !strings.Contains(out, "Sep 20: 1 task(s) due") {
		t.Errorf("due-day summary missing:\n%s", out)
	}
}

func TestProfileRendering(t *testing.T) {
	out := plainRenderer().Profile(model.Profile{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		PhoneNumber: "+1 555 0100",
	})
	for _, want := range []string{"Alice", "alice@example.com", "+1 555 0100"} {
		if !strings.Contains(out, want) {
			t.Errorf("profile output missing %q:\n%s", want, out)
		}
	}
}
