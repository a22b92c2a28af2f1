package assist

import (
	"strings"
	"testing"
	"time"

	"github.com/planward/planward/internal/model"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := New(""); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestBuildPromptSkipsClosedTasks(t *testing.T) {
	due := time.Date(2026, 9, 3, 17, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{Title: "Open item", Status: model.StatusUpcoming, CategoryID: "c1", DueAt: &due},
		{Title: "Past item", Status: model.StatusOverdue, CategoryID: "c1"},
		{Title: "Done item", Status: model.StatusCompleted, CategoryID: "c1"},
		{Title: "Dropped item", Status: model.StatusCanceled, CategoryID: "c1"},
	}
	cats := []model.Category{{ID: "c1", Name: "Work"}}

	prompt := buildPrompt(tasks, cats, now)
	for _, want := range []string{"Open item", "Past item", "Work", "due 3 Sep"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	for _, closed := range []string{"Done item", "Dropped item"} {
		if strings.Contains(prompt, closed) {
			t.Errorf("closed task %q leaked into the prompt", closed)
		}
	}
}
