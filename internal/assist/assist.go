// Package assist produces AI prioritization hints for the current task
// collection. It is an optional leaf: the stores never depend on it, and
// without an API key it fails with a clear message instead of degrading
// anything else.
package assist

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/planward/planward/internal/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Advisor turns a task snapshot into prioritization suggestions.
type Advisor struct {
	client anthropic.Client
	model  string
}

// New creates an advisor. Returns an error when ANTHROPIC_API_KEY is not
// set; the SDK reads the key from the environment.
func New(modelName string) (*Advisor, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set; suggestions need an Anthropic API key")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Advisor{
		client: anthropic.NewClient(),
		model:  modelName,
	}, nil
}

// Suggest asks for a short prioritized plan over the open tasks.
func (a *Advisor) Suggest(ctx context.Context, tasks []model.Task, categories []model.Category) (string, error) {
	prompt := buildPrompt(tasks, categories, time.Now())

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("suggestion request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("suggestion response contained no text")
	}
	return sb.String(), nil
}

// buildPrompt renders a compact plain-text view of the open tasks. Only
// titles, statuses, categories, and due dates are sent.
func buildPrompt(tasks []model.Task, categories []model.Category, now time.Time) string {
	catNames := make(map[string]string, len(categories))
	for _, c := range categories {
		catNames[c.ID] = c.Name
	}

	var sb strings.Builder
	sb.WriteString("You are a productivity assistant. Given this task list, suggest an order to tackle the open tasks today and flag anything at risk. Be brief.\n\n")
	fmt.Fprintf(&sb, "Today is %s.\n\nTasks:\n", now.Format("Monday, 2 January 2006"))
	for _, t := range tasks {
		if t.Status == model.StatusCompleted || t.Status == model.StatusCanceled {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %s (category: %s", t.Status, t.Title, catNames[t.CategoryID])
		if t.DueAt != nil {
			fmt.Fprintf(&sb, ", due %s", t.DueAt.Format("2 Jan 15:04"))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
