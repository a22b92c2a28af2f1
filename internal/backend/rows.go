package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/planward/planward/internal/model"
)

// Row API over the backend's PostgREST-style conventions: resources are
// addressed as /rest/v1/<table>, filters as column=eq.value query params,
// ordering as order=column.desc. Inserts send Prefer: return=representation
// so the stored row (with server-assigned id and timestamps) comes back.

const restPrefix = "/rest/v1/"

var preferReturn = http.Header{"Prefer": []string{"return=representation"}}

func (c *Client) restURL(table string, q url.Values) string {
	return c.endpoint(restPrefix+table, q)
}

// ListCategories returns every category owned by userID, default first.
func (c *Client) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "is_default.desc")

	var out []model.Category
	if err := c.do(ctx, http.MethodGet, c.restURL("categories", q), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return out, nil
}

// FindDefaultCategory returns userID's default category, or nil if absent.
func (c *Client) FindDefaultCategory(ctx context.Context, userID string) (*model.Category, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("is_default", "eq.true")
	q.Set("limit", "1")

	var out []model.Category
	if err := c.do(ctx, http.MethodGet, c.restURL("categories", q), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to query default category: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// InsertCategory creates a category and returns the stored row.
func (c *Client) InsertCategory(ctx context.Context, cat model.Category) (*model.Category, error) {
	payload := map[string]any{
		"name":       cat.Name,
		"color":      cat.Color,
		"user_id":    cat.UserID,
		"is_default": cat.IsDefault,
	}
	var out []model.Category
	if err := c.do(ctx, http.MethodPost, c.restURL("categories", nil), payload, preferReturn, &out); err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert category returned no row")
	}
	return &out[0], nil
}

// UpdateCategory patches a category by id. The patch must already have its
// is_default field stripped; this layer sends whatever it is given.
func (c *Client) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	if err := c.do(ctx, http.MethodPatch, c.restURL("categories", q), patch, nil, nil); err != nil {
		return fmt.Errorf("failed to update category %s: %w", id, err)
	}
	return nil
}

// DeleteCategory removes a category row by id.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	if err := c.do(ctx, http.MethodDelete, c.restURL("categories", q), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	return nil
}

// ListTasks returns every task owned by userID, newest first.
func (c *Client) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")

	var out []model.Task
	if err := c.do(ctx, http.MethodGet, c.restURL("tasks", q), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return out, nil
}

// InsertTask creates a task and returns the stored row.
func (c *Client) InsertTask(ctx context.Context, task model.Task) (*model.Task, error) {
	payload := map[string]any{
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"category_id": task.CategoryID,
		"user_id":     task.UserID,
		"order_index": task.OrderIndex,
	}
	if task.DueAt != nil {
		payload["due_date"] = task.DueAt
	}
	var out []model.Task
	if err := c.do(ctx, http.MethodPost, c.restURL("tasks", nil), payload, preferReturn, &out); err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert task returned no row")
	}
	return &out[0], nil
}

// UpdateTask patches a task by id.
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	if err := c.do(ctx, http.MethodPatch, c.restURL("tasks", q), patch, nil, nil); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task row by id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	if err := c.do(ctx, http.MethodDelete, c.restURL("tasks", q), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// GetProfile returns the profile row for userID, or nil if absent.
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+userID)
	q.Set("limit", "1")

	var out []model.Profile
	if err := c.do(ctx, http.MethodGet, c.restURL("profiles", q), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// InsertProfile creates a profile row and returns the stored row.
func (c *Client) InsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	payload := map[string]any{
		"id":           p.ID,
		"email":        p.Email,
		"display_name": p.DisplayName,
	}
	if p.AvatarURL != "" {
		payload["avatar_url"] = p.AvatarURL
	}
	var out []model.Profile
	if err := c.do(ctx, http.MethodPost, c.restURL("profiles", nil), payload, preferReturn, &out); err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert profile returned no row")
	}
	return &out[0], nil
}

// UpdateProfile patches the profile row for userID.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) error {
	q := url.Values{}
	q.Set("id", "eq."+userID)
	if err := c.do(ctx, http.MethodPatch, c.restURL("profiles", q), patch, nil, nil); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
