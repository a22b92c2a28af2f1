package store

import (
	"context"
	"fmt"

	"github.com/planward/planward/internal/model"
)

// Mutations write through to the backend and then trigger a full refresh.
// No local patching: the refreshed snapshot is the only way new state
// becomes visible. Backend errors propagate to the caller unmodified and
// nothing is retried.

// AddTask creates a task for the bound identity. The ordering index is the
// current size of the local task collection; concurrent creation from
// another client can produce colliding indexes, which this domain accepts.
func (s *Store) AddTask(ctx context.Context, nt model.NewTask) error {
	s.mu.RLock()
	userID := s.userID
	orderIndex := len(s.tasks)
	s.mu.RUnlock()
	if userID == "" {
		return fmt.Errorf("not signed in")
	}
	if err := nt.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	task := model.Task{
		Title:       nt.Title,
		Description: nt.Description,
		Status:      nt.Status,
		CategoryID:  nt.CategoryID,
		UserID:      userID,
		DueAt:       nt.DueAt,
		OrderIndex:  orderIndex,
	}
	created, err := s.api.InsertTask(ctx, task)
	if err != nil {
		return err
	}
	s.logger.Printf("added task %s (%s)", created.ID, created.Title)
	return s.Refresh(ctx)
}

// UpdateTask applies a partial update to a task.
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	if _, ok := s.Bound(); !ok {
		return fmt.Errorf("not signed in")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("invalid status %q", *patch.Status)
	}
	if err := s.api.UpdateTask(ctx, id, patch); err != nil {
		return err
	}
	s.logger.Printf("updated task %s", id)
	return s.Refresh(ctx)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, ok := s.Bound(); !ok {
		return fmt.Errorf("not signed in")
	}
	if err := s.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("deleted task %s", id)
	return s.Refresh(ctx)
}

// AddCategory creates a category. An empty color falls back to the default
// palette color.
func (s *Store) AddCategory(ctx context.Context, name, color string) error {
	s.mu.RLock()
	userID := s.userID
	s.mu.RUnlock()
	if userID == "" {
		return fmt.Errorf("not signed in")
	}
	if name == "" {
		return fmt.Errorf("category name is required")
	}
	if color == "" {
		color = model.DefaultCategoryColor
	}

	created, err := s.api.InsertCategory(ctx, model.Category{
		Name:      name,
		Color:     color,
		UserID:    userID,
		IsDefault: false,
	})
	if err != nil {
		return err
	}
	s.logger.Printf("added category %s (%s)", created.ID, created.Name)
	return s.Refresh(ctx)
}

// UpdateCategory applies a partial update to a category. Any attempt to
// change the default flag is silently discarded before the write: at most
// one category per identity carries it, and only bootstrap may set it.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error {
	if _, ok := s.Bound(); !ok {
		return fmt.Errorf("not signed in")
	}
	patch.IsDefault = nil
	if err := s.api.UpdateCategory(ctx, id, patch); err != nil {
		return err
	}
	s.logger.Printf("updated category %s", id)
	return s.Refresh(ctx)
}

// DeleteCategory removes a category after reassigning every task that
// references it to the default category. The reassignments must all
// succeed before the category row is deleted; a partial failure aborts
// with the tasks still consistent and the category intact.
//
// Deleting the default category or a category not present in the current
// collection is rejected before any backend call.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.RLock()
	userID := s.userID
	var target, def *model.Category
	for _, c := range s.categories {
		c := c
		switch {
		case c.ID == id:
			target = &c
		case c.IsDefault:
			def = &c
		}
	}
	var toMove []string
	for _, t := range s.tasks {
		if t.CategoryID == id {
			toMove = append(toMove, t.ID)
		}
	}
	s.mu.RUnlock()

	if userID == "" {
		return fmt.Errorf("not signed in")
	}
	if target == nil {
		return fmt.Errorf("category %s not found", id)
	}
	if target.IsDefault {
		return fmt.Errorf("cannot delete the default category")
	}
	if def == nil {
		return fmt.Errorf("default category not found")
	}

	if len(toMove) > 0 {
		s.logger.Printf("moving %d tasks from category %s to default", len(toMove), id)
	}
	for _, taskID := range toMove {
		patch := model.TaskPatch{CategoryID: model.Ptr(def.ID)}
		if err := s.api.UpdateTask(ctx, taskID, patch); err != nil {
			return fmt.Errorf("failed to reassign task %s, aborting delete: %w", taskID, err)
		}
	}

	if err := s.api.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("deleted category %s", id)
	return s.Refresh(ctx)
}
