package model

import "time"

// TaskPatch is a partial update for a task. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	CategoryID  *string     `json:"category_id,omitempty"`
	DueAt       *time.Time  `json:"due_date,omitempty"`
	OrderIndex  *int        `json:"order_index,omitempty"`
}

// CategoryPatch is a partial update for a category. IsDefault is accepted
// here so callers can attempt it, but the store strips it before the write:
// the default flag is never mutable through the client.
type CategoryPatch struct {
	Name      *string `json:"name,omitempty"`
	Color     *string `json:"color,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}

// ProfilePatch is a partial update for a profile.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Ptr returns a pointer to v. Convenience for building patches.
func Ptr[T any](v T) *T {
	return &v
}
