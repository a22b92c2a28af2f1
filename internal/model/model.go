// Package model defines the domain types shared by the session and
// synchronization stores.
//
// All types are flat structs with JSON tags matching the backend's column
// names. The backend is the source of truth: ids and server-side timestamps
// are assigned there, and the client never persists these types locally.
package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusUpcoming  TaskStatus = "upcoming"
	StatusOverdue   TaskStatus = "overdue"
	StatusCompleted TaskStatus = "completed"
	StatusCanceled  TaskStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOverdue, StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s TaskStatus) String() string {
	return string(s)
}

// Default category convention. The first bootstrap for an identity creates
// this category if it is absent; it can never be deleted.
const (
	DefaultCategoryName  = "General"
	DefaultCategoryColor = "#3b82f6"
)

// Category groups tasks. Exactly one category per identity has
// IsDefault set; it is the fallback target when another category is deleted.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	IsDefault bool      `json:"is_default"`
}

// Task is a single to-do item. CategoryID always resolves to a category
// owned by the same identity.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CategoryID  string     `json:"category_id"`
	UserID      string     `json:"user_id"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	OrderIndex  int        `json:"order_index"`
}

// Profile is the extended user record backing the identity.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProvisionalProfile synthesizes a local profile for an identity that has no
// persisted profile record yet. The display name is the local part of the
// email address.
func ProvisionalProfile(id, email string) Profile {
	name := email
	if i := strings.Index(email, "@"); i > 0 {
		name = email[:i]
	}
	return Profile{
		ID:          id,
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}
}

// Identity is the authenticated user the rest of the state is scoped to.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session holds the backend-issued credentials for an identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the access token is past its deadline.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// NewTask is the caller-supplied portion of a task. The store fills in the
// owning identity and ordering index; the backend assigns id and timestamps.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CategoryID  string     `json:"category_id"`
	DueAt       *time.Time `json:"due_date,omitempty"`
}

// Validate checks the NewTask before it is sent to the backend.
func (t *NewTask) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.CategoryID == "" {
		return fmt.Errorf("category_id is required")
	}
	if t.Status == "" {
		return fmt.Errorf("status is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	return nil
}
