package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
)

// Field limits.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

// Priority ranks a task. The empty value means "not set" and ranks as medium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Weight orders priorities: high=3, medium=2, low=1. Unset or unknown values
// weigh as medium.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Task is a to-do item owned by exactly one user. UserID is set at creation
// from the authenticated caller and never changes.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      string     `json:"userId"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

// Apply sets the provided patch fields on t.
func (t *Task) Apply(p Patch, updatedAt time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	t.UpdatedAt = updatedAt
}

// CreateRequest holds the caller-supplied fields of a new task.
type CreateRequest struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
}

// normalize trims and validates the request, defaulting priority to medium.
func (r *CreateRequest) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(r.Title) > MaxTitleLen {
		return apperr.Validation("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(r.Description) > MaxDescriptionLen {
		return apperr.Validation("description must be at most 2000 characters")
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if !r.Priority.Valid() {
		return apperr.Validation("priority must be one of low, medium, high")
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched. ID, UserID and
// CreatedAt are not patchable.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDate     *time.Time
}

// Empty reports whether the patch sets no field.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.Priority == nil && p.DueDate == nil
}

func (p *Patch) normalize() error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return apperr.Validation("title cannot be empty")
		}
		if utf8.RuneCountInString(title) > MaxTitleLen {
			return apperr.Validation("title must be at most 200 characters")
		}
		p.Title = &title
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > MaxDescriptionLen {
		return apperr.Validation("description must be at most 2000 characters")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperr.Validation("priority must be one of low, medium, high")
	}
	return nil
}

// Page is one page of a user's filtered, sorted tasks. Total counts the
// filtered set, not the page.
type Page struct {
	Items []*Task `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
