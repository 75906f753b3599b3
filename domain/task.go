package domain

import "time"

// Priority levels accepted on a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Field limits enforced on create and update.
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
)

// RetentionWindow is how long a soft-deleted task stays restorable before the
// sweep may purge it permanently.
const RetentionWindow = 30 * 24 * time.Hour

// Task represents a user-owned activity item. Version is bumped by the server
// on every successful mutation and drives optimistic concurrency control.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (t *Task) IsDeleted() bool {
	return t != nil && t.DeletedAt != nil
}

// Restorable reports whether the task can still be brought back at the given
// reference time. Non-deleted tasks have nothing to restore.
func (t *Task) Restorable(reference time.Time) bool {
	if t == nil || t.DeletedAt == nil {
		return false
	}
	return reference.Sub(*t.DeletedAt) <= RetentionWindow
}

// Clone returns a deep copy; the client cache hands out and keeps copies so
// callers can never mutate cached state in place.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.DeletedAt != nil {
		del := *t.DeletedAt
		cp.DeletedAt = &del
	}
	return &cp
}

// TaskPatch carries the fields of a partial update. Nil means "leave as is".
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.DueDate == nil
}

// Apply writes the present patch fields onto the task. Version and timestamps
// are the storage layer's responsibility.
func (p TaskPatch) Apply(t *Task) {
	if t == nil {
		return
	}
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
		due := *p.DueDate
		t.DueDate = &due
	}
}
