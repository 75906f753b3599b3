package repository

import (
	"context"
	"time"

	"github.com/taskdeck/backend/domain"
)

// Sort fields accepted by TaskFilter.
const (
	SortCreatedAt = "created_at"
	SortDueDate   = "due_date"
)

// TaskFilter narrows a listing. Zero values mean "no constraint"; ordering
// defaults to created_at ascending.
type TaskFilter struct {
	UserID     string
	Status     string // "completed", "pending" or "" for all
	Priority   domain.Priority
	DueAfter   *time.Time
	DueBefore  *time.Time
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// TaskRepository is the canonical task store. Every versioned mutation
// (Update, Toggle, SoftDelete) is an atomic compare-and-swap: the stored
// version must equal expectedVersion or the call fails with ErrVersionConflict
// (ErrTaskNotFound / ErrTaskForbidden when the row is missing or foreign).
type TaskRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	ListDeleted(ctx context.Context, userID string, deletedAfter time.Time) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, userID, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error)
	Toggle(ctx context.Context, userID, id string, expectedVersion int64) (*domain.Task, error)
	SoftDelete(ctx context.Context, userID, id string, expectedVersion int64) error
	Restore(ctx context.Context, userID, id string, deletedAfter time.Time) (*domain.Task, error)
	PurgeExpired(ctx context.Context, deletedBefore time.Time) (int64, error)
}
