package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository"
)

// TaskRepository is an in-process implementation of repository.TaskRepository
// with the same CAS semantics as the Postgres one. It backs unit tests and
// single-node runs without a database.
type TaskRepository struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	now   func() time.Time
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Tests use it to move past the
// retention window.
func (r *TaskRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *TaskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.IsDeleted() {
		return nil, domain.ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, domain.ErrTaskForbidden
	}
	return task.Clone(), nil
}

func (r *TaskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Task
	for _, task := range r.tasks {
		if task.UserID != filter.UserID || task.IsDeleted() {
			continue
		}
		if filter.Status == "completed" && !task.Completed {
			continue
		}
		if filter.Status == "pending" && task.Completed {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		if filter.DueAfter != nil && (task.DueDate == nil || task.DueDate.Before(*filter.DueAfter)) {
			continue
		}
		if filter.DueBefore != nil && (task.DueDate == nil || !task.DueDate.Before(*filter.DueBefore)) {
			continue
		}
		matched = append(matched, task)
	}

	sortTasks(matched, filter)

	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]domain.Task, 0, len(matched))
	for _, task := range matched {
		out = append(out, *task.Clone())
	}
	return out, nil
}

func (r *TaskRepository) ListDeleted(ctx context.Context, userID string, deletedAfter time.Time) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Task
	for _, task := range r.tasks {
		if task.UserID != userID || !task.IsDeleted() {
			continue
		}
		if !task.DeletedAt.After(deletedAfter) {
			continue
		}
		matched = append(matched, task)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DeletedAt.Equal(*matched[j].DeletedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].DeletedAt.After(*matched[j].DeletedAt)
	})

	out := make([]domain.Task, 0, len(matched))
	for _, task := range matched {
		out = append(out, *task.Clone())
	}
	return out, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := task.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := r.now()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.DeletedAt = nil

	r.tasks[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *TaskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.lockedMutable(userID, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	patch.Apply(task)
	task.Version++
	task.UpdatedAt = r.now()
	return task.Clone(), nil
}

func (r *TaskRepository) Toggle(ctx context.Context, userID, id string, expectedVersion int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.lockedMutable(userID, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	task.Completed = !task.Completed
	task.Version++
	task.UpdatedAt = r.now()
	return task.Clone(), nil
}

func (r *TaskRepository) SoftDelete(ctx context.Context, userID, id string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.lockedMutable(userID, id, expectedVersion)
	if err != nil {
		return err
	}

	now := r.now()
	task.DeletedAt = &now
	task.Version++
	task.UpdatedAt = now
	return nil
}

func (r *TaskRepository) Restore(ctx context.Context, userID, id string, deletedAfter time.Time) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, domain.ErrTaskForbidden
	}
	if !task.IsDeleted() || !task.DeletedAt.After(deletedAfter) {
		return nil, domain.ErrTaskNotFound
	}

	task.DeletedAt = nil
	task.Version++
	task.UpdatedAt = r.now()
	return task.Clone(), nil
}

func (r *TaskRepository) PurgeExpired(ctx context.Context, deletedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, task := range r.tasks {
		if task.IsDeleted() && task.DeletedAt.Before(deletedBefore) {
			delete(r.tasks, id)
			purged++
		}
	}
	return purged, nil
}

// lockedMutable resolves the target of a CAS mutation; the caller holds r.mu,
// so the compare and the write are atomic.
func (r *TaskRepository) lockedMutable(userID, id string, expectedVersion int64) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, domain.ErrTaskForbidden
	}
	if task.IsDeleted() {
		return nil, domain.ErrTaskNotFound
	}
	if task.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	return task, nil
}

func sortTasks(tasks []*domain.Task, filter repository.TaskFilter) {
	less := func(i, j *domain.Task) bool {
		if filter.SortBy == repository.SortDueDate {
			switch {
			case i.DueDate == nil && j.DueDate == nil:
			case i.DueDate == nil:
				return false
			case j.DueDate == nil:
				return true
			case !i.DueDate.Equal(*j.DueDate):
				return i.DueDate.Before(*j.DueDate)
			}
		} else if !i.CreatedAt.Equal(j.CreatedAt) {
			return i.CreatedAt.Before(j.CreatedAt)
		}
		return i.ID < j.ID
	}
	sort.Slice(tasks, func(i, j int) bool {
		if filter.Descending {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}
