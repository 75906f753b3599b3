package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository"
)

const taskColumns = "id, user_id, title, description, completed, priority, due_date, version, created_at, updated_at, deleted_at"

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE id = $1 AND deleted_at IS NULL
	`, taskColumns)

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, domain.ErrTaskForbidden
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var (
		conds = []string{"user_id = $1", "deleted_at IS NULL"}
		args  = []interface{}{filter.UserID}
	)

	switch filter.Status {
	case "completed":
		conds = append(conds, "completed = TRUE")
	case "pending":
		conds = append(conds, "completed = FALSE")
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		conds = append(conds, fmt.Sprintf("due_date >= $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		conds = append(conds, fmt.Sprintf("due_date < $%d", len(args)))
	}

	order := "created_at"
	if filter.SortBy == repository.SortDueDate {
		order = "due_date"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	args = append(args, clampLimit(filter.Limit), filter.Offset)
	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE %s
	ORDER BY %s %s, id ASC
	LIMIT $%d OFFSET $%d
	`, taskColumns, strings.Join(conds, " AND "), order, direction, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *taskRepository) ListDeleted(ctx context.Context, userID string, deletedAfter time.Time) ([]domain.Task, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM tasks
	WHERE user_id = $1 AND deleted_at IS NOT NULL AND deleted_at > $2
	ORDER BY deleted_at DESC, id ASC
	`, taskColumns)

	rows, err := r.pool.Query(ctx, query, userID, deletedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
	INSERT INTO tasks (id, user_id, title, description, completed, priority, due_date, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
	RETURNING %s
	`, taskColumns)

	return scanTask(r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		string(task.Priority),
		nullableTime(task.DueDate),
	))
}

func (r *taskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error) {
	query := fmt.Sprintf(`
	UPDATE tasks
	SET title       = COALESCE($4, title),
		description = COALESCE($5, description),
		completed   = COALESCE($6, completed),
		priority    = COALESCE($7, priority),
		due_date    = COALESCE($8, due_date),
		version     = version + 1,
		updated_at  = NOW()
	WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL AND version = $3
	RETURNING %s
	`, taskColumns)

	var priority *string
	if patch.Priority != nil {
		p := string(*patch.Priority)
		priority = &p
	}

	task, err := scanTask(r.pool.QueryRow(ctx, query,
		id, userID, expectedVersion,
		patch.Title,
		patch.Description,
		patch.Completed,
		priority,
		patch.DueDate,
	))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, r.diagnoseMutation(ctx, userID, id)
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Toggle(ctx context.Context, userID, id string, expectedVersion int64) (*domain.Task, error) {
	query := fmt.Sprintf(`
	UPDATE tasks
	SET completed  = NOT completed,
		version    = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL AND version = $3
	RETURNING %s
	`, taskColumns)

	task, err := scanTask(r.pool.QueryRow(ctx, query, id, userID, expectedVersion))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, r.diagnoseMutation(ctx, userID, id)
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) SoftDelete(ctx context.Context, userID, id string, expectedVersion int64) error {
	const query = `
	UPDATE tasks
	SET deleted_at = NOW(),
		version    = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL AND version = $3
	`

	tag, err := r.pool.Exec(ctx, query, id, userID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.diagnoseMutation(ctx, userID, id)
	}
	return nil
}

func (r *taskRepository) Restore(ctx context.Context, userID, id string, deletedAfter time.Time) (*domain.Task, error) {
	query := fmt.Sprintf(`
	UPDATE tasks
	SET deleted_at = NULL,
		version    = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND deleted_at IS NOT NULL AND deleted_at > $3
	RETURNING %s
	`, taskColumns)

	task, err := scanTask(r.pool.QueryRow(ctx, query, id, userID, deletedAfter))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			// Expired, purged, never deleted or foreign; all but the foreign
			// case collapse into NotFound.
			owner, ownerErr := r.lookupOwner(ctx, id)
			if ownerErr == nil && owner != userID {
				return nil, domain.ErrTaskForbidden
			}
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) PurgeExpired(ctx context.Context, deletedBefore time.Time) (int64, error) {
	const query = `DELETE FROM tasks WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	tag, err := r.pool.Exec(ctx, query, deletedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// diagnoseMutation explains why a CAS mutation matched no row. The re-read is
// advisory only; the UPDATE above remains the single authoritative check.
func (r *taskRepository) diagnoseMutation(ctx context.Context, userID, id string) error {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return err
	}
	switch {
	case task.UserID != userID:
		return domain.ErrTaskForbidden
	case task.IsDeleted():
		return domain.ErrTaskNotFound
	default:
		return domain.ErrVersionConflict
	}
}

func (r *taskRepository) lookupOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM tasks WHERE id = $1`, id).Scan(&owner)
	return owner, err
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		task     domain.Task
		priority string
		due      *time.Time
		deleted  *time.Time
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&priority,
		&due,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
		&deleted,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.DueDate = due
	task.DeletedAt = deleted
	return &task, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
