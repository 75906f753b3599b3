package task

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository"
)

const (
	// Storage calls are retried this many times in total before the failure
	// surfaces as UNAVAILABLE. Domain errors are never retried.
	storageAttempts = 3
	retryBaseDelay  = 50 * time.Millisecond
)

// Service is the sole authority on task state: it validates input, scopes
// every operation to the owning user and threads the expected version through
// each mutating call.
type Service struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
	now    func() time.Time
}

func New(tasks repository.TaskRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:  tasks,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source; tests move it past the retention window.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Draft is the caller-supplied portion of a new task.
type Draft struct {
	Title       string
	Description string
	Priority    domain.Priority
	DueDate     *time.Time
}

func (s *Service) Create(ctx context.Context, userID string, draft Draft) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Priority == "" {
		draft.Priority = domain.PriorityMedium
	}
	if err := validateTitle(draft.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(draft.Description); err != nil {
		return nil, err
	}
	if !draft.Priority.Valid() {
		return nil, domain.NewValidationError("priority", "priority must be low, medium or high")
	}

	task := &domain.Task{
		UserID:      userID,
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
	}

	var created *domain.Task
	err := s.withRetry(ctx, "create", func(ctx context.Context) error {
		var err error
		created, err = s.tasks.Create(ctx, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		zap.String("task_id", created.ID),
		zap.String("user_id", userID))
	return created, nil
}

func (s *Service) List(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	filter.UserID = userID

	var tasks []domain.Task
	err := s.withRetry(ctx, "list", func(ctx context.Context) error {
		var err error
		tasks, err = s.tasks.List(ctx, filter)
		return err
	})
	return tasks, err
}

// ListDeleted returns soft-deleted tasks still inside the retention window.
func (s *Service) ListDeleted(ctx context.Context, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	var tasks []domain.Task
	err := s.withRetry(ctx, "list_deleted", func(ctx context.Context) error {
		var err error
		tasks, err = s.tasks.ListDeleted(ctx, userID, s.retentionCutoff())
		return err
	})
	return tasks, err
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	var task *domain.Task
	err := s.withRetry(ctx, "get", func(ctx context.Context) error {
		var err error
		task, err = s.tasks.GetByID(ctx, userID, id)
		return err
	})
	return task, err
}

func (s *Service) Update(ctx context.Context, userID, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validateVersion(expectedVersion); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("patch", "no fields to update")
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if err := validateTitle(trimmed); err != nil {
			return nil, err
		}
		patch.Title = &trimmed
	}
	if patch.Description != nil {
		if err := validateDescription(*patch.Description); err != nil {
			return nil, err
		}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, domain.NewValidationError("priority", "priority must be low, medium or high")
	}

	var task *domain.Task
	err := s.withRetry(ctx, "update", func(ctx context.Context) error {
		var err error
		task, err = s.tasks.Update(ctx, userID, id, patch, expectedVersion)
		return err
	})
	return task, err
}

func (s *Service) ToggleComplete(ctx context.Context, userID, id string, expectedVersion int64) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validateVersion(expectedVersion); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := s.withRetry(ctx, "toggle", func(ctx context.Context) error {
		var err error
		task, err = s.tasks.Toggle(ctx, userID, id, expectedVersion)
		return err
	})
	return task, err
}

// Delete soft-deletes; the row stays restorable for the retention window.
func (s *Service) Delete(ctx context.Context, userID, id string, expectedVersion int64) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if err := validateVersion(expectedVersion); err != nil {
		return err
	}

	err := s.withRetry(ctx, "delete", func(ctx context.Context) error {
		return s.tasks.SoftDelete(ctx, userID, id, expectedVersion)
	})
	if err == nil {
		s.logger.Info("task soft-deleted",
			zap.String("task_id", id),
			zap.String("user_id", userID))
	}
	return err
}

// Restore clears deleted_at within the retention window; past it the task
// reads as purged and the call reports NotFound.
func (s *Service) Restore(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	var task *domain.Task
	err := s.withRetry(ctx, "restore", func(ctx context.Context) error {
		var err error
		task, err = s.tasks.Restore(ctx, userID, id, s.retentionCutoff())
		return err
	})
	return task, err
}

func (s *Service) retentionCutoff() time.Time {
	return s.now().Add(-domain.RetentionWindow)
}

// withRetry runs op with bounded exponential backoff. Domain errors
// (conflict, not found, validation, …) are terminal; only raw storage errors
// retry, and exhaustion maps to UNAVAILABLE.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(storageAttempts-1, retry.NewExponential(retryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if _, ok := domain.AsDomainError(err); ok {
			return err
		}
		s.logger.Warn("task storage call failed, retrying",
			zap.String("operation", op),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if _, ok := domain.AsDomainError(err); ok {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, "task storage unavailable", err)
}

func validateTitle(title string) error {
	if title == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if len([]rune(title)) > domain.TitleMaxLen {
		return domain.NewValidationError("title", "title exceeds 200 characters")
	}
	return nil
}

func validateDescription(description string) error {
	if len([]rune(description)) > domain.DescriptionMaxLen {
		return domain.NewValidationError("description", "description exceeds 1000 characters")
	}
	return nil
}

func validateVersion(version int64) error {
	if version < 1 {
		return domain.NewValidationError("expected_version", "expected_version is required")
	}
	return nil
}
