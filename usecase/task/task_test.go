package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository"
	"github.com/taskdeck/backend/repository/memory"
)

const (
	ownerID    = "user-1"
	intruderID = "user-2"
)

func newService(t *testing.T) (*Service, *memory.TaskRepository) {
	t.Helper()
	repo := memory.NewTaskRepository()
	return New(repo, nil), repo
}

func mustCreate(t *testing.T, svc *Service, userID, title string) *domain.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), userID, Draft{Title: title})
	require.NoError(t, err)
	return task
}

func strPtr(s string) *string { return &s }

func TestCreateAssignsInitialVersion(t *testing.T) {
	svc, _ := newService(t)

	task, err := svc.Create(context.Background(), ownerID, Draft{Title: "  buy milk  "})
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	require.Equal(t, int64(1), task.Version)
	require.Equal(t, "buy milk", task.Title)
	require.Equal(t, domain.PriorityMedium, task.Priority)
	require.False(t, task.Completed)
	require.Nil(t, task.DeletedAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"empty title", Draft{Title: "   "}, "title"},
		{"title too long", Draft{Title: strings.Repeat("x", domain.TitleMaxLen+1)}, "title"},
		{"description too long", Draft{Title: "ok", Description: strings.Repeat("x", domain.DescriptionMaxLen+1)}, "description"},
		{"bad priority", Draft{Title: "ok", Priority: "urgent"}, "priority"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, ownerID, tc.draft)
			require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
			dErr, ok := domain.AsDomainError(err)
			require.True(t, ok)
			require.Equal(t, tc.field, dErr.Field)
		})
	}
}

func TestMutationsBumpVersion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task := mustCreate(t, svc, ownerID, "write report")

	updated, err := svc.Update(ctx, ownerID, task.ID, domain.TaskPatch{Title: strPtr("write Q3 report")}, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)
	require.Equal(t, "write Q3 report", updated.Title)

	toggled, err := svc.ToggleComplete(ctx, ownerID, task.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), toggled.Version)
	require.True(t, toggled.Completed)

	toggled, err = svc.ToggleComplete(ctx, ownerID, task.ID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(4), toggled.Version)
	require.False(t, toggled.Completed)
}

func TestConcurrentUpdateLosesWithConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task := mustCreate(t, svc, ownerID, "original")

	first, err := svc.Update(ctx, ownerID, task.ID, domain.TaskPatch{Title: strPtr("first writer")}, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), first.Version)

	// Second writer still holds version 1.
	_, err = svc.Update(ctx, ownerID, task.ID, domain.TaskPatch{Title: strPtr("second writer")}, 1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))

	current, err := svc.Get(ctx, ownerID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "first writer", current.Title)
	require.Equal(t, int64(2), current.Version)
}

func TestCrossUserAccessForbidden(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task := mustCreate(t, svc, ownerID, "private")

	_, err := svc.Get(ctx, intruderID, task.ID)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	_, err = svc.Update(ctx, intruderID, task.ID, domain.TaskPatch{Title: strPtr("stolen")}, 1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	err = svc.Delete(ctx, intruderID, task.ID, 1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeForbidden))

	// The owner's view is untouched.
	current, err := svc.Get(ctx, ownerID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "private", current.Title)
	require.Equal(t, int64(1), current.Version)
}

func TestListScopedToUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	mustCreate(t, svc, ownerID, "mine")
	mustCreate(t, svc, intruderID, "theirs")

	tasks, err := svc.List(ctx, ownerID, repository.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "mine", tasks[0].Title)
}

func TestDeleteRestoreRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task := mustCreate(t, svc, ownerID, "keep me")
	_, err := svc.ToggleComplete(ctx, ownerID, task.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ownerID, task.ID, 2))

	_, err = svc.Get(ctx, ownerID, task.ID)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	deleted, err := svc.ListDeleted(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, task.ID, deleted[0].ID)

	restored, err := svc.Restore(ctx, ownerID, task.ID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)
	require.True(t, restored.Completed)
	require.Equal(t, int64(4), restored.Version)

	current, err := svc.Get(ctx, ownerID, task.ID)
	require.NoError(t, err)
	require.Equal(t, restored.Version, current.Version)
}

func TestRestoreRejectedPastRetentionWindow(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	svc.SetClock(clock)
	repo.SetClock(clock)

	task := mustCreate(t, svc, ownerID, "short-lived")
	require.NoError(t, svc.Delete(ctx, ownerID, task.ID, 1))

	current = current.Add(domain.RetentionWindow + time.Hour)

	deleted, err := svc.ListDeleted(ctx, ownerID)
	require.NoError(t, err)
	require.Empty(t, deleted)

	_, err = svc.Restore(ctx, ownerID, task.ID)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestRestoreWithinWindowAfterMove(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	svc.SetClock(clock)
	repo.SetClock(clock)

	task := mustCreate(t, svc, ownerID, "still here")
	require.NoError(t, svc.Delete(ctx, ownerID, task.ID, 1))

	current = current.Add(29 * 24 * time.Hour)

	restored, err := svc.Restore(ctx, ownerID, task.ID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)
}

func TestMutationRequiresExpectedVersion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task := mustCreate(t, svc, ownerID, "versioned")

	_, err := svc.Update(ctx, ownerID, task.ID, domain.TaskPatch{Title: strPtr("x")}, 0)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = svc.ToggleComplete(ctx, ownerID, task.ID, -1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	err = svc.Delete(ctx, ownerID, task.ID, 0)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestUpdateEmptyPatchRejected(t *testing.T) {
	svc, _ := newService(t)

	task := mustCreate(t, svc, ownerID, "untouched")

	_, err := svc.Update(context.Background(), ownerID, task.ID, domain.TaskPatch{}, 1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

// brokenRepo fails every Create with a raw storage error.
type brokenRepo struct {
	*memory.TaskRepository
	calls int
}

func (r *brokenRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	r.calls++
	return nil, errors.New("connection reset")
}

func TestStorageOutageSurfacesAsUnavailable(t *testing.T) {
	repo := &brokenRepo{TaskRepository: memory.NewTaskRepository()}
	svc := New(repo, nil)

	_, err := svc.Create(context.Background(), ownerID, Draft{Title: "doomed"})
	require.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	require.Equal(t, 3, repo.calls)
}

// conflictingRepo always reports a version conflict; the service must not
// retry it.
type conflictingRepo struct {
	*memory.TaskRepository
	calls int
}

func (r *conflictingRepo) Toggle(ctx context.Context, userID, id string, expectedVersion int64) (*domain.Task, error) {
	r.calls++
	return nil, domain.ErrVersionConflict
}

func TestDomainErrorsAreNotRetried(t *testing.T) {
	repo := &conflictingRepo{TaskRepository: memory.NewTaskRepository()}
	svc := New(repo, nil)

	_, err := svc.ToggleComplete(context.Background(), ownerID, "some-task", 1)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	require.Equal(t, 1, repo.calls)
}
