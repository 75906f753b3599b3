package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/repository/memory"
)

func TestSweepPurgesOnlyExpiredDeletions(t *testing.T) {
	repo := memory.NewTaskRepository()
	ctx := context.Background()

	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return current })

	expired, err := repo.Create(ctx, &domain.Task{UserID: "user-1", Title: "stale"})
	require.NoError(t, err)
	recent, err := repo.Create(ctx, &domain.Task{UserID: "user-1", Title: "fresh"})
	require.NoError(t, err)
	alive, err := repo.Create(ctx, &domain.Task{UserID: "user-1", Title: "alive"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, "user-1", expired.ID, 1))

	current = current.Add(20 * 24 * time.Hour)
	require.NoError(t, repo.SoftDelete(ctx, "user-1", recent.ID, 1))

	// Eleven more days: the first deletion is now past the retention window,
	// the second is not.
	current = current.Add(11 * 24 * time.Hour)

	sweeper := New(repo, Config{Interval: time.Hour}, nil)
	sweeper.SetClock(func() time.Time { return current })

	purged, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	// The expired task is gone for good; restore cannot see it anymore.
	_, err = repo.Restore(ctx, "user-1", expired.ID, current.Add(-domain.RetentionWindow))
	require.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	// The recent deletion stays restorable and the live task untouched.
	restored, err := repo.Restore(ctx, "user-1", recent.ID, current.Add(-domain.RetentionWindow))
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)

	kept, err := repo.GetByID(ctx, "user-1", alive.ID)
	require.NoError(t, err)
	require.Equal(t, "alive", kept.Title)
}

func TestSubSecondIntervalStillSchedules(t *testing.T) {
	sweeper := New(memory.NewTaskRepository(), Config{Interval: 250 * time.Millisecond}, nil)
	require.Len(t, sweeper.cron.Entries(), 1)
	require.GreaterOrEqual(t, sweeper.cfg.Interval, time.Second)
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := memory.NewTaskRepository()
	ctx := context.Background()

	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return current })

	task, err := repo.Create(ctx, &domain.Task{UserID: "user-1", Title: "short-lived"})
	require.NoError(t, err)
	require.NoError(t, repo.SoftDelete(ctx, "user-1", task.ID, 1))
	alive, err := repo.Create(ctx, &domain.Task{UserID: "user-1", Title: "alive"})
	require.NoError(t, err)

	current = current.Add(domain.RetentionWindow + time.Hour)

	sweeper := New(repo, Config{Interval: time.Hour}, nil)
	sweeper.SetClock(func() time.Time { return current })

	purged, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	purged, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, purged)

	kept, err := repo.GetByID(ctx, "user-1", alive.ID)
	require.NoError(t, err)
	require.Equal(t, "alive", kept.Title)
}
