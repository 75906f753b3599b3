package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskdeck/backend/api/transport"
	"github.com/taskdeck/backend/domain"
)

type fakeGateway struct {
	mu sync.Mutex

	listTasks []domain.Task
	listErr   error

	createFn  func(req transport.TaskCreateRequest) (*domain.Task, error)
	updateFn  func(id string, patch domain.TaskPatch, version int64) (*domain.Task, error)
	toggleFn  func(id string, version int64) (*domain.Task, error)
	deleteFn  func(id string, version int64) error
	getFn     func(id string) (*domain.Task, error)
	restoreFn func(id string) (*domain.Task, error)
}

func (g *fakeGateway) List(ctx context.Context, query ListQuery) ([]domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]domain.Task, len(g.listTasks))
	copy(out, g.listTasks)
	return out, nil
}

func (g *fakeGateway) Get(ctx context.Context, id string) (*domain.Task, error) {
	if g.getFn == nil {
		return nil, domain.ErrTaskNotFound
	}
	return g.getFn(id)
}

func (g *fakeGateway) Create(ctx context.Context, req transport.TaskCreateRequest) (*domain.Task, error) {
	return g.createFn(req)
}

func (g *fakeGateway) Update(ctx context.Context, id string, patch domain.TaskPatch, version int64) (*domain.Task, error) {
	return g.updateFn(id, patch, version)
}

func (g *fakeGateway) Toggle(ctx context.Context, id string, version int64) (*domain.Task, error) {
	return g.toggleFn(id, version)
}

func (g *fakeGateway) Delete(ctx context.Context, id string, version int64) error {
	return g.deleteFn(id, version)
}

func (g *fakeGateway) Restore(ctx context.Context, id string) (*domain.Task, error) {
	return g.restoreFn(id)
}

func serverTask(id, title string, version int64) domain.Task {
	created := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	return domain.Task{
		ID:        id,
		UserID:    "user-1",
		Title:     title,
		Priority:  domain.PriorityMedium,
		Version:   version,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func seededStore(t *testing.T, gw *fakeGateway, tasks ...domain.Task) *TaskStore {
	t.Helper()
	gw.listTasks = tasks
	store := NewTaskStore(gw, nil)
	_, err := store.Refresh(context.Background(), ListQuery{})
	require.NoError(t, err)
	return store
}

func settle(t *testing.T, m *Mutation) Result {
	t.Helper()
	select {
	case res := <-m.Done():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not settle")
		return Result{}
	}
}

func TestRefreshPopulatesCache(t *testing.T) {
	gw := &fakeGateway{}
	store := seededStore(t, gw,
		serverTask("t1", "first", 1),
		serverTask("t2", "second", 3),
	)

	cached := store.ListCached()
	require.Len(t, cached, 2)
	require.Equal(t, "t1", cached[0].ID)
	require.Equal(t, int64(3), cached[1].Version)
}

func TestRefreshFailsSoft(t *testing.T) {
	gw := &fakeGateway{}
	store := seededStore(t, gw, serverTask("t1", "survivor", 1))

	gw.mu.Lock()
	gw.listErr = domain.NewError(domain.ErrCodeUnavailable, "down")
	gw.mu.Unlock()

	cached, err := store.Refresh(context.Background(), ListQuery{})
	require.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	require.Len(t, cached, 1)
	require.Equal(t, "survivor", cached[0].Title)
}

func TestCreateShowsOptimisticEntryThenCanonical(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{}
	gw.createFn = func(req transport.TaskCreateRequest) (*domain.Task, error) {
		<-release
		canonical := serverTask("server-id", req.Title, 1)
		return &canonical, nil
	}
	store := seededStore(t, gw)

	m := store.Create(context.Background(), Draft{Title: "new task"})

	require.Equal(t, StatePending, m.State())
	cached := store.ListCached()
	require.Len(t, cached, 1)
	require.Equal(t, "new task", cached[0].Title)
	require.Zero(t, cached[0].Version)

	close(release)
	res := settle(t, m)
	require.NoError(t, res.Err)
	require.Equal(t, StateConfirmed, m.State())
	require.Equal(t, "server-id", res.Task.ID)

	cached = store.ListCached()
	require.Len(t, cached, 1)
	require.Equal(t, "server-id", cached[0].ID)
	require.Equal(t, int64(1), cached[0].Version)
}

func TestFailedCreateLeavesNoOrphan(t *testing.T) {
	gw := &fakeGateway{}
	gw.createFn = func(req transport.TaskCreateRequest) (*domain.Task, error) {
		return nil, domain.NewValidationError("title", "title is required")
	}
	store := seededStore(t, gw)

	m := store.Create(context.Background(), Draft{Title: "   "})
	res := settle(t, m)

	require.True(t, domain.IsDomainError(res.Err, domain.ErrCodeInvalid))
	require.Equal(t, StateFailed, m.State())
	require.Empty(t, store.ListCached())
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	gw := &fakeGateway{}
	gw.updateFn = func(id string, patch domain.TaskPatch, version int64) (*domain.Task, error) {
		return nil, domain.NewError(domain.ErrCodeUnavailable, "storage down")
	}
	store := seededStore(t, gw, serverTask("t1", "original", 3))

	m := store.Update(context.Background(), "t1", domain.TaskPatch{Title: strPtr("hopeful")})
	res := settle(t, m)

	require.True(t, domain.IsDomainError(res.Err, domain.ErrCodeUnavailable))
	cached := store.ListCached()
	require.Len(t, cached, 1)
	require.Equal(t, "original", cached[0].Title)
	require.Equal(t, int64(3), cached[0].Version)
}

func TestConflictReloadsServerState(t *testing.T) {
	gw := &fakeGateway{}
	gw.deleteFn = func(id string, version int64) error {
		return domain.ErrVersionConflict
	}
	gw.getFn = func(id string) (*domain.Task, error) {
		latest := serverTask(id, "server wins", 5)
		return &latest, nil
	}
	store := seededStore(t, gw, serverTask("t1", "stale local", 2))

	m := store.Delete(context.Background(), "t1")
	res := settle(t, m)

	require.True(t, domain.IsDomainError(res.Err, domain.ErrCodeConflict))
	cached := store.ListCached()
	require.Len(t, cached, 1)
	require.Equal(t, "server wins", cached[0].Title)
	require.Equal(t, int64(5), cached[0].Version)
}

func TestDeleteRemovesFromCacheImmediately(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{}
	gw.deleteFn = func(id string, version int64) error {
		<-release
		return nil
	}
	store := seededStore(t, gw, serverTask("t1", "doomed", 1))

	m := store.Delete(context.Background(), "t1")
	require.Empty(t, store.ListCached())

	close(release)
	res := settle(t, m)
	require.NoError(t, res.Err)
	require.Empty(t, store.ListCached())
}

func TestSameTaskMutationsChainVersions(t *testing.T) {
	var (
		mu       sync.Mutex
		versions []int64
	)
	gw := &fakeGateway{}
	gw.updateFn = func(id string, patch domain.TaskPatch, version int64) (*domain.Task, error) {
		mu.Lock()
		versions = append(versions, version)
		mu.Unlock()
		canonical := serverTask(id, *patch.Title, version+1)
		return &canonical, nil
	}
	store := seededStore(t, gw, serverTask("t1", "v1", 1))

	first := store.Update(context.Background(), "t1", domain.TaskPatch{Title: strPtr("second")})
	second := store.Update(context.Background(), "t1", domain.TaskPatch{Title: strPtr("third")})

	require.NoError(t, settle(t, first).Err)
	require.NoError(t, settle(t, second).Err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int64{1, 2}, versions)

	cached := store.ListCached()
	require.Equal(t, "third", cached[0].Title)
	require.Equal(t, int64(3), cached[0].Version)
}

func TestMutationQueuedBehindPendingCreate(t *testing.T) {
	release := make(chan struct{})
	var (
		mu         sync.Mutex
		toggledID  string
		toggledVer int64
	)
	gw := &fakeGateway{}
	gw.createFn = func(req transport.TaskCreateRequest) (*domain.Task, error) {
		<-release
		canonical := serverTask("server-id", req.Title, 1)
		return &canonical, nil
	}
	gw.toggleFn = func(id string, version int64) (*domain.Task, error) {
		mu.Lock()
		toggledID, toggledVer = id, version
		mu.Unlock()
		if id != "server-id" || version != 1 {
			return nil, domain.ErrTaskNotFound
		}
		canonical := serverTask(id, "new task", version+1)
		canonical.Completed = true
		return &canonical, nil
	}
	store := seededStore(t, gw)

	created := store.Create(context.Background(), Draft{Title: "new task"})
	toggled := store.ToggleComplete(context.Background(), created.TaskID)

	close(release)
	require.NoError(t, settle(t, created).Err)
	res := settle(t, toggled)
	require.NoError(t, res.Err)
	require.True(t, res.Task.Completed)

	// The toggle went out against the server-assigned id and version, not the
	// provisional ones it was submitted with.
	mu.Lock()
	require.Equal(t, "server-id", toggledID)
	require.Equal(t, int64(1), toggledVer)
	mu.Unlock()

	cached := store.ListCached()
	require.Len(t, cached, 1)
	require.Equal(t, "server-id", cached[0].ID)
	require.Equal(t, int64(2), cached[0].Version)
	require.True(t, cached[0].Completed)
}

func TestRefreshSupersedesInflightMutation(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{}
	gw.updateFn = func(id string, patch domain.TaskPatch, version int64) (*domain.Task, error) {
		<-release
		canonical := serverTask(id, *patch.Title, version+1)
		return &canonical, nil
	}
	store := seededStore(t, gw, serverTask("t1", "old", 1))

	m := store.Update(context.Background(), "t1", domain.TaskPatch{Title: strPtr("mine")})

	gw.mu.Lock()
	gw.listTasks = []domain.Task{serverTask("t1", "refreshed", 4)}
	gw.mu.Unlock()
	_, err := store.Refresh(context.Background(), ListQuery{})
	require.NoError(t, err)

	close(release)
	res := settle(t, m)
	require.NoError(t, res.Err)
	require.Equal(t, "mine", res.Task.Title)

	// The refresh owns the cache now; the settled mutation must not clobber it.
	cached := store.ListCached()
	require.Equal(t, "refreshed", cached[0].Title)
	require.Equal(t, int64(4), cached[0].Version)
}

func TestMutatingUnknownTaskFailsFast(t *testing.T) {
	gw := &fakeGateway{}
	store := seededStore(t, gw)

	res := settle(t, store.Update(context.Background(), "ghost", domain.TaskPatch{Title: strPtr("x")}))
	require.True(t, domain.IsDomainError(res.Err, domain.ErrCodeNotFound))

	res = settle(t, store.Delete(context.Background(), "ghost"))
	require.True(t, domain.IsDomainError(res.Err, domain.ErrCodeNotFound))
}

func strPtr(s string) *string { return &s }
