package client

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskdeck/backend/api/transport"
	"github.com/taskdeck/backend/domain"
)

// Draft carries the user-supplied fields of a new task.
type Draft struct {
	Title       string
	Description string
	Priority    domain.Priority
	DueDate     *time.Time
}

// TaskStore is an optimistic write-through cache over a Gateway. Reads are
// served from memory; mutations apply locally first, then confirm against the
// server in per-task FIFO order. A failed mutation rolls the cached task back
// to its pre-mutation snapshot, a conflicting one re-fetches the server's
// latest state so the cache converges instead of guessing.
type TaskStore struct {
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	tasks map[string]*domain.Task
	// gen is bumped by Refresh; a mutation settled under an older generation
	// must not touch the cache, its optimistic state was already replaced.
	gen uint64

	qmu    sync.Mutex
	queues map[string][]func(id string)
	// aliases maps a provisional create id to the canonical id the server
	// assigned, so mutations queued behind a pending create dispatch against
	// the real task instead of the temp entry.
	aliases map[string]string
}

func NewTaskStore(gateway Gateway, logger *zap.Logger) *TaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskStore{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
		tasks:   make(map[string]*domain.Task),
		queues:  make(map[string][]func(id string)),
		aliases: make(map[string]string),
	}
}

// SetClock overrides the time source. Test hook.
func (s *TaskStore) SetClock(now func() time.Time) {
	s.now = now
}

// ListCached returns the visible tasks from memory without touching the
// network. Soft-deleted entries are hidden.
func (s *TaskStore) ListCached() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

// Refresh replaces the cache with the server's task list. On transport
// failure it fails soft: the stale cache is kept and returned alongside the
// error so the caller can keep rendering.
func (s *TaskStore) Refresh(ctx context.Context, query ListQuery) ([]domain.Task, error) {
	tasks, err := s.gateway.List(ctx, query)
	if err != nil {
		s.logger.Warn("task refresh failed, serving cached state", zap.Error(err))
		return s.ListCached(), err
	}

	s.mu.Lock()
	s.gen++
	s.tasks = make(map[string]*domain.Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		s.tasks[t.ID] = t.Clone()
	}
	visible := s.visibleLocked()
	s.mu.Unlock()

	return visible, nil
}

// Create inserts the draft into the cache under a provisional ID and confirms
// it with the server in the background. On success the provisional entry is
// replaced by the canonical task; on failure it is removed so no orphan
// lingers.
func (s *TaskStore) Create(ctx context.Context, draft Draft) *Mutation {
	tempID := "pending-" + uuid.NewString()
	m := newMutation(tempID)

	now := s.now()
	optimistic := &domain.Task{
		ID:          tempID,
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if optimistic.Priority == "" {
		optimistic.Priority = domain.PriorityMedium
	}

	s.mu.Lock()
	s.tasks[tempID] = optimistic
	gen := s.gen
	s.mu.Unlock()

	req := transport.TaskCreateRequest{
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    string(draft.Priority),
		DueDate:     draft.DueDate,
	}

	s.enqueue(tempID, func(string) {
		canonical, err := s.gateway.Create(ctx, req)

		if err == nil && canonical != nil {
			s.qmu.Lock()
			s.aliases[tempID] = canonical.ID
			s.qmu.Unlock()
		}

		s.mu.Lock()
		if gen == s.gen {
			delete(s.tasks, tempID)
			if err == nil && canonical != nil {
				s.tasks[canonical.ID] = canonical.Clone()
			}
		}
		s.mu.Unlock()

		m.settle(canonical, err)
	})
	return m
}

// Update applies the patch to the cached task immediately and confirms it
// against the server using the last confirmed version.
func (s *TaskStore) Update(ctx context.Context, id string, patch domain.TaskPatch) *Mutation {
	m := newMutation(id)

	s.mu.Lock()
	cached, ok := s.tasks[id]
	if !ok || cached.IsDeleted() {
		s.mu.Unlock()
		m.settle(nil, domain.ErrTaskNotFound)
		return m
	}
	snapshot := cached.Clone()
	patch.Apply(cached)
	gen := s.gen
	s.mu.Unlock()

	s.enqueue(id, func(taskID string) {
		canonical, err := s.gateway.Update(ctx, taskID, patch, s.confirmedVersion(taskID, snapshot.Version))
		s.reconcile(ctx, m, taskID, snapshot, gen, canonical, err, false)
	})
	return m
}

// ToggleComplete flips the cached completion flag and confirms the toggle with
// the server.
func (s *TaskStore) ToggleComplete(ctx context.Context, id string) *Mutation {
	m := newMutation(id)

	s.mu.Lock()
	cached, ok := s.tasks[id]
	if !ok || cached.IsDeleted() {
		s.mu.Unlock()
		m.settle(nil, domain.ErrTaskNotFound)
		return m
	}
	snapshot := cached.Clone()
	cached.Completed = !cached.Completed
	gen := s.gen
	s.mu.Unlock()

	s.enqueue(id, func(taskID string) {
		canonical, err := s.gateway.Toggle(ctx, taskID, s.confirmedVersion(taskID, snapshot.Version))
		s.reconcile(ctx, m, taskID, snapshot, gen, canonical, err, false)
	})
	return m
}

// Delete hides the task from the cache immediately and confirms the soft
// delete with the server.
func (s *TaskStore) Delete(ctx context.Context, id string) *Mutation {
	m := newMutation(id)

	s.mu.Lock()
	cached, ok := s.tasks[id]
	if !ok || cached.IsDeleted() {
		s.mu.Unlock()
		m.settle(nil, domain.ErrTaskNotFound)
		return m
	}
	snapshot := cached.Clone()
	deletedAt := s.now()
	cached.DeletedAt = &deletedAt
	gen := s.gen
	s.mu.Unlock()

	s.enqueue(id, func(taskID string) {
		err := s.gateway.Delete(ctx, taskID, s.confirmedVersion(taskID, snapshot.Version))
		s.reconcile(ctx, m, taskID, snapshot, gen, nil, err, true)
	})
	return m
}

// enqueue appends the job to the task's FIFO queue, spawning a drain goroutine
// if none is running. Mutations on distinct tasks proceed concurrently,
// mutations on the same task strictly in submission order.
func (s *TaskStore) enqueue(id string, job func(id string)) {
	s.qmu.Lock()
	queue, active := s.queues[id]
	s.queues[id] = append(queue, job)
	s.qmu.Unlock()

	if !active {
		go s.drain(id)
	}
}

// drain runs the queue keyed by the submission-time id. Each job receives the
// id resolved at dispatch time: once a pending create settles, the alias
// redirects the jobs queued behind it to the server-assigned task.
func (s *TaskStore) drain(key string) {
	for {
		s.qmu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			delete(s.aliases, key)
			s.qmu.Unlock()
			return
		}
		job := queue[0]
		s.queues[key] = queue[1:]
		id := key
		if canonical, ok := s.aliases[key]; ok {
			id = canonical
		}
		s.qmu.Unlock()

		job(id)
	}
}

// confirmedVersion reads the last server-confirmed version of the task.
// Optimistic applies never touch Version, so a queued mutation picks up the
// version its predecessor confirmed.
func (s *TaskStore) confirmedVersion(id string, fallback int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.tasks[id]; ok && cached.Version > 0 {
		return cached.Version
	}
	return fallback
}

// reconcile settles a mutation against the cache. Success installs the
// canonical task (or drops the entry for a delete). A version conflict
// re-fetches the server's latest state so the cache shows what actually won.
// Any other failure restores the pre-mutation snapshot. Cache writes are
// skipped entirely when a Refresh superseded this mutation's generation.
func (s *TaskStore) reconcile(ctx context.Context, m *Mutation, id string, snapshot *domain.Task, gen uint64, canonical *domain.Task, err error, removeOnSuccess bool) {
	s.mu.Lock()
	fresh := gen == s.gen

	switch {
	case err == nil:
		if fresh {
			if removeOnSuccess {
				delete(s.tasks, id)
			} else if canonical != nil {
				s.tasks[id] = canonical.Clone()
			}
		}
		s.mu.Unlock()

	case domain.IsDomainError(err, domain.ErrCodeConflict):
		s.mu.Unlock()
		latest, getErr := s.gateway.Get(ctx, id)
		s.mu.Lock()
		if gen == s.gen {
			switch {
			case getErr == nil && !latest.IsDeleted():
				s.tasks[id] = latest.Clone()
			case getErr == nil || domain.IsDomainError(getErr, domain.ErrCodeNotFound):
				delete(s.tasks, id)
			case snapshot.ID == id:
				s.tasks[id] = snapshot.Clone()
			}
		}
		s.mu.Unlock()

	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		if fresh {
			delete(s.tasks, id)
		}
		s.mu.Unlock()

	default:
		// A snapshot taken under a provisional id must not clobber the
		// canonical entry the settled create installed.
		if fresh && snapshot.ID == id {
			s.tasks[id] = snapshot.Clone()
		}
		s.mu.Unlock()
	}

	m.settle(canonical, err)
}

func (s *TaskStore) visibleLocked() []domain.Task {
	visible := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.IsDeleted() {
			continue
		}
		visible = append(visible, *t.Clone())
	}
	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible
}
