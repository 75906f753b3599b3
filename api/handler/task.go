package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskdeck/backend/api/transport"
	"github.com/taskdeck/backend/domain"
	"github.com/taskdeck/backend/pkg/httpcontext"
	"github.com/taskdeck/backend/repository"
	taskUC "github.com/taskdeck/backend/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.Service
}

func NewTaskHandler(uc *taskUC.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks [get]
func (h *TaskHandler) ListTasks(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}

	filter, err := parseListFilter(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.List(stdCtx, userID, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary List soft-deleted tasks still inside the retention window
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/deleted [get]
func (h *TaskHandler) ListDeletedTasks(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListDeleted(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}

// @Summary Get one task
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Get(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}

	var req transport.TaskCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, userID, taskUC.Draft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task fields, guarded by expected_version
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	var priority *domain.Priority
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		priority = &p
	}
	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    priority,
		DueDate:     req.DueDate,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.Update(stdCtx, userID, id, patch, req.ExpectedVersion)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Flip completion state, guarded by expected_version
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/{id}/toggle [post]
func (h *TaskHandler) ToggleTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskToggleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	toggled, err := h.uc.ToggleComplete(stdCtx, userID, id, req.ExpectedVersion)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, toggled)
}

// @Summary Soft-delete a task, guarded by expected_version
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	expectedVersion, _ := strconv.ParseInt(string(ctx.QueryArgs().Peek("expected_version")), 10, 64)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, userID, id, expectedVersion); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Restore a soft-deleted task inside the retention window
// @Tags tasks
// @Router /api/v1/users/{userId}/tasks/{id}/restore [post]
func (h *TaskHandler) RestoreTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.callerUserID(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	restored, err := h.uc.Restore(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, restored)
}

// callerUserID resolves the authenticated identity and rejects requests whose
// path userId does not match it.
func (h *TaskHandler) callerUserID(ctx *fasthttp.RequestCtx) (string, bool) {
	authenticated := string(ctx.Request.Header.Peek("X-User-ID"))
	if authenticated == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
		return "", false
	}
	pathUserID, _ := ctx.UserValue("userId").(string)
	if pathUserID != authenticated {
		h.respondError(ctx, domain.ErrUserMismatch)
		return "", false
	}
	return authenticated, true
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondError(ctx, domain.NewValidationError("id", "missing task id"))
		return "", false
	}
	return id, true
}

func parseListFilter(ctx *fasthttp.RequestCtx) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{
		Status:     string(ctx.QueryArgs().Peek("status")),
		Limit:      parseInt(string(ctx.QueryArgs().Peek("limit")), 0),
		Offset:     parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
		SortBy:     string(ctx.QueryArgs().Peek("sort")),
		Descending: string(ctx.QueryArgs().Peek("order")) == "desc",
	}

	if filter.Limit < 0 {
		return filter, domain.NewValidationError("limit", "limit must not be negative")
	}
	if filter.Offset < 0 {
		return filter, domain.NewValidationError("offset", "offset must not be negative")
	}

	switch filter.Status {
	case "", "all", "completed", "pending":
		if filter.Status == "all" {
			filter.Status = ""
		}
	default:
		return filter, domain.NewValidationError("status", "status must be completed, pending or all")
	}

	if p := string(ctx.QueryArgs().Peek("priority")); p != "" {
		priority := domain.Priority(p)
		if !priority.Valid() {
			return filter, domain.NewValidationError("priority", "priority must be low, medium or high")
		}
		filter.Priority = priority
	}

	switch filter.SortBy {
	case "", repository.SortCreatedAt, repository.SortDueDate:
	default:
		return filter, domain.NewValidationError("sort", "sort must be created_at or due_date")
	}

	if due := string(ctx.QueryArgs().Peek("due")); due != "" {
		if err := applyDueWindow(&filter, due, time.Now()); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

// applyDueWindow translates a named window into due-date bounds. Overdue means
// due strictly before now and still pending.
func applyDueWindow(filter *repository.TaskFilter, window string, now time.Time) error {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch window {
	case "today":
		end := startOfDay.AddDate(0, 0, 1)
		filter.DueAfter = &startOfDay
		filter.DueBefore = &end
	case "week":
		end := startOfDay.AddDate(0, 0, 7)
		filter.DueAfter = &startOfDay
		filter.DueBefore = &end
	case "month":
		end := startOfDay.AddDate(0, 1, 0)
		filter.DueAfter = &startOfDay
		filter.DueBefore = &end
	case "overdue":
		// Overdue implies still pending; a completed-status filter cannot
		// match anything and is rejected instead of silently overridden.
		if filter.Status == "completed" {
			return domain.NewValidationError("due", "due=overdue cannot be combined with status=completed")
		}
		filter.DueBefore = &now
		filter.Status = "pending"
	default:
		return domain.NewValidationError("due", "due must be today, week, month or overdue")
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
