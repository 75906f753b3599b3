package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskdeck/backend/api/transport"
	"github.com/taskdeck/backend/domain"
)

// ListQuery mirrors the task list query parameters.
type ListQuery struct {
	Status   string // completed, pending or all
	Priority string
	Due      string // today, week, month, overdue
	Sort     string
	Order    string
}

// Gateway is the RPC boundary between application intents and the task API.
// Implementations carry the session's bearer token on every call.
type Gateway interface {
	List(ctx context.Context, query ListQuery) ([]domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, draft transport.TaskCreateRequest) (*domain.Task, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error)
	Toggle(ctx context.Context, id string, expectedVersion int64) (*domain.Task, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
	Restore(ctx context.Context, id string) (*domain.Task, error)
}

// HTTPGateway talks to the task service over HTTP.
type HTTPGateway struct {
	baseURL string
	session Session
	http    *fasthttp.Client
	timeout time.Duration
}

func NewHTTPGateway(baseURL string, session Session, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		session: session,
		http:    &fasthttp.Client{},
		timeout: timeout,
	}
}

func (g *HTTPGateway) List(ctx context.Context, query ListQuery) ([]domain.Task, error) {
	args := url.Values{}
	if query.Status != "" {
		args.Set("status", query.Status)
	}
	if query.Priority != "" {
		args.Set("priority", query.Priority)
	}
	if query.Due != "" {
		args.Set("due", query.Due)
	}
	if query.Sort != "" {
		args.Set("sort", query.Sort)
	}
	if query.Order != "" {
		args.Set("order", query.Order)
	}

	uri := g.tasksURL("")
	if encoded := args.Encode(); encoded != "" {
		uri += "?" + encoded
	}

	var tasks []domain.Task
	if err := g.call(ctx, fasthttp.MethodGet, uri, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (g *HTTPGateway) Get(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := g.call(ctx, fasthttp.MethodGet, g.tasksURL(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Create(ctx context.Context, draft transport.TaskCreateRequest) (*domain.Task, error) {
	var task domain.Task
	if err := g.call(ctx, fasthttp.MethodPost, g.tasksURL(""), draft, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Update(ctx context.Context, id string, patch domain.TaskPatch, expectedVersion int64) (*domain.Task, error) {
	var priority *string
	if patch.Priority != nil {
		p := string(*patch.Priority)
		priority = &p
	}
	body := transport.TaskUpdateRequest{
		Title:           patch.Title,
		Description:     patch.Description,
		Completed:       patch.Completed,
		Priority:        priority,
		DueDate:         patch.DueDate,
		ExpectedVersion: expectedVersion,
	}

	var task domain.Task
	if err := g.call(ctx, fasthttp.MethodPut, g.tasksURL(id), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Toggle(ctx context.Context, id string, expectedVersion int64) (*domain.Task, error) {
	body := transport.TaskToggleRequest{ExpectedVersion: expectedVersion}

	var task domain.Task
	if err := g.call(ctx, fasthttp.MethodPost, g.tasksURL(id)+"/toggle", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Delete(ctx context.Context, id string, expectedVersion int64) error {
	uri := fmt.Sprintf("%s?expected_version=%d", g.tasksURL(id), expectedVersion)
	return g.call(ctx, fasthttp.MethodDelete, uri, nil, nil)
}

func (g *HTTPGateway) Restore(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := g.call(ctx, fasthttp.MethodPost, g.tasksURL(id)+"/restore", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) tasksURL(taskID string) string {
	uri := fmt.Sprintf("%s/api/v1/users/%s/tasks", g.baseURL, url.PathEscape(g.session.UserID))
	if taskID != "" {
		uri += "/" + url.PathEscape(taskID)
	}
	return uri
}

func (g *HTTPGateway) call(ctx context.Context, method, uri string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+g.session.Token)

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(g.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.http.DoDeadline(req, resp, deadline); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "task service unreachable", err)
	}

	return decodeEnvelope(resp.StatusCode(), resp.Body(), out)
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   struct {
		Field             string `json:"field"`
		RetryAfterSeconds int    `json:"retry_after_seconds"`
	} `json:"meta"`
}

func decodeEnvelope(status int, body []byte, out interface{}) error {
	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "malformed response", err)
		}
	}

	if status >= 200 && status < 300 {
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "malformed response payload", err)
		}
		return nil
	}

	code := domain.ErrorCode(env.Code)
	if code == "" {
		code = domain.ErrCodeInternal
	}
	message := env.Error
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &domain.Error{
		Code:       code,
		Message:    message,
		Field:      env.Meta.Field,
		RetryAfter: time.Duration(env.Meta.RetryAfterSeconds) * time.Second,
	}
}
