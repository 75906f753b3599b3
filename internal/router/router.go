package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskdeck/backend/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, auth Middleware, throttle Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)
	r.POST("/api/v1/auth/logout", handlers.Auth.Logout)

	// Protected routes
	r.GET("/api/v1/profile", auth(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", auth(handlers.Profile.UpdateProfile))

	// Task routes; mutations pass through the per-user throttle.
	protected := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth(throttle(h))
	}
	r.GET("/api/v1/users/{userId}/tasks", protected(handlers.Task.ListTasks))
	r.GET("/api/v1/users/{userId}/tasks/deleted", protected(handlers.Task.ListDeletedTasks))
	r.POST("/api/v1/users/{userId}/tasks", protected(handlers.Task.CreateTask))
	r.GET("/api/v1/users/{userId}/tasks/{id}", protected(handlers.Task.GetTask))
	r.PUT("/api/v1/users/{userId}/tasks/{id}", protected(handlers.Task.UpdateTask))
	r.POST("/api/v1/users/{userId}/tasks/{id}/toggle", protected(handlers.Task.ToggleTask))
	r.POST("/api/v1/users/{userId}/tasks/{id}/restore", protected(handlers.Task.RestoreTask))
	r.DELETE("/api/v1/users/{userId}/tasks/{id}", protected(handlers.Task.DeleteTask))

	return r
}
