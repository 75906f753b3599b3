package transport

import "time"

// TaskCreateRequest is the body of POST /users/{userId}/tasks.
type TaskCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskUpdateRequest is the body of PUT /users/{userId}/tasks/{id}. Absent
// fields are left untouched; expected_version gates the write.
type TaskUpdateRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Completed       *bool      `json:"completed,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	ExpectedVersion int64      `json:"expected_version"`
}

// TaskToggleRequest is the body of POST /users/{userId}/tasks/{id}/toggle.
type TaskToggleRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

type ProfileUpdateRequest struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}

type LogoutRequest struct {
	SessionID string `json:"session_id"`
}
