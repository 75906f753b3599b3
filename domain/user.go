package domain

import "time"

// User represents an authenticated identity in the platform. Credential
// issuance happens outside this service; only the identity is consumed here.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}
