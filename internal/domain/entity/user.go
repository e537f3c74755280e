package entity

import "time"

// User is a directory record resolved through the user repository.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	PMDesignation bool      `json:"pm_designation"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Principal is the authenticated caller of an engine operation, supplied
// by the identity layer before any service method runs.
type Principal struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	PMDesignation bool   `json:"pm_designation"`
}

// IsManager reports whether the principal holds unscoped task visibility.
func (p Principal) IsManager() bool {
	return p.Role == RoleAdmin || p.Role == RoleProjectManager
}
