package dto

import (
	"github.com/dawei41468/LOSMAX/internal/domain"
)

// ListUsersQuery holds admin user list parameters
type ListUsersQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
	Role   string `form:"role"`
}

// Normalize applies defaults and validates bounds
func (q *ListUsersQuery) Normalize() (bool, string) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Page < 1 {
		return false, "page must be at least 1"
	}
	if q.Limit < 1 || q.Limit > 100 {
		return false, "limit must be between 1 and 100"
	}
	if q.Role != "" && !domain.Role(q.Role).IsValid() {
		return false, "role must be user or admin"
	}
	return true, ""
}

// Offset returns the row offset for the page
func (q *ListUsersQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// AdminUserResponse is one row of the admin user list
type AdminUserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// UpdateRoleRequest represents a role change
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Validate checks the role
func (r *UpdateRoleRequest) Validate() (bool, string) {
	if !domain.Role(r.Role).IsValid() {
		return false, "role must be user or admin"
	}
	return true, ""
}
