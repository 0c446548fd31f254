package dto

import (
	"strings"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
)

// CreateTaskRequest represents task creation request
type CreateTaskRequest struct {
	GoalID        string     `json:"goal_id" binding:"required"`
	Title         string     `json:"title" binding:"required"`
	Status        string     `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date"`
}

// Validate checks field bounds and enums
func (r *CreateTaskRequest) Validate() (bool, string) {
	r.Title = strings.TrimSpace(r.Title)
	if ok, msg := validateTaskTitle(r.Title); !ok {
		return false, msg
	}
	if strings.TrimSpace(r.GoalID) == "" {
		return false, "goal_id must be a non-empty string"
	}
	if r.Status == "" {
		r.Status = string(domain.TaskStatusPending)
	}
	if !domain.TaskStatus(r.Status).IsValid() {
		return false, "Status must be one of: pending, complete, incomplete"
	}
	return true, ""
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged
type UpdateTaskRequest struct {
	Title         *string    `json:"title"`
	Status        *string    `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date"`
}

// Validate checks supplied fields
func (r *UpdateTaskRequest) Validate() (bool, string) {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if ok, msg := validateTaskTitle(title); !ok {
			return false, msg
		}
		r.Title = &title
	}
	if r.Status != nil && !domain.TaskStatus(*r.Status).IsValid() {
		return false, "Status must be one of: pending, complete, incomplete"
	}
	return true, ""
}

// TaskListQuery holds task list filters from the query string
type TaskListQuery struct {
	Status string `form:"status"`
	GoalID string `form:"goal_id"`
	Filter string `form:"filter"`
}

// Validate checks the filter values
func (q *TaskListQuery) Validate() (bool, string) {
	if q.Status != "" && !domain.TaskStatus(q.Status).IsValid() {
		return false, "Invalid status value: " + q.Status + ". Allowed values are pending, complete, incomplete"
	}
	if q.Filter != "" && q.Filter != "today" {
		return false, "Unsupported filter: " + q.Filter
	}
	return true, ""
}

func validateTaskTitle(title string) (bool, string) {
	n := len([]rune(title))
	if n < 1 {
		return false, "Title must not be empty"
	}
	if n > 100 {
		return false, "Title must not exceed 100 characters"
	}
	return true, ""
}
