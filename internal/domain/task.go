package domain

import (
	"time"
)

// TaskStatus represents task status
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusComplete   TaskStatus = "complete"
	TaskStatusIncomplete TaskStatus = "incomplete"
)

// IsValid reports whether s is a known task status
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusComplete, TaskStatusIncomplete:
		return true
	}
	return false
}

// Task represents a task entity
type Task struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	GoalID        string     `json:"goal_id"`
	Title         string     `json:"title"`
	Status        TaskStatus `json:"status"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TaskFilter narrows task listings
type TaskFilter struct {
	Status *TaskStatus
	GoalID *string
	// Date restricts to tasks scheduled on that calendar day
	Date *time.Time
}
