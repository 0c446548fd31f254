package domain

import (
	"time"
)

// GoalCategory groups goals by life area
type GoalCategory string

const (
	CategoryFamily   GoalCategory = "Family"
	CategoryWork     GoalCategory = "Work"
	CategoryHealth   GoalCategory = "Health"
	CategoryPersonal GoalCategory = "Personal"
)

// Categories lists every valid goal category
var Categories = []GoalCategory{CategoryFamily, CategoryWork, CategoryHealth, CategoryPersonal}

// IsValid reports whether c is a known category
func (c GoalCategory) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// GoalStatus represents goal status
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// IsValid reports whether s is a known goal status
func (s GoalStatus) IsValid() bool {
	return s == GoalStatusActive || s == GoalStatusCompleted
}

// MaxActiveGoalsPerCategory caps active goals a user may hold in one category
const MaxActiveGoalsPerCategory = 3

// Goal represents a goal entity
type Goal struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Category    GoalCategory `json:"category"`
	Status      GoalStatus   `json:"status"`
	TargetDate  *time.Time   `json:"target_date,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SetStatus changes the status and keeps CompletedAt in step with it
func (g *Goal) SetStatus(status GoalStatus, now time.Time) {
	if g.Status == status {
		return
	}
	g.Status = status
	if status == GoalStatusCompleted {
		g.CompletedAt = &now
	} else {
		g.CompletedAt = nil
	}
}
