package dto

import (
	"strings"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
)

// CreateGoalRequest represents goal creation request
type CreateGoalRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Category    string     `json:"category" binding:"required"`
	Status      string     `json:"status"`
	TargetDate  *time.Time `json:"target_date"`
}

// Validate checks field bounds and enums
func (r *CreateGoalRequest) Validate() (bool, string) {
	r.Title = strings.TrimSpace(r.Title)
	if ok, msg := validateGoalTitle(r.Title); !ok {
		return false, msg
	}
	if r.Description != nil && len([]rune(*r.Description)) > 500 {
		return false, "Description must not exceed 500 characters"
	}
	if !domain.GoalCategory(r.Category).IsValid() {
		return false, "Category must be one of: Family, Work, Health, Personal"
	}
	if r.Status == "" {
		r.Status = string(domain.GoalStatusActive)
	}
	if !domain.GoalStatus(r.Status).IsValid() {
		return false, "Status must be active or completed"
	}
	return true, ""
}

// UpdateGoalRequest is a partial update; category is immutable and not accepted
type UpdateGoalRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	TargetDate  *time.Time `json:"target_date"`
}

// Validate checks supplied fields
func (r *UpdateGoalRequest) Validate() (bool, string) {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if ok, msg := validateGoalTitle(title); !ok {
			return false, msg
		}
		r.Title = &title
	}
	if r.Description != nil && len([]rune(*r.Description)) > 500 {
		return false, "Description must not exceed 500 characters"
	}
	if r.Status != nil && !domain.GoalStatus(*r.Status).IsValid() {
		return false, "Status must be active or completed"
	}
	return true, ""
}

func validateGoalTitle(title string) (bool, string) {
	n := len([]rune(title))
	if n < 1 {
		return false, "Title must not be empty"
	}
	if n > 100 {
		return false, "Title must not exceed 100 characters"
	}
	return true, ""
}
