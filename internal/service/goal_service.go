package service

import (
	"context"
	"errors"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GoalService defines the interface for goal operations
type GoalService interface {
	CreateGoal(ctx context.Context, userID string, req *dto.CreateGoalRequest) (*domain.Goal, error)
	GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error)
	ListGoals(ctx context.Context, userID string, status *domain.GoalStatus) ([]*domain.Goal, error)
	UpdateGoal(ctx context.Context, userID, goalID string, req *dto.UpdateGoalRequest) (*domain.Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

type goalService struct {
	goalRepo repository.GoalRepository
	now      func() time.Time
}

// NewGoalService creates a new GoalService
func NewGoalService(goalRepo repository.GoalRepository) GoalService {
	return &goalService{goalRepo: goalRepo, now: time.Now}
}

// CreateGoal creates a goal, enforcing the per-category active limit
func (s *goalService) CreateGoal(ctx context.Context, userID string, req *dto.CreateGoalRequest) (*domain.Goal, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.goal.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("category", req.Category),
	)

	category := domain.GoalCategory(req.Category)
	status := domain.GoalStatus(req.Status)

	if status == domain.GoalStatusActive {
		if err := s.checkLimit(ctx, userID, category, ""); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	now := s.now()
	goal := &domain.Goal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Status:      domain.GoalStatusActive,
		TargetDate:  req.TargetDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	goal.SetStatus(status, now)

	if err := s.goalRepo.Create(ctx, goal); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("goal_id", goal.ID))
	return goal, nil
}

// GetGoal returns a goal owned by userID
func (s *goalService) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	goal, err := s.goalRepo.GetByID(ctx, goalID, userID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, ErrGoalNotFound
	}
	return goal, nil
}

// ListGoals lists the user's goals
func (s *goalService) ListGoals(ctx context.Context, userID string, status *domain.GoalStatus) ([]*domain.Goal, error) {
	return s.goalRepo.ListByUser(ctx, userID, status)
}

// UpdateGoal applies a partial update; reactivating a goal counts against the limit
func (s *goalService) UpdateGoal(ctx context.Context, userID, goalID string, req *dto.UpdateGoalRequest) (*domain.Goal, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.goal.update")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("goal_id", goalID),
	)

	goal, err := s.goalRepo.GetByID(ctx, goalID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if goal == nil {
		return nil, ErrGoalNotFound
	}

	now := s.now()
	if req.Title != nil {
		goal.Title = *req.Title
	}
	if req.Description != nil {
		goal.Description = req.Description
	}
	if req.TargetDate != nil {
		goal.TargetDate = req.TargetDate
	}
	if req.Status != nil {
		next := domain.GoalStatus(*req.Status)
		if next == domain.GoalStatusActive && goal.Status != domain.GoalStatusActive {
			if err := s.checkLimit(ctx, userID, goal.Category, goal.ID); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
		goal.SetStatus(next, now)
	}
	goal.UpdatedAt = now

	if err := s.goalRepo.Update(ctx, goal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return goal, nil
}

// DeleteGoal deletes a goal and its tasks
func (s *goalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.goal.delete")
	defer span.End()

	if err := s.goalRepo.Delete(ctx, goalID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGoalNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *goalService) checkLimit(ctx context.Context, userID string, category domain.GoalCategory, excludeID string) error {
	count, err := s.goalRepo.CountActiveByCategory(ctx, userID, category, excludeID)
	if err != nil {
		return err
	}
	if count >= domain.MaxActiveGoalsPerCategory {
		return ErrGoalLimitReached
	}
	return nil
}
