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

// TaskService defines the interface for task operations
type TaskService interface {
	CreateTask(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, userID string, query *dto.TaskListQuery) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, req *dto.UpdateTaskRequest) (*domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}

type taskService struct {
	taskRepo repository.TaskRepository
	goalRepo repository.GoalRepository
	// location defines the calendar day for "today" and default schedule dates
	location *time.Location
	now      func() time.Time
}

// NewTaskService creates a new TaskService; loc defaults to UTC
func NewTaskService(taskRepo repository.TaskRepository, goalRepo repository.GoalRepository, loc *time.Location) TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &taskService{taskRepo: taskRepo, goalRepo: goalRepo, location: loc, now: time.Now}
}

// CreateTask creates a task under one of the user's goals
func (s *taskService) CreateTask(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*domain.Task, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.task.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("goal_id", req.GoalID),
	)

	goal, err := s.goalRepo.GetByID(ctx, req.GoalID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if goal == nil {
		span.SetStatus(codes.Error, "goal not owned")
		return nil, ErrGoalNotOwned
	}

	now := s.now()
	scheduled := now.In(s.location)
	if req.ScheduledDate != nil {
		scheduled = *req.ScheduledDate
	}

	task := &domain.Task{
		ID:            uuid.New().String(),
		UserID:        userID,
		GoalID:        goal.ID,
		Title:         req.Title,
		Status:        domain.TaskStatus(req.Status),
		ScheduledDate: scheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return task, nil
}

// GetTask returns a task owned by userID
func (s *taskService) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// ListTasks lists the user's tasks with optional status, goal and today filters
func (s *taskService) ListTasks(ctx context.Context, userID string, query *dto.TaskListQuery) ([]*domain.Task, error) {
	var filter domain.TaskFilter
	if query.Status != "" {
		status := domain.TaskStatus(query.Status)
		filter.Status = &status
	}
	if query.GoalID != "" {
		goalID := query.GoalID
		filter.GoalID = &goalID
	}
	if query.Filter == "today" {
		today := s.now().In(s.location)
		filter.Date = &today
	}
	return s.taskRepo.List(ctx, userID, filter)
}

// UpdateTask applies a partial update
func (s *taskService) UpdateTask(ctx context.Context, userID, taskID string, req *dto.UpdateTaskRequest) (*domain.Task, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.task.update")
	defer span.End()

	task, err := s.taskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Status != nil {
		task.Status = domain.TaskStatus(*req.Status)
	}
	if req.ScheduledDate != nil {
		task.ScheduledDate = *req.ScheduledDate
	}
	task.UpdatedAt = s.now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return task, nil
}

// DeleteTask deletes a task
func (s *taskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.taskRepo.Delete(ctx, taskID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}
