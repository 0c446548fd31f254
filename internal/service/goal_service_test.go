package service

import (
	"context"
	"testing"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
)

func strPtr(s string) *string { return &s }

func TestGoalService_CreateGoal(t *testing.T) {
	repo := newMockGoalRepository()
	svc := NewGoalService(repo)
	ctx := context.Background()

	t.Run("defaults to active", func(t *testing.T) {
		req := &dto.CreateGoalRequest{Title: "Run", Category: "Health", Status: "active"}
		goal, err := svc.CreateGoal(ctx, "user-1", req)
		if err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
		if goal.Status != domain.GoalStatusActive || goal.CompletedAt != nil {
			t.Errorf("CreateGoal() status = %v completed_at = %v", goal.Status, goal.CompletedAt)
		}
	})

	t.Run("completed goal gets completion time", func(t *testing.T) {
		req := &dto.CreateGoalRequest{Title: "Done", Category: "Work", Status: "completed"}
		goal, err := svc.CreateGoal(ctx, "user-1", req)
		if err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
		if goal.CompletedAt == nil {
			t.Error("CreateGoal() CompletedAt is nil")
		}
	})

	t.Run("active limit per category", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if _, err := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "More", Category: "Health", Status: "active"}); err != nil {
				t.Fatalf("CreateGoal() error = %v", err)
			}
		}
		_, err := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Fourth", Category: "Health", Status: "active"})
		if err != ErrGoalLimitReached {
			t.Errorf("CreateGoal() error = %v, want %v", err, ErrGoalLimitReached)
		}

		// Other users and categories are unaffected
		if _, err := svc.CreateGoal(ctx, "user-2", &dto.CreateGoalRequest{Title: "Mine", Category: "Health", Status: "active"}); err != nil {
			t.Errorf("CreateGoal() other user error = %v", err)
		}
		if _, err := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Later", Category: "Health", Status: "completed"}); err != nil {
			t.Errorf("CreateGoal() completed error = %v", err)
		}
	})
}

func TestGoalService_UpdateGoal(t *testing.T) {
	repo := newMockGoalRepository()
	svc := NewGoalService(repo)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		g, err := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Goal", Category: "Family", Status: "active"})
		if err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
		ids = append(ids, g.ID)
	}

	t.Run("complete sets completed_at", func(t *testing.T) {
		g, err := svc.UpdateGoal(ctx, "user-1", ids[0], &dto.UpdateGoalRequest{Status: strPtr("completed")})
		if err != nil {
			t.Fatalf("UpdateGoal() error = %v", err)
		}
		if g.CompletedAt == nil {
			t.Error("UpdateGoal() CompletedAt is nil")
		}
	})

	t.Run("reactivation counts against limit", func(t *testing.T) {
		if _, err := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Fill", Category: "Family", Status: "active"}); err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}
		_, err := svc.UpdateGoal(ctx, "user-1", ids[0], &dto.UpdateGoalRequest{Status: strPtr("active")})
		if err != ErrGoalLimitReached {
			t.Errorf("UpdateGoal() error = %v, want %v", err, ErrGoalLimitReached)
		}
	})

	t.Run("active goal keeps its slot on edit", func(t *testing.T) {
		g, err := svc.UpdateGoal(ctx, "user-1", ids[1], &dto.UpdateGoalRequest{Title: strPtr("Renamed"), Status: strPtr("active")})
		if err != nil {
			t.Fatalf("UpdateGoal() error = %v", err)
		}
		if g.Title != "Renamed" {
			t.Errorf("UpdateGoal() Title = %v", g.Title)
		}
	})

	t.Run("other user's goal", func(t *testing.T) {
		_, err := svc.UpdateGoal(ctx, "user-2", ids[1], &dto.UpdateGoalRequest{Title: strPtr("Hijack")})
		if err != ErrGoalNotFound {
			t.Errorf("UpdateGoal() error = %v, want %v", err, ErrGoalNotFound)
		}
	})
}

func TestGoalService_GetListDelete(t *testing.T) {
	repo := newMockGoalRepository()
	svc := NewGoalService(repo)
	ctx := context.Background()

	g, _ := svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Read", Category: "Personal", Status: "active"})
	target := time.Now().Add(24 * time.Hour)
	_, _ = svc.CreateGoal(ctx, "user-1", &dto.CreateGoalRequest{Title: "Ship", Category: "Work", Status: "completed", TargetDate: &target})

	if _, err := svc.GetGoal(ctx, "user-1", g.ID); err != nil {
		t.Errorf("GetGoal() error = %v", err)
	}
	if _, err := svc.GetGoal(ctx, "user-2", g.ID); err != ErrGoalNotFound {
		t.Errorf("GetGoal() error = %v, want %v", err, ErrGoalNotFound)
	}

	active := domain.GoalStatusActive
	goals, err := svc.ListGoals(ctx, "user-1", &active)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 1 {
		t.Errorf("ListGoals(active) = %d goals, want 1", len(goals))
	}
	all, _ := svc.ListGoals(ctx, "user-1", nil)
	if len(all) != 2 {
		t.Errorf("ListGoals() = %d goals, want 2", len(all))
	}

	if err := svc.DeleteGoal(ctx, "user-1", g.ID); err != nil {
		t.Errorf("DeleteGoal() error = %v", err)
	}
	if err := svc.DeleteGoal(ctx, "user-1", g.ID); err != ErrGoalNotFound {
		t.Errorf("DeleteGoal() error = %v, want %v", err, ErrGoalNotFound)
	}
}

// vanishingGoalRepository deletes the goal right before the update lands
type vanishingGoalRepository struct {
	*mockGoalRepository
}

func (r *vanishingGoalRepository) Update(ctx context.Context, goal *domain.Goal) error {
	delete(r.goals, goal.ID)
	return r.mockGoalRepository.Update(ctx, goal)
}

func TestGoalService_UpdateGoalDeletedConcurrently(t *testing.T) {
	repo := &vanishingGoalRepository{newMockGoalRepository()}
	repo.goals["goal-1"] = &domain.Goal{ID: "goal-1", UserID: "user-1", Category: domain.CategoryWork, Status: domain.GoalStatusActive}
	svc := NewGoalService(repo)

	_, err := svc.UpdateGoal(context.Background(), "user-1", "goal-1", &dto.UpdateGoalRequest{Title: strPtr("Renamed")})
	if err != ErrGoalNotFound {
		t.Errorf("UpdateGoal() error = %v, want %v", err, ErrGoalNotFound)
	}
}
