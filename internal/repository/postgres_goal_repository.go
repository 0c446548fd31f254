package repository

import (
	"context"
	"errors"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const goalColumns = `id, user_id, title, description, category, status, target_date,
		completed_at, created_at, updated_at`

// PostgresGoalRepository implements GoalRepository using PostgreSQL
type PostgresGoalRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresGoalRepository creates a new PostgresGoalRepository
func NewPostgresGoalRepository(pool *pgxpool.Pool) *PostgresGoalRepository {
	return &PostgresGoalRepository{pool: pool}
}

func scanGoal(row pgx.Row) (*domain.Goal, error) {
	goal := &domain.Goal{}
	err := row.Scan(
		&goal.ID,
		&goal.UserID,
		&goal.Title,
		&goal.Description,
		&goal.Category,
		&goal.Status,
		&goal.TargetDate,
		&goal.CompletedAt,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	return goal, err
}

// Create creates a new goal
func (r *PostgresGoalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		goal.ID,
		goal.UserID,
		goal.Title,
		goal.Description,
		goal.Category,
		goal.Status,
		goal.TargetDate,
		goal.CompletedAt,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	return err
}

// GetByID retrieves a goal owned by userID
func (r *PostgresGoalRepository) GetByID(ctx context.Context, id, userID string) (*domain.Goal, error) {
	if !validID(id) || !validID(userID) {
		return nil, nil
	}
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1 AND user_id = $2`
	goal, err := scanGoal(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return goal, nil
}

// ListByUser lists a user's goals, newest first, optionally by status
func (r *PostgresGoalRepository) ListByUser(ctx context.Context, userID string, status *domain.GoalStatus) ([]*domain.Goal, error) {
	if !validID(userID) {
		return []*domain.Goal{}, nil
	}
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
	`
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx, query, userID, statusArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := []*domain.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

// Update writes the mutable goal fields; category is never changed
func (r *PostgresGoalRepository) Update(ctx context.Context, goal *domain.Goal) error {
	query := `
		UPDATE goals
		SET title = $3, description = $4, status = $5, target_date = $6,
			completed_at = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		goal.ID,
		goal.UserID,
		goal.Title,
		goal.Description,
		goal.Status,
		goal.TargetDate,
		goal.CompletedAt,
		goal.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a goal owned by userID; its tasks cascade
func (r *PostgresGoalRepository) Delete(ctx context.Context, id, userID string) error {
	if !validID(id) || !validID(userID) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveByCategory counts a user's active goals in one category
func (r *PostgresGoalRepository) CountActiveByCategory(ctx context.Context, userID string, category domain.GoalCategory, excludeID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM goals
		WHERE user_id = $1 AND category = $2 AND status = 'active'
		  AND ($3 = '' OR id::text <> $3)
	`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, category, excludeID).Scan(&count)
	return count, err
}
