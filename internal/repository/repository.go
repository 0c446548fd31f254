package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by mutations that matched no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the email unique index rejects an insert
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrRefreshTokenNotPresent is returned when a rotation finds the old token already gone
	ErrRefreshTokenNotPresent = errors.New("refresh token not present")
)

// UserListFilter narrows the admin user listing
type UserListFilter struct {
	Search string
	Role   string
	Limit  int
	Offset int
}

// UserRepository defines the interface for user data access, including the
// refresh tokens embedded in each user record
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *domain.User) error
	// GetByID retrieves a user by ID; returns nil when absent
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail retrieves a user by email; returns nil when absent
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ExistsByEmail checks if a user exists with the given email
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// AddRefreshToken appends an entry to the user's refresh token list
	AddRefreshToken(ctx context.Context, userID string, entry domain.RefreshTokenEntry) error
	// RotateRefreshToken removes oldToken and appends next in one step, only if oldToken is still stored
	RotateRefreshToken(ctx context.Context, userID, oldToken string, next domain.RefreshTokenEntry) error
	// ClearRefreshTokens empties the user's refresh token list
	ClearRefreshTokens(ctx context.Context, userID string) error
	// PruneExpiredRefreshTokens drops entries expiring at or before now from every user
	PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
	// UpdateName sets the display name
	UpdateName(ctx context.Context, userID, name string) (*domain.User, error)
	// UpdatePassword sets the password hash and clears all refresh tokens
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// UpdatePreferences applies the non-nil fields and returns the stored result
	UpdatePreferences(ctx context.Context, userID string, update domain.PreferencesUpdate) (*domain.Preferences, error)
	// UpdateRole sets the user's role
	UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error)
	// Delete deletes a user with their goals and tasks
	Delete(ctx context.Context, id string) error
	// List returns a page of users and the total match count
	List(ctx context.Context, filter UserListFilter) ([]*domain.User, int64, error)
	// ListForReminders returns users with notifications enabled
	ListForReminders(ctx context.Context) ([]*domain.User, error)
}

// GoalRepository defines the interface for goal data access
type GoalRepository interface {
	Create(ctx context.Context, goal *domain.Goal) error
	// GetByID returns the goal only when owned by userID
	GetByID(ctx context.Context, id, userID string) (*domain.Goal, error)
	ListByUser(ctx context.Context, userID string, status *domain.GoalStatus) ([]*domain.Goal, error)
	Update(ctx context.Context, goal *domain.Goal) error
	Delete(ctx context.Context, id, userID string) error
	// CountActiveByCategory counts active goals in a category, excluding excludeID when set
	CountActiveByCategory(ctx context.Context, userID string, category domain.GoalCategory, excludeID string) (int, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	// GetByID returns the task only when owned by userID
	GetByID(ctx context.Context, id, userID string) (*domain.Task, error)
	List(ctx context.Context, userID string, filter domain.TaskFilter) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id, userID string) error
}

// validID reports whether id can match a UUID primary key
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// PushSubscriptionRepository stores one browser push subscription per user
type PushSubscriptionRepository interface {
	// Upsert creates or replaces the user's subscription
	Upsert(ctx context.Context, sub *domain.PushSubscription) (*domain.PushSubscription, error)
	// GetByUser returns nil when the user has no subscription
	GetByUser(ctx context.Context, userID string) (*domain.PushSubscription, error)
	// DeleteByUser returns ErrNotFound when nothing was stored
	DeleteByUser(ctx context.Context, userID string) error
}
