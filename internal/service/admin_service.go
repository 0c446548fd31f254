package service

import (
	"context"
	"errors"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AdminService defines the interface for user administration
type AdminService interface {
	ListUsers(ctx context.Context, query *dto.ListUsersQuery) ([]*dto.AdminUserResponse, int64, error)
	UpdateRole(ctx context.Context, actorID, userID string, role domain.Role) (*dto.AdminUserResponse, error)
	DeleteUser(ctx context.Context, actorID, userID string) error
}

type adminService struct {
	userRepo repository.UserRepository
	notifier realtime.Broadcaster
}

// NewAdminService creates a new AdminService
func NewAdminService(userRepo repository.UserRepository, notifier realtime.Broadcaster) AdminService {
	return &adminService{userRepo: userRepo, notifier: notifier}
}

// ListUsers returns one page of users and the total match count
func (s *adminService) ListUsers(ctx context.Context, query *dto.ListUsersQuery) ([]*dto.AdminUserResponse, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.admin.list_users")
	defer span.End()

	users, total, err := s.userRepo.List(ctx, repository.UserListFilter{
		Search: query.Search,
		Role:   query.Role,
		Limit:  query.Limit,
		Offset: query.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	result := make([]*dto.AdminUserResponse, 0, len(users))
	for _, u := range users {
		result = append(result, toAdminUserResponse(u))
	}
	return result, total, nil
}

// UpdateRole changes another user's role; it takes effect on their next request
func (s *adminService) UpdateRole(ctx context.Context, actorID, userID string, role domain.Role) (*dto.AdminUserResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.admin.update_role")
	defer span.End()

	span.SetAttributes(
		attribute.String("actor_id", actorID),
		attribute.String("user_id", userID),
		attribute.String("role", string(role)),
	)

	if actorID == userID {
		return nil, ErrCannotChangeOwnRole
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return toAdminUserResponse(user), nil
}

// DeleteUser deletes another user and closes out their sessions
func (s *adminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.admin.delete_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("actor_id", actorID),
		attribute.String("user_id", userID),
	)

	if actorID == userID {
		return ErrCannotDeleteSelf
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.notifier.Broadcast(ctx, userID, realtime.NewLoggedOut(userID))
	return nil
}

func toAdminUserResponse(u *domain.User) *dto.AdminUserResponse {
	return &dto.AdminUserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
