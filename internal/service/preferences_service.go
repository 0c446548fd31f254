package service

import (
	"context"
	"errors"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// PreferencesService defines the interface for user preference operations
type PreferencesService interface {
	GetPreferences(ctx context.Context, user *domain.User) *dto.PreferencesResponse
	UpdatePreferences(ctx context.Context, user *domain.User, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error)
}

type preferencesService struct {
	userRepo repository.UserRepository
}

// NewPreferencesService creates a new PreferencesService
func NewPreferencesService(userRepo repository.UserRepository) PreferencesService {
	return &preferencesService{userRepo: userRepo}
}

// GetPreferences returns the preferences of an already loaded user
func (s *preferencesService) GetPreferences(_ context.Context, user *domain.User) *dto.PreferencesResponse {
	return ToPreferencesResponse(user.Preferences)
}

// UpdatePreferences applies the supplied fields; an empty request returns the current values
func (s *preferencesService) UpdatePreferences(ctx context.Context, user *domain.User, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error) {
	if req.IsEmpty() {
		return ToPreferencesResponse(user.Preferences), nil
	}

	ctx, span := telemetry.StartSpan(ctx, "service.preferences.update")
	defer span.End()

	prefs, err := s.userRepo.UpdatePreferences(ctx, user.ID, domain.PreferencesUpdate{
		Language:             req.Language,
		MorningDeadline:      req.MorningDeadline,
		EveningDeadline:      req.EveningDeadline,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return ToPreferencesResponse(*prefs), nil
}

// ToPreferencesResponse converts domain preferences to the response shape
func ToPreferencesResponse(p domain.Preferences) *dto.PreferencesResponse {
	return &dto.PreferencesResponse{
		Language:             p.Language,
		MorningDeadline:      p.MorningDeadline,
		EveningDeadline:      p.EveningDeadline,
		NotificationsEnabled: p.NotificationsEnabled,
	}
}
