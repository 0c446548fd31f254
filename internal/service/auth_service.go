package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/internal/token"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const tokenTypeBearer = "bearer"

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	// ExposeRotatedRefreshToken returns the new refresh token from Refresh.
	// Rotation itself always happens.
	ExposeRotatedRefreshToken bool
	BcryptCost                int
}

// LogoutResult reports how a logout was resolved
type LogoutResult struct {
	UserID string
	// Expired is set when the presented access token had already expired
	Expired bool
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Register creates a user and issues its first token pair
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	// Login verifies credentials and issues a token pair
	Login(ctx context.Context, email, password string) (*dto.AuthResponse, error)
	// Authenticate resolves a bearer access token to a freshly loaded user
	Authenticate(ctx context.Context, bearerToken string) (*domain.User, error)
	// AuthenticateToken resolves an access token to its identity without a store lookup
	AuthenticateToken(ctx context.Context, accessToken string) (string, error)
	// Refresh exchanges a stored refresh token for a new pair, consuming the old one
	Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResponse, error)
	// Logout revokes every refresh token of the token's identity; expired access tokens are accepted
	Logout(ctx context.Context, accessToken string) (*LogoutResult, error)
	// GetUser retrieves user by ID
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// UpdateName changes the display name
	UpdateName(ctx context.Context, userID, name string) (*dto.UpdateNameResponse, error)
	// ChangePassword verifies the current password, sets the new one and revokes all sessions
	ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error
	// DeleteAccount removes the user with their goals and tasks
	DeleteAccount(ctx context.Context, userID string) error
}

// authService implements AuthService
type authService struct {
	userRepo repository.UserRepository
	codec    *token.Codec
	notifier realtime.Broadcaster
	config   *AuthServiceConfig
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repository.UserRepository,
	codec *token.Codec,
	notifier realtime.Broadcaster,
	config *AuthServiceConfig,
) AuthService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.AccessTokenExpiry == 0 {
		config.AccessTokenExpiry = 30 * time.Minute
	}
	if config.RefreshTokenExpiry == 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	return &authService{
		userRepo: userRepo,
		codec:    codec,
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}
}

// Register registers a new user
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.register")
	defer span.End()

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if exists {
		span.SetStatus(codes.Error, "email already registered")
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:            uuid.New().String(),
		Email:         req.Email,
		PasswordHash:  string(hashedPassword),
		Name:          req.Name,
		Role:          domain.RoleUser,
		RefreshTokens: []domain.RefreshTokenEntry{},
		Preferences:   domain.DefaultPreferences(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			span.SetStatus(codes.Error, "email already registered")
			return nil, ErrEmailTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Authenticate validates the access token and loads the current user record,
// so role changes apply on the next request
func (s *authService) Authenticate(ctx context.Context, bearerToken string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.authenticate")
	defer span.End()

	userID, err := s.AuthenticateToken(ctx, bearerToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, ErrUnauthenticated
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	return user, nil
}

// AuthenticateToken decodes an access token and returns its identity
func (s *authService) AuthenticateToken(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrUnauthenticated
	}

	claims, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return "", ErrTokenExpired
		}
		return "", ErrUnauthenticated
	}
	if claims.Subject == "" {
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Refresh validates the refresh token against the stored set, then swaps it
// for a new one. The swap is conditional on the old token still being stored,
// so of two concurrent refreshes with the same token exactly one succeeds.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.RefreshResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.refresh")
	defer span.End()

	if refreshToken == "" {
		span.SetStatus(codes.Error, "missing refresh token")
		return nil, ErrUnauthenticated
	}

	claims, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrRefreshExpired
		}
		return nil, ErrInvalidRefreshToken
	}
	if claims.Subject == "" {
		span.SetStatus(codes.Error, "missing subject")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, ErrInvalidRefreshToken
	}
	span.SetAttributes(attribute.String("user_id", user.ID))

	now := s.now()
	if !user.HasValidRefreshToken(refreshToken, now) {
		span.SetStatus(codes.Error, "refresh token revoked")
		return nil, ErrRefreshRevoked
	}

	accessToken, err := s.codec.IssueAccessToken(user.ID, string(user.Role), s.config.AccessTokenExpiry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	newRefresh, expiresAt, err := s.codec.IssueRefreshToken(user.ID, s.config.RefreshTokenExpiry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	next := domain.RefreshTokenEntry{Token: newRefresh, CreatedAt: now, ExpiresAt: expiresAt}
	if err := s.userRepo.RotateRefreshToken(ctx, user.ID, refreshToken, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotPresent) {
			span.SetStatus(codes.Error, "refresh token consumed concurrently")
			return nil, ErrRefreshRevoked
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	resp := &dto.RefreshResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		UserID:      user.ID,
		Role:        string(user.Role),
	}
	if s.config.ExposeRotatedRefreshToken {
		resp.RefreshToken = newRefresh
	}

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Logout clears every stored refresh token of the identity and tells its
// open sessions. Logging out twice succeeds both times.
func (s *authService) Logout(ctx context.Context, accessToken string) (*LogoutResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.logout")
	defer span.End()

	if accessToken == "" {
		span.SetStatus(codes.Error, "missing token")
		return nil, ErrUnauthenticated
	}

	result := &LogoutResult{}
	claims, err := s.codec.DecodeAccess(accessToken)
	if errors.Is(err, token.ErrExpiredToken) {
		claims, err = s.codec.DecodeAccess(accessToken, token.SkipExpiry())
		result.Expired = true
	}
	if err != nil || claims.Subject == "" {
		span.SetStatus(codes.Error, "invalid token")
		return nil, ErrUnauthenticated
	}
	result.UserID = claims.Subject
	span.SetAttributes(
		attribute.String("user_id", result.UserID),
		attribute.Bool("expired", result.Expired),
	)

	if err := s.userRepo.ClearRefreshTokens(ctx, result.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("clear refresh tokens: %w", err)
	}

	s.notifier.Broadcast(ctx, result.UserID, realtime.NewLoggedOut(result.UserID))

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// GetUser retrieves user by ID
func (s *authService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateName changes the display name
func (s *authService) UpdateName(ctx context.Context, userID, name string) (*dto.UpdateNameResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.update_name")
	defer span.End()

	user, err := s.userRepo.UpdateName(ctx, userID, name)
	if err != nil {
		// The session's user vanished after authentication
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &dto.UpdateNameResponse{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// ChangePassword sets a new password; the store clears refresh tokens in the same write
func (s *authService) ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.change_password")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", user.ID))

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		span.SetStatus(codes.Error, "incorrect current password")
		return ErrIncorrectPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.BcryptCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.notifier.Broadcast(ctx, user.ID, realtime.NewLoggedOut(user.ID))

	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteAccount deletes the user; goals and tasks are removed with it
func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.delete_account")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.notifier.Broadcast(ctx, userID, realtime.NewLoggedOut(userID))

	span.SetStatus(codes.Ok, "")
	return nil
}

// issueSession signs a token pair and stores the refresh entry
func (s *authService) issueSession(ctx context.Context, user *domain.User) (*dto.AuthResponse, error) {
	accessToken, err := s.codec.IssueAccessToken(user.ID, string(user.Role), s.config.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := s.codec.IssueRefreshToken(user.ID, s.config.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	entry := domain.RefreshTokenEntry{Token: refreshToken, CreatedAt: s.now(), ExpiresAt: expiresAt}
	if err := s.userRepo.AddRefreshToken(ctx, user.ID, entry); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		UserID:       user.ID,
		Name:         user.Name,
		Role:         string(user.Role),
		Language:     user.Preferences.Language,
	}, nil
}
