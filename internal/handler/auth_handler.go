package handler

import (
	"errors"
	"time"

	"github.com/dawei41468/LOSMAX/internal/dto"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
	metrics     *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler; m may be nil
func NewAuthHandler(authService service.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: m}
}

// Register handles user registration
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.record("register", err)
		respondError(c, err)
		return
	}

	h.record("register", nil)
	response.Created(c, result)
}

// Login handles user login with OAuth2 password form fields or JSON
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.record("login", err)
		respondError(c, err)
		return
	}

	h.record("login", nil)
	response.Success(c, result)
}

// Refresh exchanges the bearer refresh token for a new token pair
// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := middleware.BearerToken(c)
	if refreshToken == "" {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.record("refresh", err)
		respondError(c, err)
		return
	}

	h.record("refresh", nil)
	response.Success(c, result)
}

// Logout revokes every refresh token of the caller; an expired access token is accepted
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	accessToken := middleware.BearerToken(c)
	if accessToken == "" {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}

	result, err := h.authService.Logout(c.Request.Context(), accessToken)
	if err != nil {
		h.record("logout", err)
		respondError(c, err)
		return
	}

	h.record("logout", nil)
	message := "Successfully logged out"
	if result.Expired {
		message = "Session expired, logged out"
	}
	response.Success(c, dto.MessageResponse{Message: message})
}

// Me returns current user info
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}

	response.Success(c, dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role),
		Preferences: *service.ToPreferencesResponse(user.Preferences),
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	})
}

// UpdateName changes the caller's display name
// PATCH /auth/update-name
func (h *AuthHandler) UpdateName(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req dto.UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.ValidationError(c, msg)
		return
	}

	result, err := h.authService.UpdateName(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ChangePassword verifies the current password and sets a new one; all sessions end
// PATCH /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := dto.ValidatePassword(req.NewPassword); !valid {
		response.ValidationError(c, msg)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		h.record("change_password", err)
		respondError(c, err)
		return
	}

	h.record("change_password", nil)
	response.Success(c, dto.MessageResponse{Message: "Password changed successfully. Please log in again."})
}

// DeleteAccount deletes the caller with their goals and tasks
// DELETE /auth/account
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	if err := h.authService.DeleteAccount(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	h.record("delete_account", nil)
	response.NoContent(c)
}

func (h *AuthHandler) record(operation string, err error) {
	h.metrics.RecordAuth(operation, authOutcome(err))
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, service.ErrRefreshRevoked):
		return "revoked"
	case errors.Is(err, service.ErrRefreshExpired), errors.Is(err, service.ErrTokenExpired):
		return "expired"
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrIncorrectPassword),
		errors.Is(err, service.ErrEmailTaken):
		return "rejected"
	}
	return "error"
}
