package handler

import (
	"errors"
	"net/http"

	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP responses; unknown errors become a generic 500
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, "UNAUTHENTICATED", "Could not validate credentials")
	case errors.Is(err, service.ErrTokenExpired):
		response.Unauthorized(c, "TOKEN_EXPIRED", "Token has expired")
	case errors.Is(err, service.ErrRefreshExpired):
		response.Unauthorized(c, "REFRESH_EXPIRED", "Refresh token expired")
	case errors.Is(err, service.ErrRefreshRevoked):
		response.Unauthorized(c, "REFRESH_REVOKED", "Refresh token revoked or expired")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, "INVALID_CREDENTIALS", "Incorrect email or password")
	case errors.Is(err, service.ErrEmailTaken):
		response.BadRequest(c, "Email already registered")
	case errors.Is(err, service.ErrIncorrectPassword):
		response.BadRequest(c, "Incorrect current password")
	case errors.Is(err, service.ErrGoalLimitReached):
		response.Error(c, http.StatusBadRequest, "GOAL_LIMIT_REACHED", "Maximum 3 active goals allowed per category", "")
	case errors.Is(err, service.ErrCannotChangeOwnRole):
		response.BadRequest(c, "Admins cannot change their own role")
	case errors.Is(err, service.ErrCannotDeleteSelf):
		response.BadRequest(c, "Use DELETE /auth/account to delete your own account")
	case errors.Is(err, service.ErrGoalNotFound), errors.Is(err, service.ErrGoalNotOwned):
		response.NotFound(c, "Goal not found")
	case errors.Is(err, service.ErrTaskNotFound):
		response.NotFound(c, "Task not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, service.ErrSubscriptionNotFound):
		response.NotFound(c, "No push subscription found to delete")
	case errors.Is(err, service.ErrInvalidReminderKind):
		response.BadRequest(c, "Reminder kind must be morning or evening")
	case errors.Is(err, service.ErrNotificationNotDelivered):
		response.Error(c, http.StatusConflict, "NOT_DELIVERED", "No open session or push subscription received the notification", "")
	default:
		response.InternalError(c, err)
	}
}
