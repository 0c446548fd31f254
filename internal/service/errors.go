package service

import "errors"

// Session and refresh errors; all map to 401
var (
	ErrUnauthenticated     = errors.New("could not validate credentials")
	ErrTokenExpired        = errors.New("token has expired")
	ErrRefreshExpired      = errors.New("refresh token expired")
	ErrRefreshRevoked      = errors.New("refresh token revoked or expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidCredentials  = errors.New("incorrect email or password")
)

// Request errors
var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrIncorrectPassword   = errors.New("incorrect current password")
	ErrUserNotFound        = errors.New("user not found")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrGoalLimitReached    = errors.New("maximum 3 active goals allowed per category")
	ErrGoalNotOwned        = errors.New("goal not found or not authorized")
	ErrCannotChangeOwnRole = errors.New("admins cannot change their own role")
	ErrCannotDeleteSelf    = errors.New("admins cannot delete their own account here")

	ErrSubscriptionNotFound     = errors.New("no push subscription found to delete")
	ErrInvalidReminderKind      = errors.New("reminder kind must be morning or evening")
	ErrNotificationNotDelivered = errors.New("no open session or push subscription received the notification")
)
