package domain

import (
	"time"
)

// Role represents user role
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a user entity
type User struct {
	ID            string              `json:"id"`
	Email         string              `json:"email"`
	PasswordHash  string              `json:"-"` // Never serialize password
	Name          string              `json:"name"`
	Role          Role                `json:"role"`
	RefreshTokens []RefreshTokenEntry `json:"-"`
	Preferences   Preferences         `json:"preferences"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// RefreshTokenEntry is one issued refresh token held on the user record
type RefreshTokenEntry struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasValidRefreshToken reports whether token is stored and its stored expiry is after now
func (u *User) HasValidRefreshToken(token string, now time.Time) bool {
	for _, t := range u.RefreshTokens {
		if t.Token == token && t.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// Preferences holds per-user settings
type Preferences struct {
	Language             string `json:"language"`
	MorningDeadline      string `json:"morning_deadline"`
	EveningDeadline      string `json:"evening_deadline"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// DefaultPreferences returns the preferences a new user starts with
func DefaultPreferences() Preferences {
	return Preferences{
		Language:             "en",
		MorningDeadline:      "09:00 AM",
		EveningDeadline:      "10:00 PM",
		NotificationsEnabled: false,
	}
}

// PreferencesUpdate is a partial preferences change; nil fields are left unchanged
type PreferencesUpdate struct {
	Language             *string
	MorningDeadline      *string
	EveningDeadline      *string
	NotificationsEnabled *bool
}
