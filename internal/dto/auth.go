package dto

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// Validate checks email format and password length; bcrypt ignores input past 72 bytes
func (r *RegisterRequest) Validate() (bool, string) {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)

	if !emailRegex.MatchString(r.Email) {
		return false, "Invalid email format"
	}
	return ValidatePassword(r.Password)
}

// ValidatePassword applies the password length rules
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 72 {
		return false, "Password must not exceed 72 characters"
	}
	return true, ""
}

// LoginRequest carries credentials in OAuth2 password form fields or JSON
type LoginRequest struct {
	Username string `form:"username" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Language     string `json:"language"`
}

// RefreshResponse is returned by refresh; RefreshToken is empty when rotation is not exposed
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
}

// UpdateNameRequest represents a display name change
type UpdateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Validate trims and bounds the name
func (r *UpdateNameRequest) Validate() (bool, string) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return false, "Name must not be empty"
	}
	if len([]rune(r.Name)) > 100 {
		return false, "Name must not exceed 100 characters"
	}
	return true, ""
}

// UpdateNameResponse echoes the updated identity
type UpdateNameResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// MessageResponse carries a human readable result
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse represents user data in response
type UserResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Role        string              `json:"role"`
	Preferences PreferencesResponse `json:"preferences"`
	CreatedAt   string              `json:"created_at"`
}
