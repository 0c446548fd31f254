package domain

import "time"

// PushSubscription is the browser push endpoint registered by a user; a user has at most one
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is one user-facing message delivered over every available channel
type Notification struct {
	// Kind is "morning", "evening", "test" or a test reminder kind
	Kind  string
	Title string
	Body  string
	Icon  string
	Badge string
	Tag   string
}
