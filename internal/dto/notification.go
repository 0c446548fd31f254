package dto

import (
	"net/url"
	"strings"
	"time"
)

// PushSubscriptionRequest is the browser PushSubscription flattened to its key material
type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// Validate requires an absolute https endpoint and both keys
func (r *PushSubscriptionRequest) Validate() (bool, string) {
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	r.P256dh = strings.TrimSpace(r.P256dh)
	r.Auth = strings.TrimSpace(r.Auth)

	u, err := url.Parse(r.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false, "Endpoint must be an https URL"
	}
	if r.P256dh == "" || r.Auth == "" {
		return false, "Subscription keys are required"
	}
	return true, ""
}

// PushSubscriptionResponse represents a stored push subscription
type PushSubscriptionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
