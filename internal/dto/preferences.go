package dto

import (
	"strings"
	"time"
)

// DeadlineLayout is the 12-hour clock format deadlines are stored in, e.g. "09:00 AM"
const DeadlineLayout = "03:04 PM"

var supportedLanguages = map[string]struct{}{"en": {}, "zh": {}}

// PreferencesResponse represents user preferences
type PreferencesResponse struct {
	Language             string `json:"language"`
	MorningDeadline      string `json:"morning_deadline"`
	EveningDeadline      string `json:"evening_deadline"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// UpdatePreferencesRequest is a partial update; nil fields are left unchanged
type UpdatePreferencesRequest struct {
	Language             *string `json:"language"`
	MorningDeadline      *string `json:"morning_deadline"`
	EveningDeadline      *string `json:"evening_deadline"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

// IsEmpty reports whether no field was supplied
func (r *UpdatePreferencesRequest) IsEmpty() bool {
	return r.Language == nil && r.MorningDeadline == nil && r.EveningDeadline == nil && r.NotificationsEnabled == nil
}

// Validate checks supplied fields
func (r *UpdatePreferencesRequest) Validate() (bool, string) {
	if r.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*r.Language))
		if _, ok := supportedLanguages[lang]; !ok {
			return false, "Unsupported language"
		}
		r.Language = &lang
	}
	if r.MorningDeadline != nil {
		t, err := ParseDeadline(*r.MorningDeadline)
		if err != nil {
			return false, "Morning deadline must be in HH:MM AM/PM format"
		}
		if t.Hour() >= 12 {
			return false, "Morning deadline must be before noon"
		}
	}
	if r.EveningDeadline != nil {
		t, err := ParseDeadline(*r.EveningDeadline)
		if err != nil {
			return false, "Evening deadline must be in HH:MM AM/PM format"
		}
		if t.Hour() < 12 {
			return false, "Evening deadline must be after noon"
		}
	}
	return true, ""
}

// ParseDeadline parses a "hh:mm AM/PM" deadline
func ParseDeadline(s string) (time.Time, error) {
	return time.Parse(DeadlineLayout, strings.ToUpper(strings.TrimSpace(s)))
}
