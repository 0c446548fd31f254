package realtime

const (
	TypeAuthUpdate   = "auth_update"
	TypeReminder     = "reminder"
	TypeNotification = "notification"
)

// AuthUpdateEvent tells every open session of a user that its authentication state changed
type AuthUpdateEvent struct {
	Type          string `json:"type"`
	UserID        string `json:"userId"`
	Authenticated bool   `json:"authenticated"`
}

// NewLoggedOut builds the event sent on logout, password change and account deletion
func NewLoggedOut(userID string) AuthUpdateEvent {
	return AuthUpdateEvent{Type: TypeAuthUpdate, UserID: userID, Authenticated: false}
}

// MessageType implements typedMessage
func (e AuthUpdateEvent) MessageType() string { return e.Type }

// ReminderEvent is a deadline reminder or test notification pushed to a user's sessions
type ReminderEvent struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// MessageType implements typedMessage
func (e ReminderEvent) MessageType() string { return e.Type }

type typedMessage interface {
	MessageType() string
}

func messageType(payload interface{}) string {
	if m, ok := payload.(typedMessage); ok {
		return m.MessageType()
	}
	return "other"
}
